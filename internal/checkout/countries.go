// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkout

import (
	"strings"

	"billpay/cli/internal/gateway"
)

// SupportedCountryCode is the only country the checkout currently sells in.
const SupportedCountryCode = "ZW"

// CountryInfo is static display data for a country.
type CountryInfo struct {
	Code        string
	Name        string
	Flag        string
	CallingCode string
}

var countries = []CountryInfo{
	{Code: "ZW", Name: "Zimbabwe", Flag: "🇿🇼", CallingCode: "+263"},
	{Code: "KE", Name: "Kenya", Flag: "🇰🇪", CallingCode: "+254"},
	{Code: "BW", Name: "Botswana", Flag: "🇧🇼", CallingCode: "+267"},
	{Code: "ZM", Name: "Zambia", Flag: "🇿🇲", CallingCode: "+260"},
	{Code: "RW", Name: "Rwanda", Flag: "🇷🇼", CallingCode: "+250"},
	{Code: "ZA", Name: "South Africa", Flag: "🇿🇦", CallingCode: "+27"},
	{Code: "NG", Name: "Nigeria", Flag: "🇳🇬", CallingCode: "+234"},
	{Code: "GH", Name: "Ghana", Flag: "🇬🇭", CallingCode: "+233"},
}

// LookupCountry finds a country by ISO code, case-insensitively.
func LookupCountry(code string) (CountryInfo, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range countries {
		if c.Code == code {
			return c, true
		}
	}
	return CountryInfo{}, false
}

// Gateway converts the entry to the gateway's country shape.
func (c CountryInfo) Gateway() gateway.Country {
	return gateway.Country{Code: c.Code, Name: c.Name}
}
