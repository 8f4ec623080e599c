// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Service ids used by the gateway catalog.
const (
	ServiceMobileAirtime    = 1
	ServiceMobileData       = 2
	ServiceMobileBundles    = 3
	ServiceInternet         = 5
	ServiceElectricity      = 6
	ServiceGas              = 8
	ServiceEducation        = 9
	ServiceInsurance        = 10
	ServicePhone            = 12
	ServiceTelevision       = 13
	ServiceLocalAuthorities = 17
	ServiceRetailShops      = 18
)

// ID is a gateway identifier. The gateway sends ids as numbers in some
// payloads and as strings in others; ID accepts both.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as JSON numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// Amount is a monetary value that may arrive as a number or a numeric string.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// Ref is a nested reference to another catalog entity.
type Ref struct {
	Id   ID     `json:"Id"`
	Name string `json:"Name,omitempty"`
	Code string `json:"Code,omitempty"`
}

// Country is a supported country.
type Country struct {
	Code        string `json:"Code,omitempty"`
	CountryCode string `json:"CountryCode,omitempty"`
	Name        string `json:"Name,omitempty"`
	CountryName string `json:"CountryName,omitempty"`
	Currency    string `json:"Currency,omitempty"`
}

// ISO returns the country code whichever key carried it.
func (c Country) ISO() string {
	if c.Code != "" {
		return c.Code
	}
	return c.CountryCode
}

// DisplayName returns the country name whichever key carried it.
func (c Country) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.CountryName
}

// Service is a biller category (electricity, television, ...).
type Service struct {
	Id          ID     `json:"Id"`
	Name        string `json:"Name"`
	Description string `json:"Description,omitempty"`
}

// Provider is a biller offering a service in a country.
type Provider struct {
	Id          ID     `json:"Id"`
	Name        string `json:"Name"`
	Country     *Ref   `json:"Country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	Logo        string `json:"Logo,omitempty"`
}

// InCountry reports whether the provider operates in code.
func (p Provider) InCountry(code string) bool {
	if p.Country != nil && p.Country.Code == code {
		return true
	}
	return p.CountryCode == code
}

// CreditPartyIdentifier describes an account field a biller requires.
type CreditPartyIdentifier struct {
	Name  string `json:"Name"`
	Title string `json:"Title,omitempty"`
}

// Product is something payable at a provider.
type Product struct {
	Id                     ID                      `json:"Id"`
	Name                   string                  `json:"Name"`
	Description            string                  `json:"Description,omitempty"`
	Price                  Amount                  `json:"Price,omitempty"`
	MinimumAmount          Amount                  `json:"MinimumAmount,omitempty"`
	MinAmount              Amount                  `json:"MinAmount,omitempty"`
	MaximumAmount          Amount                  `json:"MaximumAmount,omitempty"`
	MaxAmount              Amount                  `json:"MaxAmount,omitempty"`
	Currency               string                  `json:"Currency,omitempty"`
	ServiceProvider        *Ref                    `json:"ServiceProvider,omitempty"`
	ServiceProviderId      ID                      `json:"ServiceProviderId,omitempty"`
	CreditPartyIdentifiers []CreditPartyIdentifier `json:"CreditPartyIdentifiers,omitempty"`
}

// ProviderID returns the owning provider id whichever key carried it.
func (p Product) ProviderID() ID {
	if p.ServiceProvider != nil && p.ServiceProvider.Id != "" {
		return p.ServiceProvider.Id
	}
	return p.ServiceProviderId
}

// Min returns the minimum payable amount.
func (p Product) Min() float64 {
	if p.MinimumAmount != 0 {
		return float64(p.MinimumAmount)
	}
	return float64(p.MinAmount)
}

// Max returns the maximum payable amount.
func (p Product) Max() float64 {
	if p.MaximumAmount != 0 {
		return float64(p.MaximumAmount)
	}
	return float64(p.MaxAmount)
}

// IdentifierFieldName returns the first required account field, AccountNumber by default.
func (p Product) IdentifierFieldName() string {
	if len(p.CreditPartyIdentifiers) > 0 && p.CreditPartyIdentifiers[0].Name != "" {
		return p.CreditPartyIdentifiers[0].Name
	}
	return "AccountNumber"
}

// Payload is a decoded gateway response returned as-is to callers.
type Payload map[string]any

// String returns the string value at key, "" when absent or not a string.
func (p Payload) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// CreditPartyValue is one filled-in account field.
type CreditPartyValue struct {
	IdentifierFieldName  string `json:"IdentifierFieldName"`
	IdentifierFieldValue string `json:"IdentifierFieldValue"`
}

// CustomerDetails identifies the paying customer to the gateway.
type CustomerDetails struct {
	CustomerId   string  `json:"CustomerId"`
	Fullname     string  `json:"Fullname"`
	MobileNumber string  `json:"MobileNumber"`
	EmailAddress *string `json:"EmailAddress"`
}

// POSDetails identifies the point of sale.
type POSDetails struct {
	CashierId  string `json:"CashierId"`
	StoreId    string `json:"StoreId"`
	TerminalId string `json:"TerminalId"`
}

// PaymentRequest is the body of ValidatePayment and PostPayment.
type PaymentRequest struct {
	RequestId              string             `json:"RequestId"`
	Amount                 float64            `json:"Amount"`
	CreditPartyIdentifiers []CreditPartyValue `json:"CreditPartyIdentifiers"`
	Currency               string             `json:"Currency"`
	CustomerDetails        CustomerDetails    `json:"CustomerDetails"`
	POSDetails             POSDetails         `json:"POSDetails"`
	ProductId              ID                 `json:"ProductId"`
	Quantity               int                `json:"Quantity"`
}

// ProviderFilter narrows GetServiceProviders.
type ProviderFilter struct {
	CountryCode string
	ServiceID   string
}

// ProductFilter narrows GetProducts. CountryCode and ServiceID are required.
type ProductFilter struct {
	CountryCode string
	ServiceID   string
	ProviderID  string
}

// DefaultMobileNumber is sent when no host profile supplies one.
const DefaultMobileNumber = "+263777077921"

// DefaultCustomerDetails is the customer block used when no host profile is available.
func DefaultCustomerDetails() CustomerDetails {
	return CustomerDetails{
		CustomerId:   "1",
		Fullname:     "Customer",
		MobileNumber: DefaultMobileNumber,
	}
}
