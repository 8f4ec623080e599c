// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkout

import (
	"strings"
	"unicode"
)

// LabelContext is what is known about the selection when labelling a field.
type LabelContext struct {
	ServiceName  string
	ProviderName string
	ProductName  string
}

var fieldLabels = map[string]string{
	"AccountNumber":     "Account Number",
	"MeterNumber":       "Meter Number",
	"MemberNumber":      "Member Number",
	"CustomerNumber":    "Customer Number",
	"ReferenceNumber":   "Reference Number",
	"PhoneNumber":       "Phone Number",
	"MeterSerialNumber": "Meter Serial Number",
	"BillNumber":        "Bill Number",
	"ContractNumber":    "Contract Number",
	"SubscriberNumber":  "Subscriber Number",
	"SmartCardNumber":   "Smart Card Number",
	"VoucherNumber":     "Voucher Number",
	"TokenNumber":       "Token Number",
	"PrepaidNumber":     "Prepaid Number",
	"PostpaidNumber":    "Postpaid Number",
}

// Some electricity billers publish their meter field under a phone name.
var phoneLikeFields = []string{
	"mobile number", "phone1 number", "phone number", "mobile #",
	"msisdn", "mssdn", "mobile", "phonenumber",
}

// IdentifierLabel turns a biller's technical field name into the label shown
// next to the account input.
func IdentifierLabel(field string, lc LabelContext) string {
	field = strings.TrimSpace(field)
	if field == "" {
		return labelForService(lc.ServiceName)
	}
	if isElectricity(lc) && isPhoneLike(field) {
		return "Meter Number"
	}
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return titleCase(field)
}

func isElectricity(lc LabelContext) bool {
	service := strings.ToLower(lc.ServiceName)
	provider := strings.ToLower(lc.ProviderName)
	product := strings.ToLower(lc.ProductName)
	return strings.Contains(service, "electric") ||
		strings.Contains(provider, "zetdc") ||
		strings.Contains(product, "zetdc")
}

func isPhoneLike(field string) bool {
	f := strings.ToLower(field)
	for _, p := range phoneLikeFields {
		if f == p {
			return true
		}
	}
	return false
}

func labelForService(service string) string {
	s := strings.ToLower(service)
	switch {
	case strings.Contains(s, "electricity"):
		return "Meter Number"
	case strings.Contains(s, "water"):
		return "Account Number"
	case strings.Contains(s, "tv"), strings.Contains(s, "television"):
		return "Smart Card Number"
	case strings.Contains(s, "gas"):
		return "Account Number"
	default:
		return "Account Number"
	}
}

// titleCase splits PascalCase and snake_case into capitalised words.
func titleCase(field string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(field)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && !unicode.IsUpper(runes[i-1]):
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
