// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package payment

import (
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"billpay/cli/internal/gateway"
)

// DefaultCustomer is used when no host profile is available.
var DefaultCustomer = gateway.DefaultCustomerDetails()

// CustomerDetails builds the gateway customer block from the active channel's
// profile. Hosts name fields differently, so several keys are tried; a
// failing or empty profile falls back to DefaultCustomer.
func (a *Adapter) CustomerDetails(ctx context.Context) gateway.CustomerDetails {
	p, err := a.GetUserInfo(ctx)
	if err != nil {
		a.log.Warn("could not get user info from bridge", zap.Error(err))
		return DefaultCustomer
	}
	if p == nil {
		return DefaultCustomer
	}
	return p.Customer()
}

// Customer normalizes the profile into gateway customer details.
func (p Profile) Customer() gateway.CustomerDetails {
	out := gateway.CustomerDetails{
		CustomerId:   p.first("1", "CustomerId", "id", "userId"),
		Fullname:     p.first("Customer", "Fullname", "name", "fullName"),
		MobileNumber: p.first(gateway.DefaultMobileNumber, "MobileNumber", "phoneNumber", "msisdn"),
	}
	if email := p.first("", "EmailAddress", "email"); email != "" {
		out.EmailAddress = &email
	}
	return out
}

func (p Profile) first(fallback string, keys ...string) string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			if v != "" {
				return v.String()
			}
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return fallback
}
