// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkout

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"billpay/cli/internal/gateway"
	"billpay/cli/internal/logging"
	"billpay/cli/internal/validation"
)

const (
	validationOK     = "Validation successful"
	validationFailed = "Payment validation failed"
)

// mobileServices are sold by a separate airtime flow and hidden here.
var mobileServices = map[string]bool{
	strconv.Itoa(gateway.ServiceMobileAirtime): true,
	strconv.Itoa(gateway.ServiceMobileData):    true,
	strconv.Itoa(gateway.ServiceMobileBundles): true,
}

// Catalog narrows the gateway catalog to what the bill payment checkout sells.
type Catalog struct {
	api gateway.API
	log *zap.Logger
}

func NewCatalog(api gateway.API, logger *zap.Logger) *Catalog {
	return &Catalog{api: api, log: logging.OrNop(logger).Named("catalog")}
}

// Services lists bill services in country, without mobile top-ups.
func (c *Catalog) Services(ctx context.Context, country string) ([]gateway.Service, error) {
	all, err := c.api.GetServices(ctx, country)
	if err != nil {
		return nil, err
	}
	out := make([]gateway.Service, 0, len(all))
	for _, s := range all {
		if mobileServices[s.Id.String()] {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Providers lists providers of service that operate in country.
func (c *Catalog) Providers(ctx context.Context, country string, service gateway.Service) ([]gateway.Provider, error) {
	all, err := c.api.GetServiceProviders(ctx, gateway.ProviderFilter{
		CountryCode: country,
		ServiceID:   service.Id.String(),
	})
	if err != nil {
		return nil, err
	}
	out := make([]gateway.Provider, 0, len(all))
	for _, p := range all {
		if p.InCountry(country) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Products lists provider's products. The gateway may ignore the provider
// filter, so results are narrowed again locally.
func (c *Catalog) Products(ctx context.Context, country string, service gateway.Service, provider gateway.Provider) ([]gateway.Product, error) {
	all, err := c.api.GetProducts(ctx, gateway.ProductFilter{
		CountryCode: country,
		ServiceID:   service.Id.String(),
		ProviderID:  provider.Id.String(),
	})
	if err != nil {
		return nil, err
	}
	out := make([]gateway.Product, 0, len(all))
	for _, p := range all {
		if p.ProviderID() == provider.Id {
			out = append(out, p)
		}
	}
	c.log.Debug("products loaded",
		zap.String("provider", provider.Id.String()),
		zap.Int("total", len(all)),
		zap.Int("matched", len(out)),
	)
	return out, nil
}

// Product fetches one product by id.
func (c *Catalog) Product(ctx context.Context, id string) (*gateway.Product, error) {
	return c.api.GetProductByID(ctx, id)
}

// ValidationResult is a one-shot validation answer.
type ValidationResult struct {
	Success bool
	Data    gateway.Payload
	Message string
	Error   error
}

// ValidatePayment validates req once, without debouncing. Failures are
// reported in the result rather than as an error.
func (c *Catalog) ValidatePayment(ctx context.Context, req gateway.PaymentRequest) ValidationResult {
	data, err := c.api.ValidatePayment(ctx, req)
	if err != nil {
		return ValidationResult{Error: err, Message: validationFailed}
	}
	msg := data.String("ResultMessage")
	if msg == "" {
		msg = validationOK
	}
	return ValidationResult{
		Success: data.String("Status") == validation.StatusValidated,
		Data:    data,
		Message: msg,
	}
}

// Voucher is a prepaid token issued on fulfillment.
type Voucher struct {
	SerialNumber string `json:"serialNumber,omitempty"`
	VoucherCode  string `json:"voucherCode,omitempty"`
	ExpiryDate   string `json:"expiryDate,omitempty"`
	ValidDays    *int   `json:"validDays,omitempty"`
}

// Fulfillment is the gateway's answer to PostPayment.
type Fulfillment struct {
	Status          string                   `json:"status"`
	Success         bool                     `json:"success"`
	ResultMessage   string                   `json:"resultMessage,omitempty"`
	ReferenceNumber string                   `json:"referenceNumber,omitempty"`
	RequestID       string                   `json:"requestId,omitempty"`
	Vouchers        []Voucher                `json:"vouchers,omitempty"`
	ReceiptHTML     []string                 `json:"receiptHTML,omitempty"`
	ReceiptSmses    []string                 `json:"receiptSmses,omitempty"`
	DisplayData     []validation.DisplayItem `json:"displayData,omitempty"`
}

var fulfilledStatuses = map[string]bool{
	"SUCCESS":    true,
	"SUCCESSFUL": true,
	"COMPLETED":  true,
	"FULFILLED":  true,
}

// PostPayment submits req for fulfillment and normalizes the answer.
func (c *Catalog) PostPayment(ctx context.Context, req gateway.PaymentRequest) (*Fulfillment, error) {
	data, err := c.api.PostPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	return fulfillmentFrom(data, req.RequestId), nil
}

func fulfillmentFrom(data gateway.Payload, requestID string) *Fulfillment {
	f := &Fulfillment{
		Status:          first(data, "Status", "status"),
		ResultMessage:   first(data, "ResultMessage", "resultMessage"),
		ReferenceNumber: first(data, "ReferenceNumber", "referenceNumber"),
		RequestID:       first(data, "RequestId", "requestId"),
		ReceiptHTML:     stringList(data, "ReceiptHTML", "receiptHTML"),
		ReceiptSmses:    stringList(data, "ReceiptSmses", "receiptSmses"),
	}
	if f.RequestID == "" {
		f.RequestID = requestID
	}
	if ok, isBool := data["success"].(bool); isBool {
		f.Success = ok
	} else {
		f.Success = fulfilledStatuses[strings.ToUpper(f.Status)]
	}
	if v, ok := data["DisplayData"]; ok {
		f.DisplayData = validation.DisplayItems(v)
	}
	if list, ok := data["Vouchers"].([]any); ok {
		for _, raw := range list {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			p := gateway.Payload(m)
			v := Voucher{
				SerialNumber: p.String("SerialNumber"),
				VoucherCode:  p.String("VoucherCode"),
				ExpiryDate:   p.String("ExpiryDate"),
			}
			if d, ok := m["ValidDays"].(float64); ok {
				days := int(d)
				v.ValidDays = &days
			}
			f.Vouchers = append(f.Vouchers, v)
		}
	}
	return f
}

func first(p gateway.Payload, keys ...string) string {
	for _, k := range keys {
		if s := p.String(k); s != "" {
			return s
		}
	}
	return ""
}

func stringList(p gateway.Payload, keys ...string) []string {
	for _, k := range keys {
		list, ok := p[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
