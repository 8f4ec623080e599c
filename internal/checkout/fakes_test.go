// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkout

import (
	"context"
	"sync"

	"billpay/cli/internal/gateway"
)

// fakeGateway is an in-memory gateway.
type fakeGateway struct {
	mu sync.Mutex

	services  []gateway.Service
	providers []gateway.Provider
	products  []gateway.Product

	validate    func(req gateway.PaymentRequest) (gateway.Payload, error)
	post        func(req gateway.PaymentRequest) (gateway.Payload, error)
	tokenResult gateway.Payload
	tokenErr    error

	validated []gateway.PaymentRequest
	posted    []gateway.PaymentRequest
}

func (g *fakeGateway) GetCountries(context.Context) ([]gateway.Country, error) {
	return []gateway.Country{{Code: "ZW", Name: "Zimbabwe"}}, nil
}

func (g *fakeGateway) GetServices(context.Context, string) ([]gateway.Service, error) {
	return g.services, nil
}

func (g *fakeGateway) GetServiceProviders(context.Context, gateway.ProviderFilter) ([]gateway.Provider, error) {
	return g.providers, nil
}

func (g *fakeGateway) GetProducts(context.Context, gateway.ProductFilter) ([]gateway.Product, error) {
	return g.products, nil
}

func (g *fakeGateway) GetProductByID(_ context.Context, id string) (*gateway.Product, error) {
	for _, p := range g.products {
		if p.Id.String() == id {
			p := p
			return &p, nil
		}
	}
	return nil, &gateway.APIError{StatusCode: 404, Message: "not found"}
}

func (g *fakeGateway) ValidatePayment(_ context.Context, req gateway.PaymentRequest) (gateway.Payload, error) {
	g.mu.Lock()
	g.validated = append(g.validated, req)
	fn := g.validate
	g.mu.Unlock()
	if fn == nil {
		return gateway.Payload{"Status": "VALIDATED"}, nil
	}
	return fn(req)
}

func (g *fakeGateway) PostPayment(_ context.Context, req gateway.PaymentRequest) (gateway.Payload, error) {
	g.mu.Lock()
	g.posted = append(g.posted, req)
	fn := g.post
	g.mu.Unlock()
	if fn == nil {
		return gateway.Payload{"Status": "SUCCESSFUL"}, nil
	}
	return fn(req)
}

func (g *fakeGateway) ValidateToken(context.Context, string) (gateway.Payload, error) {
	return g.tokenResult, g.tokenErr
}

func (g *fakeGateway) validations() []gateway.PaymentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.PaymentRequest(nil), g.validated...)
}

var (
	zimbabwe    = gateway.Country{Code: "ZW", Name: "Zimbabwe"}
	electricity = gateway.Service{Id: "6", Name: "Electricity"}
	zetdc       = gateway.Provider{Id: "7", Name: "ZETDC", Country: &gateway.Ref{Id: "1", Code: "ZW"}}
	zesaToken   = gateway.Product{
		Id:                     "101",
		Name:                   "ZESA Prepaid",
		MinimumAmount:          10,
		MaximumAmount:          10,
		Currency:               "USD",
		ServiceProvider:        &gateway.Ref{Id: "7"},
		CreditPartyIdentifiers: []gateway.CreditPartyIdentifier{{Name: "MeterNumber"}},
	}
)
