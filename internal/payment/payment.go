// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package payment dispatches a charge to whichever channel the current mode
// provides (native shell, parent host, or the local mock bank) and normalizes
// the answers into one Result shape.
package payment

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"billpay/cli/internal/gateway"
	"billpay/cli/internal/logging"
	"billpay/cli/internal/mode"
)

const (
	StatusSuccess   = "SUCCESS"
	StatusCompleted = "COMPLETED"

	defaultMessage = "Payment processed successfully"
)

// Request is a charge for one selected product.
type Request struct {
	Amount       float64
	Currency     string
	AccountValue string
	Product      *gateway.Product
	Provider     *gateway.Provider
	Country      *gateway.Country
	Service      *gateway.Service
}

// Description is the human readable charge label.
func (r Request) Description() string {
	name := "Bill"
	if r.Provider != nil && r.Provider.Name != "" {
		name = r.Provider.Name
	}
	return "Bill Payment: " + name
}

// Result is the normalized outcome of any backend.
type Result struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	Timestamp     time.Time       `json:"timestamp"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// Profile is a user profile as reported by a host. Keys vary by host.
type Profile map[string]any

// Backend is one payment channel.
type Backend interface {
	Pay(ctx context.Context, req Request) (Result, error)
	// UserInfo returns the host's user profile, nil when the host has none.
	UserInfo(ctx context.Context) (Profile, error)
}

// Adapter selects a backend per call from the current mode.
type Adapter struct {
	detect mode.Detector
	native Backend
	iframe Backend
	mock   Backend
	log    *zap.Logger
}

// NewAdapter wires the three backends. detect is consulted on every call.
func NewAdapter(detect mode.Detector, native, iframe, mock Backend, logger *zap.Logger) *Adapter {
	if native == nil {
		native = &NativeBackend{}
	}
	if iframe == nil {
		iframe = &IframeBackend{}
	}
	if mock == nil {
		mock = &MockBackend{}
	}
	return &Adapter{
		detect: detect,
		native: native,
		iframe: iframe,
		mock:   mock,
		log:    logging.OrNop(logger).Named("payment"),
	}
}

func (a *Adapter) backend() (mode.Mode, Backend) {
	m := a.detect()
	switch m {
	case mode.Native:
		return m, a.native
	case mode.Iframe:
		return m, a.iframe
	default:
		return mode.Standalone, a.mock
	}
}

// ProcessPayment charges req through the active channel. Backend errors are
// returned unchanged; callers map them to user-facing categories.
func (a *Adapter) ProcessPayment(ctx context.Context, req Request) (Result, error) {
	m, b := a.backend()
	a.log.Info("processing payment",
		zap.String("mode", string(m)),
		zap.Float64("amount", req.Amount),
		zap.String("currency", req.Currency),
	)
	res, err := b.Pay(ctx, req)
	if err != nil {
		a.log.Warn("payment failed", zap.String("mode", string(m)), zap.Error(err))
		return Result{}, err
	}
	return res, nil
}

// GetUserInfo returns the active channel's user profile, possibly nil.
func (a *Adapter) GetUserInfo(ctx context.Context) (Profile, error) {
	_, b := a.backend()
	return b.UserInfo(ctx)
}
