// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"context"
	"encoding/json"

	"billpay/cli/internal/bridge/model"
)

// PaymentRequest is the body of REQUEST_PAYMENT.
type PaymentRequest struct {
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Description  string  `json:"description"`
	AccountValue string  `json:"accountValue"`
	Product      any     `json:"product,omitempty"`
	Provider     any     `json:"provider,omitempty"`
	Country      any     `json:"country,omitempty"`
	Service      any     `json:"service,omitempty"`
}

// PaymentComplete is the body of PAYMENT_COMPLETE.
type PaymentComplete struct {
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
}

// RequestToken asks the host for a session token.
func (b *Bridge) RequestToken(ctx context.Context) (json.RawMessage, error) {
	return b.SendToParent(ctx, model.TypeRequestToken, nil, true)
}

// RequestPayment asks the host to charge the user.
func (b *Bridge) RequestPayment(ctx context.Context, req PaymentRequest) (json.RawMessage, error) {
	return b.SendToParent(ctx, model.TypeRequestPayment, req, true)
}

// GetUserInfo asks the host for the signed-in user's profile.
func (b *Bridge) GetUserInfo(ctx context.Context) (json.RawMessage, error) {
	return b.SendToParent(ctx, model.TypeRequestUserInfo, nil, true)
}

// NotifyPaymentComplete tells the host a payment finished.
func (b *Bridge) NotifyPaymentComplete(ctx context.Context, done PaymentComplete) error {
	_, err := b.SendToParent(ctx, model.TypePaymentComplete, done, false)
	return err
}

// RequestClose asks the host to dismiss the checkout.
func (b *Bridge) RequestClose(ctx context.Context) error {
	_, err := b.SendToParent(ctx, model.TypeCloseIframe, nil, false)
	return err
}

// RequestNavigation asks the host to navigate to url.
func (b *Bridge) RequestNavigation(ctx context.Context, url string) error {
	_, err := b.SendToParent(ctx, model.TypeNavigationRequest, map[string]string{"url": url}, false)
	return err
}
