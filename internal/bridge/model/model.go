// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package model defines the message envelope exchanged between the embedded
// checkout and its parent host. The types are transport-agnostic: the same
// envelope travels over a websocket in production and through an in-process
// fake in tests.
package model

import "encoding/json"

// Source identities used for message filtering.
const (
	AppSource    = "h5-getbucks-bill-payments"
	ParentSource = "tapseed-hub"
)

// Message types of the host protocol.
const (
	TypeIframeReady       = "IFRAME_READY"
	TypeRequestToken      = "REQUEST_TOKEN"
	TypeRequestPayment    = "REQUEST_PAYMENT"
	TypeRequestUserInfo   = "REQUEST_USER_INFO"
	TypePaymentComplete   = "PAYMENT_COMPLETE"
	TypeCloseIframe       = "CLOSE_IFRAME"
	TypeNavigationRequest = "NAVIGATION_REQUEST"
	TypeUserUpdate        = "USER_UPDATE"
	TypeConfigUpdate      = "CONFIG_UPDATE"

	// Replies to requests.
	TypeTokenResponse    = "REQUEST_TOKEN_RESPONSE"
	TypePaymentResult    = "REQUEST_PAYMENT_RESULT"
	TypeUserInfoResponse = "REQUEST_USER_INFO_RESPONSE"
)

// Message is the bridge envelope.
type Message struct {
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
	// RequestID is set only on messages that expect, or are, a correlated reply.
	RequestID string `json:"requestId,omitempty"`
}

// Inbound is a message received from the other side together with the
// origin the transport observed it from.
type Inbound struct {
	Origin  string
	Message Message
}
