// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure the checkout core surfaces carries a machine-readable Kind so the
// command layer can map it onto a visible state (session expired, error banner,
// retry option) instead of letting it escape as an unhandled error.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// SessionInvalid indicates a missing or rejected session token in embedded mode.
	SessionInvalid Kind = "session_invalid"
	// GatewayBusiness indicates the VAS gateway answered with a business-level failure.
	GatewayBusiness Kind = "gateway_business"
	// Network indicates a transport failure where no gateway message is available.
	Network Kind = "network"
	// ValidationFailed indicates the account identifier was not recognized.
	ValidationFailed Kind = "validation_failed"
	// RPCTimeout indicates the parent host did not answer a bridge request in time.
	RPCTimeout Kind = "rpc_timeout"
	// UnexpectedResponse indicates a bridge reply of the wrong type.
	UnexpectedResponse Kind = "unexpected_response"
	// NativeUnavailable indicates the native payment capability is missing.
	NativeUnavailable Kind = "native_unavailable"
	// PaymentFailed indicates a backend answered but did not approve the payment.
	PaymentFailed Kind = "payment_failed"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Kinded is implemented by package-specific error types that know their Kind.
type Kinded interface {
	ErrorKind() Kind
}

// KindOf returns the Kind of the first *E or Kinded error in err's chain,
// or "" when none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	var k Kinded
	if stderrors.As(err, &k) {
		return k.ErrorKind()
	}
	return ""
}
