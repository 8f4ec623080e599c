// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"strings"

	"github.com/pterm/pterm"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NativeErrorType represents the category of a native-shell payment failure.
type NativeErrorType int

const (
	NativeErrorUnknown NativeErrorType = iota
	NativeErrorUnavailable
	NativeErrorTimeout
	NativeErrorAuth
	NativeErrorRejected
)

// ParseNativeError categorizes an error returned by the native payment capability.
// gRPC status codes are preferred; the message is inspected as a fallback.
func ParseNativeError(err error) NativeErrorType {
	if err == nil {
		return NativeErrorUnknown
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable:
			return NativeErrorUnavailable
		case codes.DeadlineExceeded:
			return NativeErrorTimeout
		case codes.Unauthenticated, codes.PermissionDenied:
			return NativeErrorAuth
		case codes.FailedPrecondition, codes.InvalidArgument, codes.Aborted:
			return NativeErrorRejected
		}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "unavailable") || strings.Contains(lower, "not available"):
		return NativeErrorUnavailable
	case strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout"):
		return NativeErrorTimeout
	case strings.Contains(lower, "unauthenticated") || strings.Contains(lower, "unauthorized"):
		return NativeErrorAuth
	}
	return NativeErrorUnknown
}

// FormatNativeError formats a native payment failure in a user-friendly way.
func FormatNativeError(err error) string {
	var builder strings.Builder
	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Payment not completed"))
	builder.WriteString("\n\n")

	switch ParseNativeError(err) {
	case NativeErrorUnavailable:
		builder.WriteString("The app's payment service is not reachable right now.\n")
	case NativeErrorTimeout:
		builder.WriteString("The app's payment service took too long to answer.\n")
	case NativeErrorAuth:
		builder.WriteString("The app rejected the payment session. Please sign in again.\n")
	case NativeErrorRejected:
		builder.WriteString("The payment was declined by the app.\n")
	default:
		builder.WriteString("The payment could not be processed by the app.\n")
	}

	if err != nil {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	}
	return builder.String()
}
