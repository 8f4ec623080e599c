// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"strings"

	apperrors "billpay/cli/internal/errors"
)

var kindHeadlines = map[apperrors.Kind]string{
	apperrors.SessionInvalid:     "session expired",
	apperrors.GatewayBusiness:    "gateway rejected the request",
	apperrors.Network:            "payment gateway unreachable",
	apperrors.ValidationFailed:   "check your details",
	apperrors.RPCTimeout:         "host did not answer",
	apperrors.UnexpectedResponse: "host sent an unexpected reply",
	apperrors.NativeUnavailable:  "app payments unavailable",
	apperrors.PaymentFailed:      "payment not completed",
}

// PresentError renders err for the terminal with secrets masked. Kinded
// checkout errors lead with a plain headline and their own message instead
// of the raw chain. action, when set, prefixes the line.
func PresentError(action string, err error) string {
	if err == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if action != "" {
		parts = append(parts, action)
	}
	detail := err.Error()
	if kind := apperrors.KindOf(err); kind != "" {
		if h, ok := kindHeadlines[kind]; ok {
			parts = append(parts, h)
		}
		var e *apperrors.E
		if errors.As(err, &e) && e.Message != "" {
			detail = e.Message
		}
	}
	parts = append(parts, detail)
	return Mask(strings.Join(parts, ": "))
}
