// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gateway

import (
	"errors"
	"fmt"

	apperrors "billpay/cli/internal/errors"
)

// ErrInvalidToken is returned when the token endpoint rejects a session token.
var ErrInvalidToken = errors.New("invalid session token")

// APIError is a failure reported by the gateway itself: a non-2xx response or
// a 2xx response whose Status is ERROR or NOTFOUND.
type APIError struct {
	StatusCode int
	// Status is the gateway business status, empty for HTTP-level failures.
	Status  string
	Message string
	// Body is the raw response body.
	Body string
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) ErrorKind() apperrors.Kind { return apperrors.GatewayBusiness }

// IsNotFound reports whether err is a gateway NOTFOUND or HTTP 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == "NOTFOUND" || apiErr.StatusCode == 404
}

// IsNetworkError reports whether err is a transport failure, i.e. the gateway
// never produced a usable answer.
func IsNetworkError(err error) bool {
	return apperrors.KindOf(err) == apperrors.Network
}

func networkError(op string, err error) error {
	return apperrors.Wrap(apperrors.Network, fmt.Sprintf("gateway %s", op), err)
}
