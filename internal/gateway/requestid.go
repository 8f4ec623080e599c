// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gateway

import "github.com/google/uuid"

// NewRequestID returns a fresh UUID v4 used to correlate validation and
// payment calls on the gateway side.
func NewRequestID() string {
	return uuid.NewString()
}
