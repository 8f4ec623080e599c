// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "billpay/cli/internal/errors"
)

func TestPresentError(t *testing.T) {
	tests := []struct {
		name   string
		action string
		err    error
		want   string
	}{
		{"nil", "pay", nil, ""},
		{"plain", "", errors.New("boom"), "boom"},
		{"plain with action", "validate", errors.New("boom"), "validate: boom"},
		{
			name:   "kinded uses its message",
			action: "pay",
			err:    fmt.Errorf("charge: %w", apperrors.New(apperrors.PaymentFailed, "Insufficient funds")),
			want:   "pay: payment not completed: Insufficient funds",
		},
		{
			name: "session",
			err:  apperrors.Wrap(apperrors.SessionInvalid, "token rejected", errors.New("HTTP 401")),
			want: "session expired: token rejected",
		},
		{
			name: "secrets masked",
			err:  errors.New("dial postgres://u:p@db:5432/ledger with BILLPAY_MERCHANT_ID=abc"),
			want: "dial postgres://*:*@db:5432/ledger with BILLPAY_MERCHANT_ID=***",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PresentError(tt.action, tt.err))
		})
	}
}
