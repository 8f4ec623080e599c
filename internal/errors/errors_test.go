// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsChain(t *testing.T) {
	base := stderrors.New("dial tcp: connection refused")
	err := fmt.Errorf("load services: %w", Wrap(Network, "gateway unreachable", base))

	assert.Equal(t, Network, KindOf(err))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "network: gateway unreachable")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
	assert.Equal(t, "rpc_timeout: no reply", New(RPCTimeout, "no reply").Error())
}

type businessErr struct{}

func (businessErr) Error() string   { return "NOTFOUND" }
func (businessErr) ErrorKind() Kind { return GatewayBusiness }

func TestKindOfKinded(t *testing.T) {
	err := fmt.Errorf("products: %w", businessErr{})
	assert.Equal(t, GatewayBusiness, KindOf(err))
}
