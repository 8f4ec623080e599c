// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billpay/cli/internal/clock"
	apperrors "billpay/cli/internal/errors"
	"billpay/cli/internal/gateway"
)

type fakeValidator struct {
	mu    sync.Mutex
	calls []gateway.PaymentRequest
	fn    func(req gateway.PaymentRequest) (gateway.Payload, error)
}

func (f *fakeValidator) ValidatePayment(_ context.Context, req gateway.PaymentRequest) (gateway.Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeValidator) Calls() []gateway.PaymentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.PaymentRequest{}, f.calls...)
}

type staticCustomers struct{}

func (staticCustomers) CustomerDetails(context.Context) gateway.CustomerDetails {
	return gateway.CustomerDetails{CustomerId: "9", Fullname: "Jane", MobileNumber: "+263711111111"}
}

var meterProduct = gateway.Product{
	Id:                     "101",
	Currency:               "USD",
	CreditPartyIdentifiers: []gateway.CreditPartyIdentifier{{Name: "MeterNumber"}},
}

func newDebouncer(v Validator) (*Debouncer, *clock.Fake) {
	clk := clock.NewFake(time.Unix(0, 0))
	n := 0
	d := New(Config{
		Product:   meterProduct,
		Validator: v,
		Customers: staticCustomers{},
		POSID:     "Getbucks",
		Clock:     clk,
		NewRequestID: func() string {
			n++
			return fmt.Sprintf("req-%d", n)
		},
	})
	return d, clk
}

func validated(name string) gateway.Payload {
	return gateway.Payload{
		"Status":      "VALIDATED",
		"DisplayData": []any{map[string]any{"Label": "Name", "Value": name}},
	}
}

func TestOnlyLatestRequestPublishes(t *testing.T) {
	release := map[string]chan struct{}{
		"1111": make(chan struct{}),
		"2222": make(chan struct{}),
	}
	started := make(chan string, 2)
	v := &fakeValidator{fn: func(req gateway.PaymentRequest) (gateway.Payload, error) {
		account := req.CreditPartyIdentifiers[0].IdentifierFieldValue
		started <- account
		<-release[account]
		return validated("owner of " + account), nil
	}}
	d, clk := newDebouncer(v)
	defer d.Close()

	var mu sync.Mutex
	var published []State
	d.OnChange(func(s State) {
		mu.Lock()
		published = append(published, s)
		mu.Unlock()
	})

	d.SetAccount("1111")
	clk.Advance(time.Second)
	require.Equal(t, "1111", <-started)

	d.SetAccount("2222")
	clk.Advance(time.Second)
	require.Equal(t, "2222", <-started)

	// The newer request answers first, then the older one.
	close(release["2222"])
	require.Eventually(t, func() bool { return d.State().Phase == PhaseDone }, time.Second, time.Millisecond)
	close(release["1111"])
	d.Wait()

	st := d.State()
	assert.Equal(t, "req-2", st.RequestID)
	assert.True(t, st.Validated())
	assert.Equal(t, []DisplayItem{{Label: "Name", Value: "owner of 2222"}}, st.Outcome.DisplayData)

	mu.Lock()
	defer mu.Unlock()
	for _, s := range published {
		if s.Phase == PhaseDone {
			assert.Equal(t, "req-2", s.RequestID, "stale result was published")
		}
	}
}

func TestKeystrokesResetTimer(t *testing.T) {
	v := &fakeValidator{fn: func(gateway.PaymentRequest) (gateway.Payload, error) { return validated("x"), nil }}
	d, clk := newDebouncer(v)
	defer d.Close()

	d.SetAmount("5")
	for _, s := range []string{"1", "12", "123", "1234"} {
		d.SetAccount(s)
		clk.Advance(900 * time.Millisecond)
	}
	assert.Empty(t, v.Calls())

	// The amount is read when the timer fires, not when the key was pressed.
	d.SetAmount("10.50")
	clk.Advance(100 * time.Millisecond)
	d.Wait()

	calls := v.Calls()
	require.Len(t, calls, 1)
	req := calls[0]
	assert.Equal(t, "req-1", req.RequestId)
	assert.Equal(t, 10.5, req.Amount)
	assert.Equal(t, []gateway.CreditPartyValue{{IdentifierFieldName: "MeterNumber", IdentifierFieldValue: "1234"}}, req.CreditPartyIdentifiers)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, gateway.ID("101"), req.ProductId)
	assert.Equal(t, 1, req.Quantity)
	assert.Equal(t, gateway.POSDetails{CashierId: "Getbucks", StoreId: "Getbucks", TerminalId: "Getbucks"}, req.POSDetails)
	assert.Equal(t, "Jane", req.CustomerDetails.Fullname)
	assert.True(t, d.State().Validated())
}

func TestEmptyInputClearsWithoutCalling(t *testing.T) {
	v := &fakeValidator{fn: func(gateway.PaymentRequest) (gateway.Payload, error) {
		return gateway.Payload{"Status": "FAILED", "ResultMessage": "Unknown meter"}, nil
	}}
	d, clk := newDebouncer(v)
	defer d.Close()

	d.SetAccount("999")
	clk.Advance(time.Second)
	d.Wait()
	require.True(t, d.State().Warning())

	d.SetAccount("   ")
	assert.Equal(t, PhaseIdle, d.State().Phase)
	clk.Advance(5 * time.Second)
	assert.Len(t, v.Calls(), 1)
}

func TestClearDiscardsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	v := &fakeValidator{fn: func(gateway.PaymentRequest) (gateway.Payload, error) {
		started <- struct{}{}
		<-release
		return validated("late"), nil
	}}
	d, clk := newDebouncer(v)
	defer d.Close()

	d.SetAccount("1234")
	clk.Advance(time.Second)
	<-started
	d.SetAccount("")
	close(release)
	d.Wait()
	assert.Equal(t, State{Phase: PhaseIdle}, d.State())
}

func TestClassification(t *testing.T) {
	netErr := apperrors.Wrap(apperrors.Network, "gateway ValidatePayment", errors.New("dial tcp: connection refused"))
	tests := []struct {
		name    string
		payload gateway.Payload
		err     error
		success bool
		message string
		network bool
	}{
		{"validated", gateway.Payload{"Status": "VALIDATED", "BillAmount": 42.5}, nil, true, "", false},
		{"business failure", gateway.Payload{"Status": "FAILED", "ResultMessage": "Unknown meter"}, nil, false, "Unknown meter", false},
		{"failure without message", gateway.Payload{"Status": "PENDING"}, nil, false, FailedMessage, false},
		{"gateway error", nil, &gateway.APIError{StatusCode: 400, Message: "Invalid product"}, false, "Invalid product", false},
		{"network error", nil, netErr, false, NetworkMessage, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.payload, tt.err)
			assert.Equal(t, tt.success, out.Success)
			assert.Equal(t, tt.message, out.Message)
			assert.Equal(t, tt.network, out.Network)
		})
	}

	out := Classify(gateway.Payload{"Status": "VALIDATED", "BillAmount": "12.30"}, nil)
	require.NotNil(t, out.BillAmount)
	assert.Equal(t, 12.3, *out.BillAmount)

	out = Classify(gateway.Payload{"Status": "VALIDATED", "DisplayData": []any{
		map[string]any{"Label": "Name", "Value": "J DOE"},
		map[string]any{"Label": "Address", "Value": "  "},
	}}, nil)
	assert.Equal(t, []DisplayItem{{Label: "Name", Value: "J DOE"}}, out.DisplayData)
	assert.Nil(t, out.BillAmount)
}

func TestDisplayDataWithMixedValueTypes(t *testing.T) {
	var payload gateway.Payload
	require.NoError(t, json.Unmarshal([]byte(`{"Status":"VALIDATED","DisplayData":[
		{"Label":"Customer Name","Value":"J Moyo"},
		{"Label":"Arrears","Value":12.5},
		{"Label":"Meter","Value":37132567891},
		{"Label":"Prepaid","Value":true},
		{"Label":"Notes","Value":null}
	]}`), &payload))

	out := Classify(payload, nil)
	assert.True(t, out.Success)
	assert.Equal(t, []DisplayItem{
		{Label: "Customer Name", Value: "J Moyo"},
		{Label: "Arrears", Value: "12.5"},
		{Label: "Meter", Value: "37132567891"},
		{Label: "Prepaid", Value: "true"},
	}, out.DisplayData)
}

func TestNetworkFailureIsWarning(t *testing.T) {
	v := &fakeValidator{fn: func(gateway.PaymentRequest) (gateway.Payload, error) {
		return nil, apperrors.Wrap(apperrors.Network, "gateway ValidatePayment", errors.New("timeout"))
	}}
	d, clk := newDebouncer(v)
	defer d.Close()

	d.SetAccount("1234")
	clk.Advance(time.Second)
	d.Wait()
	st := d.State()
	assert.True(t, st.Warning())
	assert.True(t, st.Outcome.Network)
	assert.Equal(t, NetworkMessage, st.Outcome.Message)
}

func TestCloseStopsPendingTimer(t *testing.T) {
	v := &fakeValidator{fn: func(gateway.PaymentRequest) (gateway.Payload, error) { return validated("x"), nil }}
	d, clk := newDebouncer(v)

	d.SetAccount("1234")
	d.Close()
	clk.Advance(time.Second)
	d.Wait()
	assert.Empty(t, v.Calls())

	d.SetAccount("5678")
	clk.Advance(time.Second)
	assert.Empty(t, v.Calls())
}
