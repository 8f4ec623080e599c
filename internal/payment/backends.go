// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"billpay/cli/internal/bridge"
	"billpay/cli/internal/clock"
	apperrors "billpay/cli/internal/errors"
	"billpay/cli/internal/gateway"
	"billpay/cli/internal/native"
)

// ErrNativeUnavailable is returned when native mode is active but no shell
// capability is connected.
var ErrNativeUnavailable = apperrors.New(apperrors.NativeUnavailable, "Native payment bridge not available")

// NativeCapability is the payment surface of a native app shell.
type NativeCapability interface {
	Pay(ctx context.Context, req native.PayRequest) (*native.PayResponse, error)
	GetUserInfo(ctx context.Context) (map[string]any, error)
}

// NativeBackend charges through the native shell.
type NativeBackend struct {
	Capability NativeCapability
	Clock      clock.Clock
}

func (n *NativeBackend) Pay(ctx context.Context, req Request) (Result, error) {
	if n == nil || n.Capability == nil {
		return Result{}, ErrNativeUnavailable
	}
	metadata := map[string]any{"accountValue": req.AccountValue}
	if req.Product != nil {
		metadata["productId"] = req.Product.Id.String()
	}
	if req.Provider != nil {
		metadata["providerId"] = req.Provider.Id.String()
	}

	resp, err := n.Capability.Pay(ctx, native.PayRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description(),
		Metadata:    metadata,
	})
	if err != nil {
		return Result{}, err
	}

	status := orDefault(resp.Status, StatusSuccess)
	raw, _ := json.Marshal(resp.Raw)
	return Result{
		Success:       status == StatusSuccess || status == StatusCompleted,
		TransactionID: resp.TransactionID,
		Status:        status,
		Message:       orDefault(resp.Message, defaultMessage),
		Timestamp:     now(n.Clock),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Raw:           raw,
	}, nil
}

func (n *NativeBackend) UserInfo(ctx context.Context) (Profile, error) {
	if n == nil || n.Capability == nil {
		return nil, nil
	}
	info, err := n.Capability.GetUserInfo(ctx)
	if errors.Is(err, native.ErrUnsupported) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Profile(info), nil
}

// HostRPC is the part of the host bridge the iframe backend uses.
type HostRPC interface {
	RequestPayment(ctx context.Context, req bridge.PaymentRequest) (json.RawMessage, error)
	GetUserInfo(ctx context.Context) (json.RawMessage, error)
}

// IframeBackend charges through the parent host.
type IframeBackend struct {
	Host  HostRPC
	Clock clock.Clock
}

type hostPaymentReply struct {
	Success       *bool           `json:"success"`
	TransactionID string          `json:"transactionId"`
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	Timestamp     json.RawMessage `json:"timestamp"`
}

func (f *IframeBackend) Pay(ctx context.Context, req Request) (Result, error) {
	if f == nil || f.Host == nil {
		return Result{}, apperrors.New(apperrors.PaymentFailed, "host returned no payment result")
	}
	raw, err := f.Host.RequestPayment(ctx, bridge.PaymentRequest{
		Amount:       req.Amount,
		Currency:     req.Currency,
		Description:  req.Description(),
		AccountValue: req.AccountValue,
		Product:      req.Product,
		Provider:     req.Provider,
		Country:      req.Country,
		Service:      req.Service,
	})
	if err != nil {
		return Result{}, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return Result{}, apperrors.New(apperrors.PaymentFailed, "host returned no payment result")
	}

	var reply hostPaymentReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return Result{}, apperrors.Wrap(apperrors.UnexpectedResponse, "decode host payment result", err)
	}
	txID := reply.TransactionID
	if txID == "" {
		txID = reply.ID
	}
	ts, ok := parseTimestamp(reply.Timestamp)
	if !ok {
		ts = now(f.Clock)
	}
	return Result{
		// Hosts may omit the field on success; only an explicit false fails.
		Success:       reply.Success == nil || *reply.Success,
		TransactionID: txID,
		Status:        orDefault(reply.Status, StatusSuccess),
		Message:       orDefault(reply.Message, defaultMessage),
		Timestamp:     ts,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Raw:           raw,
	}, nil
}

func (f *IframeBackend) UserInfo(ctx context.Context) (Profile, error) {
	if f == nil || f.Host == nil {
		return nil, nil
	}
	raw, err := f.Host.GetUserInfo(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Wrap(apperrors.UnexpectedResponse, "decode host user info", err)
	}
	return p, nil
}

// MockProfile is the user the mock backend reports.
var MockProfile = Profile{
	"CustomerId":   "1",
	"Fullname":     "Test User",
	"MobileNumber": gateway.DefaultMobileNumber,
	"EmailAddress": "test@example.com",
}

// MockBackend simulates the bank: it waits Delay, then always approves.
type MockBackend struct {
	Delay time.Duration
	Clock clock.Clock
}

func (m *MockBackend) Pay(ctx context.Context, req Request) (Result, error) {
	if m.Delay > 0 {
		clk := m.Clock
		if clk == nil {
			clk = clock.Real()
		}
		elapsed := make(chan struct{})
		t := clk.AfterFunc(m.Delay, func() { close(elapsed) })
		defer t.Stop()
		select {
		case <-elapsed:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	ts := now(m.Clock)
	return Result{
		Success:       true,
		TransactionID: mockTransactionID(ts),
		Status:        StatusSuccess,
		Message:       defaultMessage,
		Timestamp:     ts,
		Amount:        req.Amount,
		Currency:      req.Currency,
	}, nil
}

func (m *MockBackend) UserInfo(context.Context) (Profile, error) {
	out := make(Profile, len(MockProfile))
	for k, v := range MockProfile {
		out[k] = v
	}
	return out, nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// mockTransactionID returns GB-<unix ms>-<9 base36 chars>.
func mockTransactionID(ts time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return fmt.Sprintf("GB-%d-%s", ts.UnixMilli(), suffix)
}

func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, true
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		return time.Time{}, false
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func now(c clock.Clock) time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
