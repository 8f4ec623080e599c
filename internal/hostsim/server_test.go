// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package hostsim

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billpay/cli/internal/bridge"
	"billpay/cli/internal/bridge/model"
	"billpay/cli/internal/bridge/wsclient"
	"billpay/cli/internal/gateway"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startHost(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func connect(t *testing.T, hostURL string) *bridge.Bridge {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := wsclient.Dial(ctx, hostURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	b := bridge.New(bridge.Config{Transport: tr, Embedded: true, Referrer: hostURL + "/checkout", Timeout: 5 * time.Second})
	require.NoError(t, b.Init())
	return b
}

func TestHealthz(t *testing.T) {
	_, srv := startHost(t, Options{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestValidateToken(t *testing.T) {
	_, srv := startHost(t, Options{Tokens: map[string]gateway.Payload{
		"good": {"sessionId": "S-42", "userId": "u1"},
	}})
	gw := gateway.New(gateway.Options{BaseURL: srv.URL, TokenBaseURL: srv.URL})

	payload, err := gw.ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "S-42", payload.String("sessionId"))

	_, err = gw.ValidateToken(context.Background(), "bad")
	assert.ErrorIs(t, err, gateway.ErrInvalidToken)
}

func TestValidateToken_AcceptAny(t *testing.T) {
	_, srv := startHost(t, Options{})
	gw := gateway.New(gateway.Options{BaseURL: srv.URL, TokenBaseURL: srv.URL})

	payload, err := gw.ValidateToken(context.Background(), "anything")
	require.NoError(t, err)
	assert.Regexp(t, `^sim-`, payload.String("sessionId"))
}

func TestBridgeOverWebsocket(t *testing.T) {
	host, srv := startHost(t, Options{
		Token: "tok-abc",
		Pay: func(req json.RawMessage) any {
			var r map[string]any
			_ = json.Unmarshal(req, &r)
			return map[string]any{"success": true, "transactionId": "HUB-1", "status": "SUCCESS", "echo": r["accountValue"]}
		},
	})
	b := connect(t, srv.URL)
	ctx := context.Background()

	_, ok := host.WaitFor(model.TypeIframeReady, 2*time.Second)
	require.True(t, ok, "checkout announces readiness")

	tok, err := b.RequestToken(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"tok-abc"}`, string(tok))

	res, err := b.RequestPayment(ctx, bridge.PaymentRequest{Amount: 10, Currency: "USD", AccountValue: "12345678"})
	require.NoError(t, err)
	var paid map[string]any
	require.NoError(t, json.Unmarshal(res, &paid))
	assert.Equal(t, "HUB-1", paid["transactionId"])
	assert.Equal(t, "12345678", paid["echo"])

	user, err := b.GetUserInfo(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(user), "Sim User")

	require.NoError(t, b.NotifyPaymentComplete(ctx, bridge.PaymentComplete{TransactionID: "HUB-1", Amount: 10, Currency: "USD", Status: "SUCCESS"}))
	done, ok := host.WaitFor(model.TypePaymentComplete, 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, model.AppSource, done.Source)
	assert.Contains(t, string(done.Data), "HUB-1")
	assert.Zero(t, b.Pending())
}

func TestPushReachesHandlers(t *testing.T) {
	host, srv := startHost(t, Options{})
	b := connect(t, srv.URL)

	got := make(chan json.RawMessage, 1)
	b.On(model.TypeUserUpdate, func(data json.RawMessage) { got <- data })

	_, ok := host.WaitFor(model.TypeIframeReady, 2*time.Second)
	require.True(t, ok)
	require.Equal(t, 1, host.Connections())
	require.NoError(t, host.Push(model.TypeUserUpdate, map[string]any{"Fullname": "Rudo"}))

	select {
	case data := <-got:
		assert.JSONEq(t, `{"Fullname":"Rudo"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("USER_UPDATE not delivered")
	}
}

func TestNoticesAreRecorded(t *testing.T) {
	host, srv := startHost(t, Options{})
	b := connect(t, srv.URL)
	_, ok := host.WaitFor(model.TypeIframeReady, 2*time.Second)
	require.True(t, ok)

	_, err := b.SendToParent(context.Background(), model.TypeCloseIframe, nil, false)
	require.NoError(t, err)
	_, ok = host.WaitFor(model.TypeCloseIframe, 2*time.Second)
	require.True(t, ok)
	for _, m := range host.Received() {
		assert.Equal(t, model.AppSource, m.Source)
	}
}
