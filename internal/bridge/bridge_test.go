// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billpay/cli/internal/bridge"
	"billpay/cli/internal/bridge/bridgetest"
	"billpay/cli/internal/bridge/model"
	"billpay/cli/internal/clock"
	apperrors "billpay/cli/internal/errors"
)

const hostOrigin = "https://hub.example.com"

type result struct {
	data json.RawMessage
	err  error
}

func newBridge(t *testing.T) (*bridge.Bridge, *bridgetest.Transport, *clock.Fake) {
	t.Helper()
	tr := bridgetest.NewTransport()
	clk := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	b := bridge.New(bridge.Config{
		Transport: tr,
		Embedded:  true,
		Referrer:  hostOrigin + "/apps/billpay",
		Clock:     clk,
	})
	require.NoError(t, b.Init())
	_, ok := tr.NextOfType(model.TypeIframeReady, time.Second)
	require.True(t, ok, "IFRAME_READY not sent")
	return b, tr, clk
}

func sendAsync(b *bridge.Bridge, ctx context.Context, msgType string) <-chan result {
	out := make(chan result, 1)
	go func() {
		data, err := b.SendToParent(ctx, msgType, map[string]string{"k": "v"}, true)
		out <- result{data, err}
	}()
	return out
}

func wait(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("request did not settle")
		return result{}
	}
}

func TestInitIsIdempotent(t *testing.T) {
	b, tr, _ := newBridge(t)
	require.NoError(t, b.Init())

	posts := tr.Posts()
	require.Len(t, posts, 1)
	ready := posts[0]
	assert.Equal(t, model.TypeIframeReady, ready.Message.Type)
	assert.Equal(t, model.AppSource, ready.Message.Source)
	assert.Empty(t, ready.Message.RequestID)
	assert.Equal(t, hostOrigin, ready.Target)
	assert.Equal(t, hostOrigin, b.ParentOrigin())
}

func TestReplyResolvesExactlyOnce(t *testing.T) {
	b, tr, _ := newBridge(t)
	ch := sendAsync(b, context.Background(), model.TypeRequestToken)

	req, ok := tr.NextOfType(model.TypeRequestToken, time.Second)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(req.Message.RequestID, "req_1_"), req.Message.RequestID)
	assert.Equal(t, 1, b.Pending())

	tr.Reply(hostOrigin, req.Message, model.TypeTokenResponse, map[string]string{"token": "t-1"})
	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"token":"t-1"}`, string(r.data))
	assert.Equal(t, 0, b.Pending())

	// A late duplicate reply finds no pending entry and has no effect.
	tr.Reply(hostOrigin, req.Message, model.TypeTokenResponse, map[string]string{"token": "t-2"})
	tr.Reply(hostOrigin, req.Message, "SOMETHING_ELSE", nil)
	assert.Equal(t, 0, b.Pending())
	select {
	case extra := <-ch:
		t.Fatalf("request settled twice: %+v", extra)
	default:
	}
}

func TestResultSuffixResolves(t *testing.T) {
	b, tr, _ := newBridge(t)
	ch := sendAsync(b, context.Background(), model.TypeRequestPayment)
	req, ok := tr.NextOfType(model.TypeRequestPayment, time.Second)
	require.True(t, ok)

	tr.Reply(hostOrigin, req.Message, model.TypePaymentResult, map[string]any{"success": true})
	r := wait(t, ch)
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"success":true}`, string(r.data))
}

func TestUnexpectedReplyTypeRejects(t *testing.T) {
	b, tr, _ := newBridge(t)
	ch := sendAsync(b, context.Background(), model.TypeRequestUserInfo)
	req, ok := tr.NextOfType(model.TypeRequestUserInfo, time.Second)
	require.True(t, ok)

	tr.Reply(hostOrigin, req.Message, "USER_INFO", map[string]string{})
	r := wait(t, ch)
	require.Error(t, r.err)
	assert.True(t, errors.Is(r.err, bridge.ErrUnexpectedResponse))
	assert.Equal(t, apperrors.UnexpectedResponse, apperrors.KindOf(r.err))
	assert.Contains(t, r.err.Error(), "Unexpected response type: USER_INFO")
	assert.Equal(t, 0, b.Pending())
}

func TestTimeoutRejectsAndFreesSlot(t *testing.T) {
	b, tr, clk := newBridge(t)
	ch := sendAsync(b, context.Background(), model.TypeRequestToken)
	req, ok := tr.NextOfType(model.TypeRequestToken, time.Second)
	require.True(t, ok)

	clk.Advance(bridge.DefaultTimeout - time.Millisecond)
	assert.Equal(t, 1, b.Pending())

	clk.Advance(time.Millisecond)
	r := wait(t, ch)
	require.Error(t, r.err)
	assert.True(t, errors.Is(r.err, bridge.ErrTimeout))
	assert.Equal(t, apperrors.RPCTimeout, apperrors.KindOf(r.err))
	assert.Contains(t, r.err.Error(), "Request timeout: REQUEST_TOKEN")
	assert.Equal(t, 0, b.Pending())

	// A reply after the timeout is ignored.
	tr.Reply(hostOrigin, req.Message, model.TypeTokenResponse, nil)
	assert.Equal(t, 0, b.Pending())

	// Later requests are unaffected.
	ch2 := sendAsync(b, context.Background(), model.TypeRequestToken)
	req2, ok := tr.NextOfType(model.TypeRequestToken, time.Second)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(req2.Message.RequestID, "req_2_"))
	tr.Reply(hostOrigin, req2.Message, model.TypeTokenResponse, map[string]string{"token": "ok"})
	require.NoError(t, wait(t, ch2).err)
}

func TestReplyStopsTimer(t *testing.T) {
	b, tr, clk := newBridge(t)
	ch := sendAsync(b, context.Background(), model.TypeRequestToken)
	req, ok := tr.NextOfType(model.TypeRequestToken, time.Second)
	require.True(t, ok)
	require.Equal(t, 1, clk.Pending())

	tr.Reply(hostOrigin, req.Message, model.TypeTokenResponse, nil)
	require.NoError(t, wait(t, ch).err)
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(time.Minute)
	assert.Equal(t, 0, b.Pending())
}

func TestContextCancelFreesSlot(t *testing.T) {
	b, tr, _ := newBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	ch := sendAsync(b, ctx, model.TypeRequestToken)
	_, ok := tr.NextOfType(model.TypeRequestToken, time.Second)
	require.True(t, ok)

	cancel()
	r := wait(t, ch)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, 0, b.Pending())
}

func TestInboundFiltering(t *testing.T) {
	b, tr, _ := newBridge(t)

	var got []string
	b.On(model.TypeUserUpdate, func(data json.RawMessage) { got = append(got, string(data)) })

	tr.Deliver("https://evil.example.com", bridgetest.HostMessage(model.TypeUserUpdate, "", "evil-origin"))
	spoofed := bridgetest.HostMessage(model.TypeUserUpdate, "", "wrong-source")
	spoofed.Source = "someone-else"
	tr.Deliver(hostOrigin, spoofed)
	tr.Deliver(hostOrigin, bridgetest.HostMessage(model.TypeConfigUpdate, "", "no-handler"))
	tr.Deliver(hostOrigin, bridgetest.HostMessage(model.TypeUserUpdate, "", "ok"))

	assert.Equal(t, []string{`"ok"`}, got)

	b.Off(model.TypeUserUpdate)
	tr.Deliver(hostOrigin, bridgetest.HostMessage(model.TypeUserUpdate, "", "after-off"))
	assert.Len(t, got, 1)
}

func TestReplyFromWrongOriginIsIgnored(t *testing.T) {
	b, tr, clk := newBridge(t)
	ch := sendAsync(b, context.Background(), model.TypeRequestToken)
	req, ok := tr.NextOfType(model.TypeRequestToken, time.Second)
	require.True(t, ok)

	tr.Reply("https://evil.example.com", req.Message, model.TypeTokenResponse, map[string]string{"token": "stolen"})
	assert.Equal(t, 1, b.Pending())

	clk.Advance(bridge.DefaultTimeout)
	assert.ErrorIs(t, wait(t, ch).err, bridge.ErrTimeout)
}

func TestUnknownParentOriginPostsToAny(t *testing.T) {
	tr := bridgetest.NewTransport()
	b := bridge.New(bridge.Config{Transport: tr, Embedded: true})
	require.NoError(t, b.Init())

	posts := tr.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "*", posts[0].Target)

	var got string
	b.On(model.TypeConfigUpdate, func(data json.RawMessage) { got = string(data) })
	tr.Deliver("https://anything.example", bridgetest.HostMessage(model.TypeConfigUpdate, "", "x"))
	assert.Equal(t, `"x"`, got)
}

func TestNotEmbeddedIsNoop(t *testing.T) {
	tr := bridgetest.NewTransport()
	b := bridge.New(bridge.Config{Transport: tr, Embedded: false})
	require.NoError(t, b.Init())

	data, err := b.RequestToken(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, b.RequestClose(context.Background()))
	assert.Empty(t, tr.Posts())
}

func TestPostFailure(t *testing.T) {
	b, tr, _ := newBridge(t)
	tr.PostErr = errors.New("channel gone")

	_, err := b.SendToParent(context.Background(), model.TypeRequestToken, nil, true)
	assert.ErrorContains(t, err, "channel gone")
	assert.Equal(t, 0, b.Pending())

	assert.ErrorContains(t, b.RequestNavigation(context.Background(), "https://x"), "channel gone")
}

func TestFireAndForgetMessages(t *testing.T) {
	b, tr, _ := newBridge(t)
	ctx := context.Background()

	require.NoError(t, b.NotifyPaymentComplete(ctx, bridge.PaymentComplete{TransactionID: "GB-1", Amount: 10, Currency: "USD", Status: "SUCCESS"}))
	require.NoError(t, b.RequestClose(ctx))
	require.NoError(t, b.RequestNavigation(ctx, "https://hub.example.com/home"))

	posts := tr.Posts()[1:]
	require.Len(t, posts, 3)
	assert.Equal(t, model.TypePaymentComplete, posts[0].Message.Type)
	assert.JSONEq(t, `{"transactionId":"GB-1","amount":10,"currency":"USD","status":"SUCCESS"}`, string(posts[0].Message.Data))
	assert.Equal(t, model.TypeCloseIframe, posts[1].Message.Type)
	assert.JSONEq(t, `{"url":"https://hub.example.com/home"}`, string(posts[2].Message.Data))
	for _, p := range posts {
		assert.Empty(t, p.Message.RequestID)
	}
	assert.Equal(t, 0, b.Pending())
}

func TestScriptedHostAnswersSynchronously(t *testing.T) {
	tr := bridgetest.NewTransport()
	tr.OnPost = func(tr *bridgetest.Transport, msg model.Message) {
		if msg.Type == model.TypeRequestUserInfo {
			tr.Reply(hostOrigin, msg, model.TypeUserInfoResponse, map[string]string{"Fullname": "Jane"})
		}
	}
	b := bridge.New(bridge.Config{Transport: tr, Embedded: true, Referrer: hostOrigin})
	require.NoError(t, b.Init())

	data, err := b.GetUserInfo(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fullname":"Jane"}`, string(data))
}
