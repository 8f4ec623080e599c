// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bridge implements the request/response protocol between the embedded
// checkout and its parent host. Messages travel over a swappable Transport;
// requests that expect a reply are correlated by request id, tracked in a
// pending map and expire after a timeout.
//
// Every pending request settles exactly once: either a correlated reply or the
// timeout removes it from the map, and whichever comes second finds nothing.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"billpay/cli/internal/bridge/model"
	"billpay/cli/internal/clock"
	apperrors "billpay/cli/internal/errors"
	"billpay/cli/internal/logging"
	"billpay/cli/internal/mode"
)

// DefaultTimeout bounds how long a request waits for the host's reply.
const DefaultTimeout = 30 * time.Second

var (
	// ErrTimeout is matched by errors returned when the host did not reply in time.
	ErrTimeout = errors.New("request timeout")
	// ErrUnexpectedResponse is matched by errors returned for replies of the wrong type.
	ErrUnexpectedResponse = errors.New("unexpected response type")
)

// Transport carries envelopes to and from the parent host.
type Transport interface {
	// Post sends msg addressed to targetOrigin ("*" when the origin is unknown).
	Post(msg model.Message, targetOrigin string) error
	// Listen registers the inbound callback and starts delivery.
	Listen(fn func(model.Inbound)) error
	Close() error
}

// Handler receives the data of an unsolicited host message.
type Handler func(data json.RawMessage)

// Config configures a Bridge.
type Config struct {
	Transport Transport
	// Embedded reports whether a parent host exists. When false every call
	// is a logged no-op so that dependent code runs without a host.
	Embedded bool
	// Referrer of the launching document; the parent origin is derived from it.
	Referrer string
	Timeout  time.Duration
	Clock    clock.Clock
	Logger   *zap.Logger
}

type reply struct {
	data json.RawMessage
	err  error
}

type pendingRequest struct {
	msgType string
	ch      chan reply
	timer   clock.Timer
}

// Bridge is the checkout side of the host protocol.
type Bridge struct {
	transport Transport
	embedded  bool
	referrer  string
	timeout   time.Duration
	clock     clock.Clock
	log       *zap.Logger

	initOnce sync.Once
	initErr  error

	mu           sync.Mutex
	parentOrigin string
	handlers     map[string]Handler
	pending      map[string]*pendingRequest
	counter      uint64
}

// New creates a Bridge. Call Init before sending requests.
func New(cfg Config) *Bridge {
	b := &Bridge{
		transport: cfg.Transport,
		embedded:  cfg.Embedded && cfg.Transport != nil,
		referrer:  cfg.Referrer,
		timeout:   cfg.Timeout,
		clock:     cfg.Clock,
		log:       logging.OrNop(cfg.Logger).Named("bridge"),
		handlers:  make(map[string]Handler),
		pending:   make(map[string]*pendingRequest),
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	if b.clock == nil {
		b.clock = clock.Real()
	}
	return b
}

// Init resolves the parent origin, starts listening and announces readiness.
// It runs once; later calls return the first result.
func (b *Bridge) Init() error {
	b.initOnce.Do(func() {
		if !b.embedded {
			b.log.Debug("not embedded, bridge inactive")
			return
		}
		b.mu.Lock()
		b.parentOrigin = mode.OriginOf(b.referrer)
		b.mu.Unlock()

		if err := b.transport.Listen(b.handleInbound); err != nil {
			b.initErr = fmt.Errorf("listen: %w", err)
			return
		}
		if _, err := b.SendToParent(context.Background(), model.TypeIframeReady, nil, false); err != nil {
			b.log.Warn("failed to announce readiness", zap.Error(err))
		}
	})
	return b.initErr
}

// ParentOrigin returns the resolved parent origin, "" when unknown.
func (b *Bridge) ParentOrigin() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parentOrigin
}

// Embedded reports whether a parent host is attached.
func (b *Bridge) Embedded() bool { return b.embedded }

// On registers the handler for unsolicited messages of msgType.
func (b *Bridge) On(msgType string, h Handler) {
	b.mu.Lock()
	b.handlers[msgType] = h
	b.mu.Unlock()
}

// Off removes the handler for msgType.
func (b *Bridge) Off(msgType string) {
	b.mu.Lock()
	delete(b.handlers, msgType)
	b.mu.Unlock()
}

// Pending returns the number of requests awaiting a reply.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// SendToParent posts a message to the host. Fire-and-forget messages return
// (nil, nil) once posted. When expectResponse is set it blocks until the
// correlated reply arrives, the timeout elapses or ctx is done.
func (b *Bridge) SendToParent(ctx context.Context, msgType string, data any, expectResponse bool) (json.RawMessage, error) {
	if !b.embedded {
		b.log.Warn("not in iframe, ignoring message", zap.String("type", msgType))
		return nil, nil
	}

	payload, err := encodeData(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msgType, err)
	}
	msg := model.Message{
		Type:      msgType,
		Source:    model.AppSource,
		Data:      payload,
		Timestamp: b.clock.Now().UnixMilli(),
	}

	if !expectResponse {
		return nil, b.post(msg)
	}

	b.mu.Lock()
	b.counter++
	msg.RequestID = fmt.Sprintf("req_%d_%d", b.counter, msg.Timestamp)
	p := &pendingRequest{msgType: msgType, ch: make(chan reply, 1)}
	b.pending[msg.RequestID] = p
	id := msg.RequestID
	p.timer = b.clock.AfterFunc(b.timeout, func() {
		b.settle(id, reply{err: apperrors.Wrap(apperrors.RPCTimeout, "Request timeout: "+msgType, ErrTimeout)})
	})
	b.mu.Unlock()

	if err := b.post(msg); err != nil {
		b.drop(id)
		return nil, err
	}

	select {
	case r := <-p.ch:
		return r.data, r.err
	case <-ctx.Done():
		b.drop(id)
		return nil, ctx.Err()
	}
}

func (b *Bridge) post(msg model.Message) error {
	target := b.ParentOrigin()
	if target == "" {
		target = "*"
	}
	if err := b.transport.Post(msg, target); err != nil {
		return fmt.Errorf("post %s: %w", msg.Type, err)
	}
	b.log.Debug("sent", zap.String("type", msg.Type), zap.String("request_id", msg.RequestID))
	return nil
}

// settle delivers r to the pending request id and removes it.
// It reports false when the request was already settled.
func (b *Bridge) settle(id string, r reply) bool {
	b.mu.Lock()
	p, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.ch <- r
	return true
}

func (b *Bridge) drop(id string) {
	b.mu.Lock()
	p, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if ok && p.timer != nil {
		p.timer.Stop()
	}
}

func (b *Bridge) handleInbound(in model.Inbound) {
	origin := b.ParentOrigin()
	if origin != "" && in.Origin != origin {
		b.log.Debug("dropped message from untrusted origin", zap.String("origin", in.Origin))
		return
	}
	msg := in.Message
	if msg.Source != model.ParentSource {
		return
	}

	if msg.RequestID != "" {
		var r reply
		if isReplyType(msg.Type) {
			r.data = msg.Data
		} else {
			r.err = apperrors.Wrap(apperrors.UnexpectedResponse, "Unexpected response type: "+msg.Type, ErrUnexpectedResponse)
		}
		if b.settle(msg.RequestID, r) {
			return
		}
	}

	b.mu.Lock()
	h := b.handlers[msg.Type]
	b.mu.Unlock()
	if h != nil {
		h(msg.Data)
	}
}

func isReplyType(t string) bool {
	return strings.HasSuffix(t, "_RESPONSE") || strings.HasSuffix(t, "_RESULT")
}

func encodeData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
