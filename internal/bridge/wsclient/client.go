// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package wsclient carries the host protocol over a websocket connection to
// the parent host. It is the production bridge.Transport.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"billpay/cli/internal/bridge/model"
	"billpay/cli/internal/logging"
)

// ErrOriginMismatch is returned when a message is addressed to an origin other
// than the connected host's. Such messages are never sent.
var ErrOriginMismatch = errors.New("target origin does not match host")

// Transport is a websocket connection to the parent host.
type Transport struct {
	conn   *websocket.Conn
	origin string
	log    *zap.Logger

	writeMu sync.Mutex

	listenOnce sync.Once
	done       chan struct{}
}

// Dial connects to the host's websocket endpoint. hostURL may use http(s) or
// ws(s) schemes; the host origin is derived from it.
func Dial(ctx context.Context, hostURL string, logger *zap.Logger) (*Transport, error) {
	u, err := url.Parse(hostURL)
	if err != nil {
		return nil, fmt.Errorf("parse host url: %w", err)
	}
	origin, wsURL, err := endpoints(u)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Origin", origin)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}
	return &Transport{
		conn:   conn,
		origin: origin,
		log:    logging.OrNop(logger).Named("wsclient"),
		done:   make(chan struct{}),
	}, nil
}

// Origin returns the connected host's origin.
func (t *Transport) Origin() string { return t.origin }

// Post writes msg unless targetOrigin names a different host.
func (t *Transport) Post(msg model.Message, targetOrigin string) error {
	if targetOrigin != "*" && targetOrigin != t.origin {
		return ErrOriginMismatch
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(msg)
}

// Listen starts the read loop. It stops at the first read error.
func (t *Transport) Listen(fn func(model.Inbound)) error {
	started := false
	t.listenOnce.Do(func() {
		started = true
		go t.readLoop(fn)
	})
	if !started {
		return errors.New("already listening")
	}
	return nil
}

func (t *Transport) readLoop(fn func(model.Inbound)) {
	defer close(t.done)
	for {
		var msg model.Message
		if err := t.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
				t.log.Debug("host connection closed")
			} else {
				t.log.Warn("read from host failed", zap.Error(err))
			}
			return
		}
		fn(model.Inbound{Origin: t.origin, Message: msg})
	}
}

// Close sends a close frame and tears the connection down.
func (t *Transport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return t.conn.Close()
}

// Done is closed when the read loop exits.
func (t *Transport) Done() <-chan struct{} { return t.done }

func endpoints(u *url.URL) (origin, wsURL string, err error) {
	ws := *u
	switch u.Scheme {
	case "http", "ws":
		origin = "http://" + u.Host
		ws.Scheme = "ws"
	case "https", "wss":
		origin = "https://" + u.Host
		ws.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("unsupported host url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", errors.New("host url has no host")
	}
	if ws.Path == "" || ws.Path == "/" {
		ws.Path = "/ws"
	}
	return origin, ws.String(), nil
}
