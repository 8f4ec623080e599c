// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bridgetest provides an in-process Transport that stands in for a
// parent host in tests.
package bridgetest

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"billpay/cli/internal/bridge/model"
)

// Post is one outbound message observed by the fake.
type Post struct {
	Message model.Message
	Target  string
}

// Transport records outbound messages and lets tests inject inbound ones.
type Transport struct {
	mu       sync.Mutex
	posts    []Post
	listener func(model.Inbound)
	closed   bool
	posted   chan Post

	// PostErr, when set, is returned from every Post.
	PostErr error
	// OnPost, when set, runs after each recorded post. Use it to script a host.
	OnPost func(t *Transport, msg model.Message)
}

// NewTransport returns an empty fake.
func NewTransport() *Transport {
	return &Transport{posted: make(chan Post, 64)}
}

func (t *Transport) Post(msg model.Message, target string) error {
	t.mu.Lock()
	if t.PostErr != nil {
		err := t.PostErr
		t.mu.Unlock()
		return err
	}
	if t.closed {
		t.mu.Unlock()
		return errors.New("transport closed")
	}
	p := Post{Message: msg, Target: target}
	t.posts = append(t.posts, p)
	hook := t.OnPost
	t.mu.Unlock()

	select {
	case t.posted <- p:
	default:
	}
	if hook != nil {
		hook(t, msg)
	}
	return nil
}

func (t *Transport) Listen(fn func(model.Inbound)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = fn
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Posts returns a copy of every message posted so far.
func (t *Transport) Posts() []Post {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Post, len(t.posts))
	copy(out, t.posts)
	return out
}

// Next waits for the next posted message.
func (t *Transport) Next(timeout time.Duration) (Post, bool) {
	select {
	case p := <-t.posted:
		return p, true
	case <-time.After(timeout):
		return Post{}, false
	}
}

// NextOfType waits for the next posted message of msgType, skipping others.
func (t *Transport) NextOfType(msgType string, timeout time.Duration) (Post, bool) {
	deadline := time.Now().Add(timeout)
	for {
		p, ok := t.Next(time.Until(deadline))
		if !ok {
			return Post{}, false
		}
		if p.Message.Type == msgType {
			return p, true
		}
	}
}

// Deliver hands msg to the listener as if it arrived from origin.
func (t *Transport) Deliver(origin string, msg model.Message) {
	t.mu.Lock()
	fn := t.listener
	t.mu.Unlock()
	if fn != nil {
		fn(model.Inbound{Origin: origin, Message: msg})
	}
}

// Reply answers req as the parent host with msgType and data.
func (t *Transport) Reply(origin string, req model.Message, msgType string, data any) {
	t.Deliver(origin, HostMessage(msgType, req.RequestID, data))
}

// HostMessage builds an envelope as the parent host would send it.
func HostMessage(msgType, requestID string, data any) model.Message {
	raw, _ := json.Marshal(data)
	return model.Message{
		Type:      msgType,
		Source:    model.ParentSource,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
		RequestID: requestID,
	}
}
