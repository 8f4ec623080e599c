// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session holds the process-wide checkout session: the validated token
// and the identifiers derived from it. A session only ever lives in memory.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	apperrors "billpay/cli/internal/errors"
	"billpay/cli/internal/gateway"
	"billpay/cli/internal/logging"
	"billpay/cli/internal/mode"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// Session is a snapshot of the session state. Empty strings mean "absent".
type Session struct {
	Token         string
	SessionID     string
	TokenPayload  map[string]any
	AccountNumber string
	ClientNumber  string
	Status        Status
}

// TokenValidator checks a token and returns its payload.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (gateway.Payload, error)
}

// View is what the application may render for the current session.
type View int

const (
	// ViewApp renders the checkout.
	ViewApp View = iota
	// ViewWaiting shows a neutral waiting state while the token is checked.
	ViewWaiting
	// ViewExpired is terminal; only a fresh launch with a new token recovers.
	ViewExpired
)

func (v View) String() string {
	switch v {
	case ViewWaiting:
		return "waiting"
	case ViewExpired:
		return "expired"
	default:
		return "app"
	}
}

// Store owns the session. Init is its only writer.
type Store struct {
	validator TokenValidator
	log       *zap.Logger

	once sync.Once

	mu      sync.RWMutex
	session Session
	err     error
	watch   []func(Status)
}

// NewStore creates an idle store.
func NewStore(v TokenValidator, logger *zap.Logger) *Store {
	return &Store{
		validator: v,
		log:       logging.OrNop(logger).Named("session"),
		session:   Session{Status: StatusIdle},
	}
}

// Init runs session bootstrap exactly once; later calls are no-ops.
//
// Outside iframe mode the session is valid without a token. In iframe mode
// the token must come from the launch URL: a missing token is invalid
// immediately, without asking the host.
func (s *Store) Init(ctx context.Context, env mode.Env) {
	s.once.Do(func() { s.init(ctx, env) })
}

func (s *Store) init(ctx context.Context, env mode.Env) {
	if env.Mode() != mode.Iframe {
		s.set(func(sess *Session) { sess.Status = StatusValid })
		return
	}

	params := mode.GetURLParams(env.Query)
	if params.Token == "" {
		s.fail(apperrors.New(apperrors.SessionInvalid, "no session token in launch parameters"))
		return
	}

	s.set(func(sess *Session) {
		sess.Token = params.Token
		sess.Status = StatusLoading
	})
	s.log.Debug("validating token", zap.String("token", logging.MaskToken(params.Token)))

	if s.validator == nil {
		s.fail(apperrors.New(apperrors.SessionInvalid, "no token validator configured"))
		return
	}
	payload, err := s.validator.ValidateToken(ctx, params.Token)
	if err != nil {
		s.fail(apperrors.Wrap(apperrors.SessionInvalid, "token validation failed", err))
		return
	}

	s.set(func(sess *Session) {
		sess.SessionID = sessionIDOf(payload)
		sess.TokenPayload = map[string]any(payload)
		sess.AccountNumber = params.AccountNumber
		sess.ClientNumber = params.ClientNumber
		sess.Status = StatusValid
	})
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.log.Warn("session invalid", zap.Error(err))
	s.set(func(sess *Session) { sess.Status = StatusInvalid })
}

func (s *Store) set(fn func(*Session)) {
	s.mu.Lock()
	before := s.session.Status
	fn(&s.session)
	after := s.session.Status
	watchers := append([]func(Status){}, s.watch...)
	s.mu.Unlock()

	if before != after {
		s.log.Debug("status", zap.String("from", string(before)), zap.String("to", string(after)))
		for _, w := range watchers {
			w(after)
		}
	}
}

// OnStatus registers fn to run on every status transition.
func (s *Store) OnStatus(fn func(Status)) {
	s.mu.Lock()
	s.watch = append(s.watch, fn)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.session
	if s.session.TokenPayload != nil {
		out.TokenPayload = make(map[string]any, len(s.session.TokenPayload))
		for k, v := range s.session.TokenPayload {
			out.TokenPayload[k] = v
		}
	}
	return out
}

// Status returns the current lifecycle state.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Status
}

// Err returns why the session became invalid, nil otherwise.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Gate decides what may render in mode m.
func (s *Store) Gate(m mode.Mode) View {
	if m != mode.Iframe {
		return ViewApp
	}
	switch s.Status() {
	case StatusIdle, StatusLoading:
		return ViewWaiting
	case StatusInvalid:
		return ViewExpired
	default:
		return ViewApp
	}
}

func sessionIDOf(p gateway.Payload) string {
	if id := p.String("sessionID"); id != "" {
		return id
	}
	return p.String("sessionId")
}
