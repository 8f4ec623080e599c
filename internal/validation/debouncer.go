// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package validation validates account identifiers as the user types without
// flooding the gateway. Input is debounced; every fired validation gets a
// fresh request id and only the most recently fired request may publish its
// result, so a slow earlier response never overwrites a newer one.
package validation

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"billpay/cli/internal/clock"
	"billpay/cli/internal/gateway"
	"billpay/cli/internal/logging"
)

// DefaultDelay is the quiet period after the last keystroke.
const DefaultDelay = time.Second

// Validator checks a payment request with the gateway.
type Validator interface {
	ValidatePayment(ctx context.Context, req gateway.PaymentRequest) (gateway.Payload, error)
}

// CustomerSource provides the customer block for validation requests.
type CustomerSource interface {
	CustomerDetails(ctx context.Context) gateway.CustomerDetails
}

// Phase is where the account field's validation stands.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseDone
)

// State is the UI-visible validation state.
type State struct {
	Phase     Phase
	RequestID string
	Outcome   Outcome
}

// Validated reports whether the account was recognised.
func (s State) Validated() bool { return s.Phase == PhaseDone && s.Outcome.Success }

// Warning reports whether the user should confirm before continuing.
// A failed validation never blocks the checkout.
func (s State) Warning() bool { return s.Phase == PhaseDone && !s.Outcome.Success }

// Config configures a Debouncer for one product's account field.
type Config struct {
	Product   gateway.Product
	Validator Validator
	Customers CustomerSource
	// POSID fills the cashier, store and terminal ids.
	POSID string
	Delay time.Duration
	Clock clock.Clock
	// NewRequestID defaults to gateway.NewRequestID.
	NewRequestID func() string
	Logger       *zap.Logger
}

// Debouncer owns the validation state of one account field.
type Debouncer struct {
	cfg Config
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	account  string
	amount   string
	timer    clock.Timer
	current  string
	state    State
	closed   bool
	watchers []func(State)
	inflight sync.WaitGroup
}

// New creates a Debouncer. Close it when the field goes away.
func New(cfg Config) *Debouncer {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.NewRequestID == nil {
		cfg.NewRequestID = gateway.NewRequestID
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		cfg:    cfg,
		log:    logging.OrNop(cfg.Logger).Named("validation"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnChange registers fn to receive every published state.
func (d *Debouncer) OnChange(fn func(State)) {
	d.mu.Lock()
	d.watchers = append(d.watchers, fn)
	d.mu.Unlock()
}

// State returns the current validation state.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetAmount records the latest amount. It does not trigger validation; the
// value is read when the next validation fires.
func (d *Debouncer) SetAmount(v string) {
	d.mu.Lock()
	d.amount = v
	d.mu.Unlock()
}

// SetAccount records a keystroke. A non-empty value restarts the debounce
// timer; an empty value clears any result immediately.
func (d *Debouncer) SetAccount(v string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.account = v
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if strings.TrimSpace(v) != "" {
		d.timer = d.cfg.Clock.AfterFunc(d.cfg.Delay, d.fire)
		d.mu.Unlock()
		return
	}
	// Nothing in flight may repopulate a cleared field.
	d.current = ""
	changed := d.state.Phase != PhaseIdle
	d.state = State{Phase: PhaseIdle}
	st, watchers := d.state, d.snapshotWatchers()
	d.mu.Unlock()
	if changed {
		notify(watchers, st)
	}
}

// Close stops the timer and drops any in-flight result.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.current = ""
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.cancel()
}

// Wait blocks until every fired validation has finished.
func (d *Debouncer) Wait() {
	d.inflight.Wait()
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	account := strings.TrimSpace(d.account)
	if d.closed || account == "" {
		d.mu.Unlock()
		return
	}
	amount := d.amount
	id := d.cfg.NewRequestID()
	d.current = id
	d.timer = nil
	d.state = State{Phase: PhaseValidating, RequestID: id}
	st, watchers := d.state, d.snapshotWatchers()
	d.inflight.Add(1)
	d.mu.Unlock()

	notify(watchers, st)
	go d.validate(id, account, amount)
}

func (d *Debouncer) validate(id, account, amount string) {
	defer d.inflight.Done()

	value, _ := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	customer := gateway.DefaultCustomerDetails()
	if d.cfg.Customers != nil {
		customer = d.cfg.Customers.CustomerDetails(d.ctx)
	}
	p := d.cfg.Product
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	req := gateway.PaymentRequest{
		RequestId: id,
		Amount:    value,
		CreditPartyIdentifiers: []gateway.CreditPartyValue{{
			IdentifierFieldName:  p.IdentifierFieldName(),
			IdentifierFieldValue: account,
		}},
		Currency:        currency,
		CustomerDetails: customer,
		POSDetails: gateway.POSDetails{
			CashierId:  d.cfg.POSID,
			StoreId:    d.cfg.POSID,
			TerminalId: d.cfg.POSID,
		},
		ProductId: p.Id,
		Quantity:  1,
	}

	payload, err := d.cfg.Validator.ValidatePayment(d.ctx, req)
	outcome := Classify(payload, err)

	d.mu.Lock()
	if d.current != id {
		d.mu.Unlock()
		d.log.Debug("discarded superseded validation", zap.String("request_id", id))
		return
	}
	d.state = State{Phase: PhaseDone, RequestID: id, Outcome: outcome}
	st, watchers := d.state, d.snapshotWatchers()
	d.mu.Unlock()

	if err != nil {
		d.log.Warn("validation failed", zap.String("request_id", id), zap.Error(err))
	}
	notify(watchers, st)
}

func (d *Debouncer) snapshotWatchers() []func(State) {
	return append([]func(State){}, d.watchers...)
}

func notify(watchers []func(State), st State) {
	for _, w := range watchers {
		w(st)
	}
}
