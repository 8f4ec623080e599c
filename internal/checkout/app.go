// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package checkout drives a bill payment from catalog selection to receipt.
// App wires the mode, session, host bridge, payment channels and gateway for
// one process; Flow is a single checkout built from an App.
package checkout

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"billpay/cli/internal/bridge"
	"billpay/cli/internal/bridge/model"
	"billpay/cli/internal/cache"
	"billpay/cli/internal/clock"
	"billpay/cli/internal/config"
	"billpay/cli/internal/gateway"
	"billpay/cli/internal/ledger"
	"billpay/cli/internal/logging"
	"billpay/cli/internal/mode"
	"billpay/cli/internal/payment"
	"billpay/cli/internal/session"
)

// Gateway is the gateway surface the App needs, including token checks.
type Gateway interface {
	gateway.API
	session.TokenValidator
}

// Options configures an App. Zero values fall back to config-driven defaults.
type Options struct {
	Config config.Config
	Env    mode.Env
	// Transport reaches the parent host; required for iframe mode.
	Transport bridge.Transport
	// Native is the native shell capability; nil outside native mode.
	Native  payment.NativeCapability
	Gateway Gateway
	Cache   cache.Cache
	Ledger  ledger.Store
	Clock   clock.Clock
	Logger  *zap.Logger
}

// App is the per-process checkout context.
type App struct {
	Env      mode.Env
	Detect   mode.Detector
	Session  *session.Store
	Bridge   *bridge.Bridge
	Gateway  Gateway
	Catalog  *Catalog
	Payments *payment.Adapter
	Ledger   ledger.Store

	cfg   config.Config
	clock clock.Clock
	log   *zap.Logger

	mu         sync.Mutex
	hostUser   payment.Profile
	hostConfig json.RawMessage
}

// NewApp wires an App. It performs no I/O; call Start next.
func NewApp(opts Options) *App {
	log := logging.OrNop(opts.Logger)
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	cfg := opts.Config

	gw := opts.Gateway
	if gw == nil {
		gw = gateway.New(gateway.Options{
			BaseURL:      cfg.Gateway.BaseURL,
			APIVersion:   cfg.Gateway.APIVersion,
			MerchantID:   cfg.Gateway.MerchantID,
			TokenBaseURL: cfg.TokenAPI.BaseURL,
			Timeout:      cfg.Gateway.Timeout,
			ProductCache: opts.Cache,
			CacheTTL:     cfg.Cache.TTL,
			Logger:       log,
		})
	}
	store := opts.Ledger
	if store == nil {
		store = ledger.NopStore{}
	}

	detect := opts.Env.Detector()
	b := bridge.New(bridge.Config{
		Transport: opts.Transport,
		Embedded:  opts.Env.Mode() == mode.Iframe,
		Referrer:  opts.Env.Referrer,
		Timeout:   cfg.Bridge.Timeout,
		Clock:     clk,
		Logger:    log,
	})
	payments := payment.NewAdapter(detect,
		&payment.NativeBackend{Capability: opts.Native, Clock: clk},
		&payment.IframeBackend{Host: b, Clock: clk},
		&payment.MockBackend{Delay: cfg.Mock.Delay, Clock: clk},
		log,
	)

	return &App{
		Env:      opts.Env,
		Detect:   detect,
		Session:  session.NewStore(gw, log),
		Bridge:   b,
		Gateway:  gw,
		Catalog:  NewCatalog(gw, log),
		Payments: payments,
		Ledger:   store,
		cfg:      cfg,
		clock:    clk,
		log:      log.Named("app"),
	}
}

// Start brings up the host bridge and resolves the session. Session failures
// are reported through Session, not as an error.
func (a *App) Start(ctx context.Context) error {
	a.Bridge.On(model.TypeUserUpdate, a.onUserUpdate)
	a.Bridge.On(model.TypeConfigUpdate, a.onConfigUpdate)
	if err := a.Bridge.Init(); err != nil {
		return err
	}
	a.Session.Init(ctx, a.Env)
	a.log.Info("checkout ready",
		zap.String("mode", string(a.Detect())),
		zap.String("session", string(a.Session.Status())),
	)
	return nil
}

// View is what may be shown for the current session.
func (a *App) View() session.View {
	return a.Session.Gate(a.Detect())
}

// NewFlow starts a checkout using the App's wiring.
func (a *App) NewFlow() *Flow {
	return NewFlow(FlowConfig{
		Catalog:     a.Catalog,
		Validator:   a.Gateway,
		Payments:    a.Payments,
		Host:        a.Bridge,
		Detect:      a.Detect,
		Ledger:      a.Ledger,
		POSID:       a.cfg.Checkout.POSID,
		Fulfillment: a.cfg.Checkout.Fulfillment,
		Clock:       a.clock,
		Logger:      a.log.Named("flow"),
	})
}

// HostUser returns the last profile pushed by the host, nil when none.
func (a *App) HostUser() payment.Profile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hostUser
}

// HostConfig returns the last configuration pushed by the host.
func (a *App) HostConfig() json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hostConfig
}

func (a *App) onUserUpdate(data json.RawMessage) {
	var p payment.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		a.log.Warn("ignoring malformed user update", zap.Error(err))
		return
	}
	a.mu.Lock()
	a.hostUser = p
	a.mu.Unlock()
	a.log.Debug("host user updated")
}

func (a *App) onConfigUpdate(data json.RawMessage) {
	a.mu.Lock()
	a.hostConfig = append(json.RawMessage(nil), data...)
	a.mu.Unlock()
	a.log.Debug("host config updated", zap.Int("bytes", len(data)))
}

// Close unregisters host handlers and releases the ledger.
func (a *App) Close() {
	for _, t := range []string{model.TypeUserUpdate, model.TypeConfigUpdate} {
		a.Bridge.Off(t)
	}
	a.Ledger.Close()
}
