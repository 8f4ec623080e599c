// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the Billpay checkout.
// It implements subcommands for browsing the biller catalog, validating
// accounts, paying bills and running a simulated parent host, using the
// Cobra CLI framework with pterm output.
package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"billpay/cli/internal/bridge/wsclient"
	"billpay/cli/internal/cache"
	"billpay/cli/internal/checkout"
	"billpay/cli/internal/config"
	"billpay/cli/internal/keychain"
	"billpay/cli/internal/ledger"
	"billpay/cli/internal/logging"
	"billpay/cli/internal/mode"
	"billpay/cli/internal/native"
)

// launchFlags mirror the query parameters a host passes when embedding the checkout.
type launchFlags struct {
	configPath     string
	mode           string
	token          string
	accountNumber  string
	clientNumber   string
	returnURL      string
	hostURL        string
	nativeAddr     string
	nativeInsecure bool
	verbose        bool
}

var (
	flags  launchFlags
	cfg    config.Config
	logger = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "billpay",
	Short: "Bill payment checkout for the VAS gateway",
	Long: `Billpay lets you pay electricity, TV, water and other bills through the VAS gateway.

It runs standalone against a mock bank, embedded in a parent host (--host-url), or
inside a native shell that exposes a payment capability (--native-addr).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(flags.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = logging.New(cfg.LogLevel, flags.verbose)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, logging.PresentError("", err))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/billpay/config.yaml)")
	pf.StringVar(&flags.mode, "mode", "", "force execution mode: iframe or native")
	pf.StringVar(&flags.token, "token", "", "session token issued by the parent host")
	pf.StringVar(&flags.accountNumber, "account-number", "", "account number passed by the host")
	pf.StringVar(&flags.clientNumber, "client-number", "", "client number passed by the host")
	pf.StringVar(&flags.returnURL, "return-url", "", "URL to return to after checkout")
	pf.StringVar(&flags.hostURL, "host-url", "", "parent host to embed in (enables iframe mode)")
	pf.StringVar(&flags.nativeAddr, "native-addr", "", "native shell payment capability address (host:port)")
	pf.BoolVar(&flags.nativeInsecure, "native-insecure", false, "connect to the native capability without TLS")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
}

// env builds the launch environment from flags, as a browser would from the URL.
func (f launchFlags) env(nativeAvailable bool) mode.Env {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("mode", f.mode)
	set("token", f.token)
	set("accountNumber", f.accountNumber)
	set("clientNumber", f.clientNumber)
	set("returnUrl", f.returnURL)
	return mode.Env{
		Query:           q,
		Nested:          f.hostURL != "",
		NativeAvailable: nativeAvailable,
		Referrer:        f.hostURL,
	}
}

// started is a running App plus everything that must be released with it.
type started struct {
	app     *checkout.App
	closers []func()
}

func (r *started) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// startApp wires and starts the checkout for the current flags.
func startApp(ctx context.Context) (*started, error) {
	rt := &started{}
	fail := func(err error) (*started, error) {
		rt.Close()
		return nil, err
	}

	if strings.TrimSpace(cfg.Gateway.MerchantID) == "" {
		if km, err := keychain.GetManager(); err == nil {
			if id, err := km.LoadMerchantID(); err == nil {
				cfg.Gateway.MerchantID = id
			}
		}
	}
	if strings.TrimSpace(cfg.Gateway.MerchantID) == "" {
		logger.Warn("no merchant id configured; gateway calls will be rejected")
	}

	products, err := cache.New(cfg.Cache.Backend, cfg.Cache.RedisAddr)
	if err != nil {
		return fail(err)
	}
	if c, ok := products.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, func() { _ = c.Close() })
	}

	store, err := openLedger(ctx)
	if err != nil {
		logger.Warn("receipt ledger unavailable", zap.Error(err))
		store = ledger.NopStore{}
	}

	opts := checkout.Options{
		Config: cfg,
		Cache:  products,
		Ledger: store,
		Logger: logger,
	}

	if flags.hostURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		tr, err := wsclient.Dial(dialCtx, flags.hostURL, logger)
		cancel()
		if err != nil {
			return fail(fmt.Errorf("connect to host: %w", err))
		}
		rt.closers = append(rt.closers, func() { _ = tr.Close() })
		opts.Transport = tr
		if cfg.TokenAPI.BaseURL == "" {
			cfg.TokenAPI.BaseURL = tr.Origin()
			opts.Config = cfg
		}
	}

	nativeAvailable := false
	if addr := firstNonEmpty(flags.nativeAddr, cfg.Native.Addr); addr != "" {
		client, err := native.Dial(ctx, addr, native.Options{
			Insecure: flags.nativeInsecure || cfg.Native.Insecure,
			Token:    flags.token,
		})
		if err != nil {
			logger.Warn("native capability unavailable", zap.String("addr", addr), zap.Error(err))
		} else {
			rt.closers = append(rt.closers, func() { _ = client.Close() })
			opts.Native = client
			nativeAvailable = true
		}
	}
	opts.Env = flags.env(nativeAvailable)

	app := checkout.NewApp(opts)
	rt.closers = append(rt.closers, app.Close)
	if err := app.Start(ctx); err != nil {
		return fail(err)
	}
	rt.app = app
	return rt, nil
}

// openLedger opens the receipt ledger from config or the keychain.
func openLedger(ctx context.Context) (ledger.Store, error) {
	dsn := cfg.Ledger.DSN
	if dsn == "" {
		if km, err := keychain.GetManager(); err == nil {
			if v, err := km.LoadLedgerDSN(); err == nil {
				dsn = v
			}
		}
	}
	return ledger.Open(ctx, dsn, logger)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
