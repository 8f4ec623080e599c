// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"billpay/cli/internal/gateway"
	"billpay/cli/internal/hostsim"
	"billpay/cli/internal/logging"
)

var hostOpts struct {
	addr        string
	token       string
	userName    string
	userEmail   string
	mobile      string
	acceptToken []string
	decline     bool
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run a simulated parent host",
	Long: `Serve a stand-in for the app that embeds the checkout. It answers token,
payment and user info requests over a websocket and validates session tokens.

Point a checkout at it with:
  billpay pay --host-url http://localhost:8787 --token <token>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := hostsim.Options{
			Token: firstNonEmpty(hostOpts.token, "sim-"+uuid.NewString()),
			User: map[string]any{
				"name":         hostOpts.userName,
				"email":        hostOpts.userEmail,
				"mobileNumber": hostOpts.mobile,
			},
			Logger: logger,
		}
		if len(hostOpts.acceptToken) > 0 {
			opts.Tokens = make(map[string]gateway.Payload, len(hostOpts.acceptToken))
			for _, t := range hostOpts.acceptToken {
				opts.Tokens[t] = gateway.Payload{"sessionId": "sim-" + uuid.NewString()}
			}
		}
		if hostOpts.decline {
			opts.Pay = func(json.RawMessage) any {
				return map[string]any{"success": false, "status": "DECLINED", "message": "Declined by host"}
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pterm.Println(heading("Simulated host"))
		pterm.Println(label("→ Listening: ") + hostOpts.addr)
		pterm.Println(label("→ Token:     ") + logging.MaskToken(opts.Token))
		pterm.Println(pterm.NewStyle(pterm.FgGray).Sprint("Press Ctrl+C to stop."))

		if err := hostsim.New(opts).Run(ctx, hostOpts.addr); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		pterm.Info.Println("Host stopped.")
		return nil
	},
}

func init() {
	f := hostCmd.Flags()
	f.StringVar(&hostOpts.addr, "addr", "127.0.0.1:8787", "listen address")
	f.StringVar(&hostOpts.token, "session-token", "", "token returned for token requests (default random)")
	f.StringVar(&hostOpts.userName, "user-name", "Tendai Moyo", "name returned for user info requests")
	f.StringVar(&hostOpts.userEmail, "user-email", "", "email returned for user info requests")
	f.StringVar(&hostOpts.mobile, "user-mobile", "+263771234567", "mobile number returned for user info requests")
	f.StringSliceVar(&hostOpts.acceptToken, "accept-token", nil, "only accept these session tokens (default accept any)")
	f.BoolVar(&hostOpts.decline, "decline", false, "decline every payment request")
	rootCmd.AddCommand(hostCmd)
}
