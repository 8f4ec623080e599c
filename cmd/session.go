// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"billpay/cli/internal/logging"
	"billpay/cli/internal/mode"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the detected mode and session state",
	Long: `Resolve the launch environment the same way pay does and report the
execution mode, the session status and what the checkout would show.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := startApp(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		app := rt.app
		snap := app.Session.Snapshot()
		params := mode.GetURLParams(app.Env.Query)

		pterm.Println(heading("Launch"))
		pterm.Println(label("→ Mode:           ") + string(app.Detect()))
		pterm.Println(label("→ Embedded:       ") + yesNo(app.Env.Nested))
		pterm.Println(label("→ Native bridge:  ") + yesNo(app.Env.NativeAvailable))
		if app.Env.Referrer != "" {
			pterm.Println(label("→ Host:           ") + app.Env.Referrer)
		}
		if params.ReturnURL != "" {
			pterm.Println(label("→ Return URL:     ") + params.ReturnURL)
		}
		pterm.Println()

		pterm.Println(heading("Session"))
		pterm.Println(label("→ Status:         ") + string(snap.Status))
		pterm.Println(label("→ View:           ") + app.View().String())
		if snap.Token != "" {
			pterm.Println(label("→ Token:          ") + logging.MaskToken(snap.Token))
		}
		if snap.SessionID != "" {
			pterm.Println(label("→ Session ID:     ") + snap.SessionID)
		}
		if snap.AccountNumber != "" {
			pterm.Println(label("→ Account:        ") + snap.AccountNumber)
		}
		if snap.ClientNumber != "" {
			pterm.Println(label("→ Client:         ") + snap.ClientNumber)
		}
		if err := app.Session.Err(); err != nil {
			pterm.Println(label("→ Error:          ") + logging.PresentError("", err))
		}
		if len(snap.TokenPayload) > 0 {
			keys := make([]string, 0, len(snap.TokenPayload))
			for k := range snap.TokenPayload {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pterm.Println()
			pterm.Println(heading("Token payload"))
			for _, k := range keys {
				v, _ := json.Marshal(snap.TokenPayload[k])
				pterm.Println("  " + label(k+": ") + string(v))
			}
		}
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}
