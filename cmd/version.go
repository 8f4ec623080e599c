// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"billpay/cli/internal/gateway"
)

var (
	// Version holds the CLI version information.
	// This value is typically set at build time using -ldflags.
	Version = "0.0.0-dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version and gateway target",
	Run: func(cmd *cobra.Command, args []string) {
		base := cfg.Gateway.BaseURL
		if base == "" {
			base = gateway.DefaultBaseURL
		}
		fmt.Printf("billpay %s\ngateway %s (%s)\n", Version, base, cfg.Gateway.APIVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
