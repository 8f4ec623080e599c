// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"billpay/cli/internal/keychain"
	"billpay/cli/internal/logging"
)

var merchantCmd = &cobra.Command{
	Use:   "merchant",
	Short: "Manage the gateway merchant id",
	Long: `The merchant id authenticates every gateway call. It is kept in the OS
keychain; a merchant_id in the config file takes precedence.`,
}

var merchantSetCmd = &cobra.Command{
	Use:   "set [merchant-id]",
	Short: "Store the merchant id in the keychain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		} else {
			id = prompt("Merchant ID: ")
		}
		if id == "" {
			return errors.New("merchant id is empty")
		}
		km, err := keychain.GetManager()
		if err != nil {
			fmt.Println("❌ Secure storage is not available on this system.")
			return err
		}
		if err := km.SaveMerchantID(id); err != nil {
			fmt.Println("❌ Failed to save the merchant id securely.")
			return err
		}
		fmt.Println("✅ Merchant id saved: " + logging.Mask(id))
		return nil
	},
}

var merchantShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the configured merchant id (masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Gateway.MerchantID != "" {
			fmt.Println(logging.Mask(cfg.Gateway.MerchantID) + " (config)")
			return nil
		}
		km, err := keychain.GetManager()
		if err != nil {
			return err
		}
		id, err := km.LoadMerchantID()
		if errors.Is(err, keychain.ErrNotFound) {
			fmt.Println("No merchant id configured. Run: billpay merchant set")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(logging.Mask(id) + " (keychain)")
		return nil
	},
}

var merchantClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove stored credentials from the keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return err
		}
		if err := km.ClearAll(); err != nil {
			return err
		}
		fmt.Println("✅ Stored merchant id and ledger connection removed.")
		return nil
	},
}

func init() {
	merchantCmd.AddCommand(merchantSetCmd, merchantShowCmd, merchantClearCmd)
	rootCmd.AddCommand(merchantCmd)
}
