// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"billpay/cli/internal/checkout"
	"billpay/cli/internal/gateway"
	"billpay/cli/internal/logging"
	"billpay/cli/internal/validation"
)

var validateOpts struct {
	product string
	account string
	amount  string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an account with the biller",
	Long: `Ask the biller whether an account exists for a product, without paying.

Example:
  billpay validate --product 42 --account 37132567891`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateOpts.product == "" || validateOpts.account == "" {
			return errors.New("--product and --account are required")
		}
		ctx := cmd.Context()
		rt, err := startApp(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		app := rt.app

		product, err := app.Catalog.Product(ctx, validateOpts.product)
		if err != nil {
			return gatewayFailure(err, "loading the product")
		}
		policy := checkout.PolicyFor(*product)
		amount := policy.Default
		if validateOpts.amount != "" {
			amount = checkout.ParseAmount(validateOpts.amount)
		}

		stop := startSpinner("Validating account")
		res := app.Catalog.ValidatePayment(ctx, gateway.PaymentRequest{
			RequestId: gateway.NewRequestID(),
			Amount:    amount,
			CreditPartyIdentifiers: []gateway.CreditPartyValue{{
				IdentifierFieldName:  product.IdentifierFieldName(),
				IdentifierFieldValue: validateOpts.account,
			}},
			Currency:        policy.Currency,
			CustomerDetails: app.Payments.CustomerDetails(ctx),
			POSDetails: gateway.POSDetails{
				CashierId:  cfg.Checkout.POSID,
				StoreId:    cfg.Checkout.POSID,
				TerminalId: cfg.Checkout.POSID,
			},
			ProductId: product.Id,
			Quantity:  1,
		})
		stop()

		if res.Error != nil {
			pterm.Error.Println(res.Message)
			return errors.New(logging.PresentError("validate", res.Error))
		}
		if !res.Success {
			pterm.Warning.Println(validation.OverrideWarning)
			pterm.Println(label("Gateway said: ") + res.Message)
			return nil
		}
		pterm.Success.Println(res.Message)
		for _, it := range validation.DisplayItems(res.Data["DisplayData"]) {
			pterm.Println("  " + label(it.Label+": ") + it.Value)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateOpts.product, "product", "", "product id")
	validateCmd.Flags().StringVar(&validateOpts.account, "account", "", "account, meter or smart card number")
	validateCmd.Flags().StringVar(&validateOpts.amount, "amount", "", "amount to validate (default from product)")
	rootCmd.AddCommand(validateCmd)
}
