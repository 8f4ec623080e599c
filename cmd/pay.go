// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"billpay/cli/internal/checkout"
	apperrors "billpay/cli/internal/errors"
	"billpay/cli/internal/gateway"
	"billpay/cli/internal/logging"
	"billpay/cli/internal/mode"
	"billpay/cli/internal/session"
	"billpay/cli/internal/terminal"
	"billpay/cli/internal/validation"
)

// payFlags preselect catalog entries and fields for scripted runs.
type payFlags struct {
	country  string
	service  string
	provider string
	product  string
	account  string
	amount   string
	yes      bool
}

var payOpts payFlags

// validationWait bounds how long pay waits for the account check.
const validationWait = 30 * time.Second

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Pay a bill",
	Long: `Walk through a bill payment: choose a service, provider and product,
enter the account, confirm and pay.

Every choice can be given as a flag to run without prompts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := startApp(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		app := rt.app

		if view := app.View(); view != session.ViewApp {
			printSessionProblem(app.Session)
			return fmt.Errorf("session %s", view)
		}

		flow := app.NewFlow()
		defer flow.Close()

		receipt, err := runCheckout(ctx, app, flow, payOpts)
		if err != nil {
			if errors.Is(err, errCancelled) {
				pterm.Info.Println("Payment cancelled.")
				return nil
			}
			printPaymentError(app.Detect(), err)
			return err
		}
		printReceipt(receipt)
		return nil
	},
}

var errCancelled = errors.New("cancelled")

func runCheckout(ctx context.Context, app *checkout.App, flow *checkout.Flow, opts payFlags) (*checkout.Receipt, error) {
	code := firstNonEmpty(opts.country, cfg.Checkout.Country, checkout.SupportedCountryCode)
	info, ok := checkout.LookupCountry(code)
	if !ok {
		return nil, fmt.Errorf("unknown country %q", code)
	}
	country := info.Gateway()
	flow.SelectCountry(country)
	pterm.Println(label("→ Country:  ") + info.Flag + " " + info.Name)

	stop := startSpinner("Loading services")
	services, err := app.Catalog.Services(ctx, country.Code)
	stop()
	if err != nil {
		return nil, gatewayFailure(err, "loading services")
	}
	service, err := pick("Service", opts.service, services, func(s gateway.Service) (string, string) { return s.Id.String(), s.Name })
	if err != nil {
		return nil, err
	}
	flow.SelectService(service)
	pterm.Println(label("→ Service:  ") + service.Name)

	stop = startSpinner("Loading providers")
	providers, err := app.Catalog.Providers(ctx, country.Code, service)
	stop()
	if err != nil {
		return nil, gatewayFailure(err, "loading providers")
	}
	provider, err := pick("Provider", opts.provider, providers, func(p gateway.Provider) (string, string) { return p.Id.String(), p.Name })
	if err != nil {
		return nil, err
	}
	flow.SelectProvider(provider)
	pterm.Println(label("→ Provider: ") + provider.Name)

	stop = startSpinner("Loading products")
	products, err := app.Catalog.Products(ctx, country.Code, service, provider)
	stop()
	if err != nil {
		return nil, gatewayFailure(err, "loading products")
	}
	if !flow.AutoSelectProduct(products) {
		product, err := pick("Product", opts.product, products, func(p gateway.Product) (string, string) { return p.Id.String(), p.Name })
		if err != nil {
			return nil, err
		}
		flow.SelectProduct(product)
	}

	if err := enterAmount(flow, opts.amount); err != nil {
		return nil, err
	}
	amount := flow.Amount()
	policy := flow.Policy()
	pterm.Println(label("→ Amount:   ") + amount.Value + " " + policy.Currency)

	state, err := enterAccount(flow, firstNonEmpty(opts.account, flags.accountNumber))
	if err != nil {
		return nil, err
	}
	if state.Warning() && !opts.yes {
		if !confirm(state.Outcome.Message) {
			return nil, errCancelled
		}
	}
	if !opts.yes && !confirm(fmt.Sprintf("Pay %s %s now?", amount.Value, policy.Currency)) {
		return nil, errCancelled
	}

	stop = startSpinner("Processing payment")
	receipt, err := flow.Pay(ctx)
	stop()
	return receipt, err
}

// pick resolves want against items by id or case-insensitive name, or asks.
func pick[T any](title, want string, items []T, key func(T) (id, name string)) (T, error) {
	var zero T
	if want != "" {
		for _, it := range items {
			id, name := key(it)
			if id == want || strings.EqualFold(name, want) {
				return it, nil
			}
		}
		return zero, fmt.Errorf("%s %q not found", strings.ToLower(title), want)
	}
	names := make([]string, len(items))
	for i, it := range items {
		_, names[i] = key(it)
	}
	idx, err := selectOption(title, names)
	if err != nil {
		return zero, err
	}
	return items[idx], nil
}

func enterAmount(flow *checkout.Flow, given string) error {
	field := flow.Amount()
	policy := flow.Policy()
	if field.Disabled {
		if given != "" {
			if err := policy.Check(checkout.ParseAmount(given)); err != nil {
				return apperrors.Wrap(apperrors.ValidationFailed, err.Error(), checkout.ErrAmountFixed)
			}
		}
		return nil
	}
	for {
		v := given
		if v == "" {
			if !terminal.IsInteractive() {
				v = field.Value
			} else {
				hint := ""
				if field.Value != "" {
					hint = " [" + field.Value + "]"
				}
				v = firstNonEmpty(prompt(fmt.Sprintf("Amount (%s)%s: ", policy.Currency, hint)), field.Value)
			}
		}
		if err := policy.Check(checkout.ParseAmount(v)); err != nil {
			if given != "" || !terminal.IsInteractive() {
				return apperrors.Wrap(apperrors.ValidationFailed, err.Error(), checkout.ErrIncomplete)
			}
			pterm.Warning.Println(err.Error())
			continue
		}
		return flow.SetAmount(v)
	}
}

// enterAccount records the account and waits for the biller to check it.
func enterAccount(flow *checkout.Flow, given string) (validation.State, error) {
	done := make(chan validation.State, 1)
	flow.OnValidation(func(st validation.State) {
		if st.Phase != validation.PhaseDone {
			return
		}
		select {
		case done <- st:
		default:
		}
	})

	account := given
	if account == "" {
		if !terminal.IsInteractive() {
			return validation.State{}, apperrors.Wrap(apperrors.ValidationFailed, "account is required", checkout.ErrIncomplete)
		}
		account = prompt(flow.AccountLabel() + ": ")
	}
	if strings.TrimSpace(account) == "" {
		return validation.State{}, apperrors.Wrap(apperrors.ValidationFailed, "account is required", checkout.ErrIncomplete)
	}
	flow.SetAccount(account)
	pterm.Println(label("→ "+flow.AccountLabel()+": ") + account)

	stop := startSpinner("Validating account")
	var st validation.State
	select {
	case st = <-done:
	case <-time.After(validationWait):
		st = flow.Validation()
	}
	stop()

	switch {
	case st.Validated():
		pterm.Success.Println("Account validated")
		for _, it := range st.Outcome.DisplayData {
			pterm.Println("  " + label(it.Label+": ") + it.Value)
		}
	case st.Warning():
		pterm.Warning.Println(st.Outcome.Message)
	}
	return st, nil
}

func confirm(question string) bool {
	if !terminal.IsInteractive() {
		return false
	}
	ok, err := pterm.DefaultInteractiveConfirm.WithDefaultText(question).Show()
	return err == nil && ok
}

func printReceipt(r *checkout.Receipt) {
	var b strings.Builder
	row := func(k, v string) {
		if v != "" {
			b.WriteString(label(fmt.Sprintf("%-14s", k)) + v + "\n")
		}
	}
	row("Transaction", r.Payment.TransactionID)
	row("Status", r.Payment.Status)
	row("Amount", checkout.FormatAmount(r.Payment.Amount)+" "+r.Payment.Currency)
	row("Provider", r.Provider.Name)
	row("Product", r.Product.Name)
	row("Account", r.AccountValue)
	if r.AccountName != r.AccountValue {
		row("Account name", r.AccountName)
	}
	row("Paid via", string(r.Mode))
	if f := r.Fulfillment; f != nil {
		row("Reference", f.ReferenceNumber)
		for _, v := range f.Vouchers {
			row("Token", v.VoucherCode)
		}
		for _, sms := range f.ReceiptSmses {
			b.WriteString("\n" + sms + "\n")
		}
	}
	title := pterm.NewStyle(pterm.FgGreen, pterm.Bold).Sprint("Payment Successful")
	pterm.Println(pterm.DefaultBox.WithTitle(title).WithPadding(1).Sprint(strings.TrimRight(b.String(), "\n")))
	if r.FulfillmentErr != nil {
		pterm.Warning.Println("Payment taken but the biller has not confirmed it yet: " + logging.Mask(r.FulfillmentErr.Error()))
	}
}

func printPaymentError(m mode.Mode, err error) {
	if m == mode.Native && apperrors.KindOf(err) != apperrors.PaymentFailed {
		pterm.Println(logging.FormatNativeError(err))
		return
	}
	n := checkout.Notice(err)
	title := pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(n.Title)
	pterm.Println(pterm.DefaultBox.WithTitle(title).WithPadding(1).Sprint(n.Message))
}

func printSessionProblem(s *session.Store) {
	snap := s.Snapshot()
	msg := "Your session has expired. Please relaunch the checkout from your app."
	if snap.Token == "" {
		msg = "No session token was provided by the host."
	}
	if err := s.Err(); err != nil {
		msg += "\n\n" + pterm.NewStyle(pterm.FgGray).Sprint(logging.PresentError("Technical details", err))
	}
	title := pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Session Expired")
	pterm.Println(pterm.DefaultBox.WithTitle(title).WithPadding(1).Sprint(msg))
}

func init() {
	f := payCmd.Flags()
	f.StringVar(&payOpts.country, "country", "", "country ISO code (default from config)")
	f.StringVar(&payOpts.service, "service", "", "service id or name")
	f.StringVar(&payOpts.provider, "provider", "", "provider id or name")
	f.StringVar(&payOpts.product, "product", "", "product id or name")
	f.StringVar(&payOpts.account, "account", "", "account, meter or smart card number")
	f.StringVar(&payOpts.amount, "amount", "", "amount to pay")
	f.BoolVarP(&payOpts.yes, "yes", "y", false, "skip confirmation prompts")
	rootCmd.AddCommand(payCmd)
}
