// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"billpay/cli/internal/bridge"
	"billpay/cli/internal/clock"
	apperrors "billpay/cli/internal/errors"
	"billpay/cli/internal/gateway"
	"billpay/cli/internal/httperrors"
	"billpay/cli/internal/ledger"
	"billpay/cli/internal/logging"
	"billpay/cli/internal/mode"
	"billpay/cli/internal/payment"
	"billpay/cli/internal/validation"
)

var (
	// ErrAmountFixed is returned when editing the amount of a fixed-price product.
	ErrAmountFixed = errors.New("amount is fixed for this product")
	// ErrIncomplete is returned when a selection or field is missing.
	ErrIncomplete = errors.New("checkout is incomplete")
	// ErrPaymentInProgress is returned when Pay is called while a payment runs.
	ErrPaymentInProgress = errors.New("payment already in progress")
)

const paymentFailed = "Payment failed"

// Payer charges a request and knows the paying customer.
type Payer interface {
	ProcessPayment(ctx context.Context, req payment.Request) (payment.Result, error)
	CustomerDetails(ctx context.Context) gateway.CustomerDetails
}

// HostNotifier tells an embedding host that a payment finished.
type HostNotifier interface {
	NotifyPaymentComplete(ctx context.Context, done bridge.PaymentComplete) error
}

// FlowConfig wires a Flow.
type FlowConfig struct {
	Catalog   *Catalog
	Validator validation.Validator
	Payments  Payer
	Host      HostNotifier
	Detect    mode.Detector
	Ledger    ledger.Store
	POSID     string
	// Fulfillment posts the payment to the gateway after the charge succeeds.
	Fulfillment     bool
	ValidationDelay time.Duration
	Clock           clock.Clock
	NewRequestID    func() string
	Logger          *zap.Logger
}

// AmountField is the state of the amount input.
type AmountField struct {
	Value    string
	Disabled bool
}

// Receipt is everything the confirmation screen shows.
type Receipt struct {
	Payment      payment.Result
	Mode         mode.Mode
	Country      gateway.Country
	Service      gateway.Service
	Provider     gateway.Provider
	Product      gateway.Product
	AccountValue string
	// AccountName comes from validation display data when the biller sent one.
	AccountName string
	Validation  *validation.Outcome
	Fulfillment *Fulfillment
	// FulfillmentErr is set when the charge succeeded but fulfillment did not.
	FulfillmentErr error
}

// Flow is one checkout: country, service, provider and product selection,
// then amount and account entry, then payment.
type Flow struct {
	cfg FlowConfig
	log *zap.Logger

	mu         sync.Mutex
	country    *gateway.Country
	service    *gateway.Service
	provider   *gateway.Provider
	product    *gateway.Product
	policy     AmountPolicy
	amount     AmountField
	account    string
	debouncer  *validation.Debouncer
	onValidate []func(validation.State)
	paying     bool
}

// NewFlow starts an empty checkout.
func NewFlow(cfg FlowConfig) *Flow {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Ledger == nil {
		cfg.Ledger = ledger.NopStore{}
	}
	if cfg.NewRequestID == nil {
		cfg.NewRequestID = gateway.NewRequestID
	}
	if cfg.Detect == nil {
		cfg.Detect = func() mode.Mode { return mode.Standalone }
	}
	return &Flow{cfg: cfg, log: logging.OrNop(cfg.Logger).Named("checkout")}
}

// SelectCountry picks a country and clears everything chosen after it.
func (f *Flow) SelectCountry(c gateway.Country) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.country = &c
	f.service, f.provider = nil, nil
	f.resetProductLocked()
}

// SelectService picks a service and clears the provider and product.
func (f *Flow) SelectService(s gateway.Service) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.service = &s
	f.provider = nil
	f.resetProductLocked()
}

// SelectProvider picks a provider and clears the product.
func (f *Flow) SelectProvider(p gateway.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provider = &p
	f.resetProductLocked()
}

// SelectProduct picks a product, prefills the amount from its policy and
// starts a fresh account validator.
func (f *Flow) SelectProduct(p gateway.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetProductLocked()
	f.product = &p
	f.policy = PolicyFor(p)
	if f.policy.Default > 0 {
		f.amount.Value = FormatAmount(f.policy.Default)
	}
	f.amount.Disabled = f.policy.Fixed

	f.debouncer = validation.New(validation.Config{
		Product:      p,
		Validator:    f.cfg.Validator,
		Customers:    f.cfg.Payments,
		POSID:        f.cfg.POSID,
		Delay:        f.cfg.ValidationDelay,
		Clock:        f.cfg.Clock,
		NewRequestID: f.cfg.NewRequestID,
		Logger:       f.cfg.Logger,
	})
	for _, fn := range f.onValidate {
		f.debouncer.OnChange(fn)
	}
	f.debouncer.SetAmount(f.amount.Value)
}

// AutoSelectProduct selects the product when products has exactly one entry.
func (f *Flow) AutoSelectProduct(products []gateway.Product) bool {
	if len(products) != 1 {
		return false
	}
	f.SelectProduct(products[0])
	return true
}

func (f *Flow) resetProductLocked() {
	if f.debouncer != nil {
		f.debouncer.Close()
		f.debouncer = nil
	}
	f.product = nil
	f.policy = AmountPolicy{}
	f.amount = AmountField{}
	f.account = ""
}

// Amount returns the amount field.
func (f *Flow) Amount() AmountField {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.amount
}

// Policy returns the amount rules of the selected product.
func (f *Flow) Policy() AmountPolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.policy
}

// SetAmount edits the amount. It does not revalidate the account; the next
// validation reads the latest value.
func (f *Flow) SetAmount(v string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.amount.Disabled {
		return ErrAmountFixed
	}
	f.amount.Value = v
	if f.debouncer != nil {
		f.debouncer.SetAmount(v)
	}
	return nil
}

// SetAccount records account input and schedules validation.
func (f *Flow) SetAccount(v string) {
	f.mu.Lock()
	f.account = v
	d := f.debouncer
	f.mu.Unlock()
	if d != nil {
		d.SetAccount(v)
	}
}

// AccountLabel is the label for the selected product's account field.
func (f *Flow) AccountLabel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lc LabelContext
	if f.service != nil {
		lc.ServiceName = f.service.Name
	}
	if f.provider != nil {
		lc.ProviderName = f.provider.Name
	}
	field := ""
	if f.product != nil {
		lc.ProductName = f.product.Name
		if len(f.product.CreditPartyIdentifiers) > 0 {
			field = f.product.CreditPartyIdentifiers[0].Name
		}
	}
	return IdentifierLabel(field, lc)
}

// OnValidation registers fn for validation state changes, across product changes.
func (f *Flow) OnValidation(fn func(validation.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onValidate = append(f.onValidate, fn)
	if f.debouncer != nil {
		f.debouncer.OnChange(fn)
	}
}

// Validation returns the account validation state.
func (f *Flow) Validation() validation.State {
	f.mu.Lock()
	d := f.debouncer
	f.mu.Unlock()
	if d == nil {
		return validation.State{}
	}
	return d.State()
}

// WaitValidation blocks until fired validations have finished.
func (f *Flow) WaitValidation() {
	f.mu.Lock()
	d := f.debouncer
	f.mu.Unlock()
	if d != nil {
		d.Wait()
	}
}

// CanContinue reports whether the account and amount allow payment. A failed
// validation does not block; callers ask the user to confirm instead.
func (f *Flow) CanContinue() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.requestLocked()
	return err
}

func (f *Flow) requestLocked() (payment.Request, error) {
	if f.country == nil || f.service == nil || f.provider == nil || f.product == nil {
		return payment.Request{}, ErrIncomplete
	}
	account := strings.TrimSpace(f.account)
	if account == "" {
		return payment.Request{}, apperrors.Wrap(apperrors.ValidationFailed, "account is required", ErrIncomplete)
	}
	amount := ParseAmount(f.amount.Value)
	if err := f.policy.Check(amount); err != nil {
		return payment.Request{}, apperrors.Wrap(apperrors.ValidationFailed, err.Error(), ErrIncomplete)
	}
	country, service, provider, product := *f.country, *f.service, *f.provider, *f.product
	return payment.Request{
		Amount:       amount,
		Currency:     f.policy.Currency,
		AccountValue: account,
		Product:      &product,
		Provider:     &provider,
		Country:      &country,
		Service:      &service,
	}, nil
}

// Pay charges the current checkout. On success in iframe mode the host is
// notified; with fulfillment enabled the payment is then posted to the
// gateway. Fulfillment and ledger failures do not fail the payment.
func (f *Flow) Pay(ctx context.Context) (*Receipt, error) {
	f.mu.Lock()
	if f.paying {
		f.mu.Unlock()
		return nil, ErrPaymentInProgress
	}
	req, err := f.requestLocked()
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	var outcome *validation.Outcome
	if f.debouncer != nil {
		if st := f.debouncer.State(); st.Phase == validation.PhaseDone {
			outcome = &st.Outcome
		}
	}
	f.paying = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.paying = false
		f.mu.Unlock()
	}()

	res, err := f.cfg.Payments.ProcessPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = paymentFailed
		}
		return nil, apperrors.New(apperrors.PaymentFailed, msg)
	}

	m := f.cfg.Detect()
	if m == mode.Iframe && f.cfg.Host != nil {
		if err := f.cfg.Host.NotifyPaymentComplete(ctx, bridge.PaymentComplete{
			TransactionID: res.TransactionID,
			Amount:        res.Amount,
			Currency:      res.Currency,
			Status:        res.Status,
		}); err != nil {
			f.log.Warn("payment complete notice failed", zap.Error(err))
		}
	}

	receipt := &Receipt{
		Payment:      res,
		Mode:         m,
		Country:      *req.Country,
		Service:      *req.Service,
		Provider:     *req.Provider,
		Product:      *req.Product,
		AccountValue: req.AccountValue,
		AccountName:  accountName(outcome, req.AccountValue),
		Validation:   outcome,
	}

	if f.cfg.Fulfillment && f.cfg.Catalog != nil {
		ful, err := f.cfg.Catalog.PostPayment(ctx, f.gatewayRequest(ctx, req))
		if err != nil {
			f.log.Warn("fulfillment failed", zap.String("transaction_id", res.TransactionID), zap.Error(err))
			receipt.FulfillmentErr = err
		} else {
			receipt.Fulfillment = ful
		}
	}

	if err := f.cfg.Ledger.Record(ctx, receipt.Ledger(f.cfg.Clock.Now())); err != nil {
		f.log.Warn("ledger record failed", zap.Error(err))
	}
	f.log.Info("payment complete",
		zap.String("transaction_id", res.TransactionID),
		zap.String("mode", string(m)),
	)
	return receipt, nil
}

// Notice describes a Pay error for display.
func Notice(err error) httperrors.Notice {
	return httperrors.PaymentNotice(err)
}

func (f *Flow) gatewayRequest(ctx context.Context, req payment.Request) gateway.PaymentRequest {
	return gateway.PaymentRequest{
		RequestId: f.cfg.NewRequestID(),
		Amount:    req.Amount,
		CreditPartyIdentifiers: []gateway.CreditPartyValue{{
			IdentifierFieldName:  req.Product.IdentifierFieldName(),
			IdentifierFieldValue: req.AccountValue,
		}},
		Currency:        req.Currency,
		CustomerDetails: f.cfg.Payments.CustomerDetails(ctx),
		POSDetails: gateway.POSDetails{
			CashierId:  f.cfg.POSID,
			StoreId:    f.cfg.POSID,
			TerminalId: f.cfg.POSID,
		},
		ProductId: req.Product.Id,
		Quantity:  1,
	}
}

// Close stops pending validation.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debouncer != nil {
		f.debouncer.Close()
	}
}

// accountName prefers a name row from the biller's display data.
func accountName(o *validation.Outcome, fallback string) string {
	if o == nil {
		return fallback
	}
	for _, it := range o.DisplayData {
		label := strings.ToLower(it.Label)
		if strings.Contains(label, "account name") || strings.Contains(label, "name") {
			if it.Value != "" {
				return it.Value
			}
		}
	}
	return fallback
}

// Ledger converts r to a ledger entry stamped at now.
func (r *Receipt) Ledger(now time.Time) ledger.Receipt {
	entry := ledger.Receipt{
		TransactionID: r.Payment.TransactionID,
		Status:        r.Payment.Status,
		Success:       r.Payment.Success,
		Amount:        r.Payment.Amount,
		Currency:      r.Payment.Currency,
		AccountValue:  r.AccountValue,
		CountryCode:   r.Country.ISO(),
		ServiceName:   r.Service.Name,
		ProviderName:  r.Provider.Name,
		ProductID:     r.Product.Id.String(),
		ProductName:   r.Product.Name,
		Mode:          string(r.Mode),
		CreatedAt:     now,
	}
	if r.Fulfillment != nil {
		entry.ReferenceNumber = r.Fulfillment.ReferenceNumber
	}
	return entry
}
