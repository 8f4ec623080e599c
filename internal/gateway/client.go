// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package gateway is the HTTP client for the VAS payment gateway: catalog
// listings, payment validation, payment posting and session token checks.
//
// The gateway is inconsistent about response shapes and uses HTTP 200 for
// some business failures, so every response passes through one decoding path
// that turns those failures into *APIError and unwraps list payloads
// defensively.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"billpay/cli/internal/cache"
	"billpay/cli/internal/logging"
)

const (
	// DefaultBaseURL is the sandbox gateway.
	DefaultBaseURL = "https://sandbox-dev.appletreepayments.com"
	// DefaultAPIVersion is the VAS API version path segment.
	DefaultAPIVersion = "V2"
	// ProductCacheTTL bounds how long product listings are reused.
	ProductCacheTTL = 5 * time.Minute

	maxBody      = 1 << 20
	errorSnippet = 200
)

// API is the gateway surface used by the checkout.
type API interface {
	GetCountries(ctx context.Context) ([]Country, error)
	GetServices(ctx context.Context, countryCode string) ([]Service, error)
	GetServiceProviders(ctx context.Context, f ProviderFilter) ([]Provider, error)
	GetProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	GetProductByID(ctx context.Context, id string) (*Product, error)
	ValidatePayment(ctx context.Context, req PaymentRequest) (Payload, error)
	PostPayment(ctx context.Context, req PaymentRequest) (Payload, error)
}

// Options configures an HTTP client.
type Options struct {
	BaseURL    string
	APIVersion string
	MerchantID string
	// TokenBaseURL hosts /api/validate-token; BaseURL when empty.
	TokenBaseURL string
	Timeout      time.Duration
	// ProductCache holds product listings; nil disables caching.
	ProductCache cache.Cache
	CacheTTL     time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// HTTP implements API over the gateway's REST endpoints.
type HTTP struct {
	// baseURL is the gateway origin, e.g. "https://sandbox-dev.appletreepayments.com"
	baseURL    string
	apiVersion string
	merchantID string
	tokenBase  string
	// client is the underlying HTTP client with configured timeout
	client *http.Client
	// products caches product listings keyed by country, service and provider
	products cache.Cache
	cacheTTL time.Duration
	log      *zap.Logger
}

var _ API = (*HTTP)(nil)

// New creates a gateway client.
func New(opts Options) *HTTP {
	h := &HTTP{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiVersion: opts.APIVersion,
		merchantID: opts.MerchantID,
		tokenBase:  strings.TrimRight(opts.TokenBaseURL, "/"),
		client:     opts.HTTPClient,
		products:   opts.ProductCache,
		cacheTTL:   opts.CacheTTL,
		log:        logging.OrNop(opts.Logger).Named("gateway"),
	}
	if h.baseURL == "" {
		h.baseURL = DefaultBaseURL
	}
	if h.apiVersion == "" {
		h.apiVersion = DefaultAPIVersion
	}
	if h.tokenBase == "" {
		h.tokenBase = h.baseURL
	}
	if h.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		h.client = &http.Client{Timeout: timeout}
	}
	if h.cacheTTL <= 0 {
		h.cacheTTL = ProductCacheTTL
	}
	return h
}

// GetCountries calls GET Countries.
func (h *HTTP) GetCountries(ctx context.Context) ([]Country, error) {
	raw, err := h.request(ctx, http.MethodGet, "Countries", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Country](raw)
}

// GetServices calls GET Services, filtered by country when given.
func (h *HTTP) GetServices(ctx context.Context, countryCode string) ([]Service, error) {
	endpoint := "Services"
	if countryCode != "" {
		endpoint += "?" + url.Values{"CountryCode": {countryCode}}.Encode()
	}
	raw, err := h.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Service](raw)
}

// GetServiceProviders calls GET ServiceProviders. Results are never cached.
func (h *HTTP) GetServiceProviders(ctx context.Context, f ProviderFilter) ([]Provider, error) {
	q := url.Values{}
	if f.CountryCode != "" {
		q.Set("countryCode", f.CountryCode)
	}
	if f.ServiceID != "" {
		q.Set("service", f.ServiceID)
	}
	raw, err := h.request(ctx, http.MethodGet, withQuery("ServiceProviders", q), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Provider](raw)
}

// GetProducts calls GET Products, serving repeated queries from the product cache.
func (h *HTTP) GetProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	if f.CountryCode == "" || f.ServiceID == "" {
		return nil, errors.New("country code and service are required to list products")
	}

	key := productCacheKey(f)
	if h.products != nil {
		if cached, ok, err := h.products.Get(ctx, key); err != nil {
			h.log.Warn("product cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			var out []Product
			if err := json.Unmarshal(cached, &out); err == nil {
				h.log.Debug("product cache hit", zap.String("key", key))
				return out, nil
			}
		}
	}

	q := url.Values{}
	q.Set("countryCode", f.CountryCode)
	q.Set("service", f.ServiceID)
	if f.ProviderID != "" {
		q.Set("serviceProviderId", f.ProviderID)
	}
	raw, err := h.request(ctx, http.MethodGet, withQuery("Products", q), nil)
	if err != nil {
		return nil, err
	}
	out, err := decodeList[Product](raw)
	if err != nil {
		return nil, err
	}

	if h.products != nil {
		if b, err := json.Marshal(out); err == nil {
			if err := h.products.Set(ctx, key, b, h.cacheTTL); err != nil {
				h.log.Warn("product cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return out, nil
}

// GetProductByID calls GET Product?id=.
func (h *HTTP) GetProductByID(ctx context.Context, id string) (*Product, error) {
	raw, err := h.request(ctx, http.MethodGet, withQuery("Product", url.Values{"id": {id}}), nil)
	if err != nil {
		return nil, err
	}
	var wrapped struct {
		ServiceProduct json.RawMessage `json:"ServiceProduct"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.ServiceProduct) > 0 && string(wrapped.ServiceProduct) != "null" {
		raw = wrapped.ServiceProduct
	}
	var p Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, networkError("decode product", err)
	}
	return &p, nil
}

// ValidatePayment calls POST ValidatePayment and returns the decoded payload.
func (h *HTTP) ValidatePayment(ctx context.Context, req PaymentRequest) (Payload, error) {
	return h.post(ctx, "ValidatePayment", req)
}

// PostPayment calls POST PostPayment and returns the decoded payload.
func (h *HTTP) PostPayment(ctx context.Context, req PaymentRequest) (Payload, error) {
	return h.post(ctx, "PostPayment", req)
}

func (h *HTTP) post(ctx context.Context, endpoint string, body any) (Payload, error) {
	raw, err := h.request(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	var out Payload
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, networkError("decode "+endpoint, err)
	}
	return out, nil
}

// ClearProductCache drops all cached product listings.
func (h *HTTP) ClearProductCache(ctx context.Context) error {
	if h.products == nil {
		return nil
	}
	return h.products.Clear(ctx)
}

func (h *HTTP) endpointURL(endpoint string) string {
	return fmt.Sprintf("%s/vas/%s/%s", h.baseURL, h.apiVersion, endpoint)
}

// request performs one gateway call and returns the raw 2xx body after
// business-status checks.
func (h *HTTP) request(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil && method != http.MethodGet {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", endpoint, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.endpointURL(endpoint), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("MerchantId", h.merchantID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, networkError(endpoint, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, networkError("read "+endpoint, err)
	}
	h.log.Debug("gateway call",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpError(resp.StatusCode, text)
	}
	if !json.Valid(text) {
		return nil, networkError(endpoint, fmt.Errorf("invalid JSON response: %s", snippet(text)))
	}

	var status struct {
		Status        string `json:"Status"`
		ResultMessage string `json:"ResultMessage"`
		Message       string `json:"message"`
	}
	if bytes.HasPrefix(bytes.TrimSpace(text), []byte("{")) {
		_ = json.Unmarshal(text, &status)
	}
	if status.Status == "ERROR" || status.Status == "NOTFOUND" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     status.Status,
			Message:    firstNonEmpty(status.ResultMessage, status.Message, "API request failed"),
			Body:       string(text),
		}
	}
	return text, nil
}

func httpError(code int, text []byte) *APIError {
	var body map[string]any
	if err := json.Unmarshal(text, &body); err != nil {
		return &APIError{
			StatusCode: code,
			Message:    fmt.Sprintf("HTTP %d: %s", code, snippet(text)),
			Body:       string(text),
		}
	}
	msg, _ := body["ResultMessage"].(string)
	if msg == "" {
		msg, _ = body["message"].(string)
	}
	status, _ := body["Status"].(string)
	return &APIError{
		StatusCode: code,
		Status:     status,
		Message:    firstNonEmpty(msg, fmt.Sprintf("HTTP %d", code)),
		Body:       string(text),
	}
}

func productCacheKey(f ProductFilter) string {
	provider := f.ProviderID
	if provider == "" {
		provider = "all"
	}
	return f.CountryCode + "_" + f.ServiceID + "_" + provider
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func snippet(b []byte) string {
	r := []rune(string(b))
	if len(r) > errorSnippet {
		r = r[:errorSnippet]
	}
	return string(r)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
