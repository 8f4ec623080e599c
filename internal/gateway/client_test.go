// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billpay/cli/internal/cache"
	apperrors "billpay/cli/internal/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*HTTP, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, MerchantID: "m-1", ProductCache: cache.NewMemoryCache()}), srv
}

func TestExtractList(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"Services wrapper", `{"Services":[{"Id":6},{"Id":13}]}`, 2},
		{"ServiceProviders wrapper", `{"ServiceProviders":[{"Id":1}]}`, 1},
		{"bare array", `[{"Id":1},{"Id":2},{"Id":3}]`, 3},
		{"no known key", `{}`, 0},
		{"unknown key only", `{"Items":[1,2]}`, 0},
		{"ServiceProducts wrapper", `{"ServiceProducts":[{"Id":1}]}`, 1},
		{"Products wrapper", `{"Products":[{"Id":1}]}`, 1},
		{"Data wrapper", `{"Data":[{"Id":1},{"Id":2}]}`, 2},
		{"null wrapper falls through", `{"Services":null,"Data":[{"Id":1}]}`, 1},
		{"non-array wrapper", `{"Services":"none"}`, 0},
		{"null body", `null`, 0},
		{"empty body", ``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractList(json.RawMessage(tt.body))
			require.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestExtractListKeyPriority(t *testing.T) {
	got := extractList(json.RawMessage(`{"Data":[1],"Services":[1,2]}`))
	assert.Len(t, got, 2)
}

func TestGetServicesNormalizesShapes(t *testing.T) {
	bodies := map[string]string{
		"wrapped": `{"Services":[{"Id":6,"Name":"Electricity"}]}`,
		"bare":    `[{"Id":"6","Name":"Electricity"}]`,
		"empty":   `{}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/vas/V2/Services", r.URL.Path)
				assert.Equal(t, "ZW", r.URL.Query().Get("CountryCode"))
				_, _ = io.WriteString(w, body)
			})
			got, err := c.GetServices(context.Background(), "ZW")
			require.NoError(t, err)
			require.NotNil(t, got)
			if name == "empty" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, ID("6"), got[0].Id)
			assert.Equal(t, "Electricity", got[0].Name)
		})
	}
}

func TestRequestHeaders(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "m-1", r.Header.Get("MerchantId"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = io.WriteString(w, `{"Countries":[{"Code":"ZW","Name":"Zimbabwe"}]}`)
	})
	got, err := c.GetCountries(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ZW", got[0].ISO())
	assert.Equal(t, "Zimbabwe", got[0].DisplayName())
}

func TestErrorTranslation(t *testing.T) {
	long := strings.Repeat("x", 500)
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantStatus string
		notFound   bool
	}{
		{"json ResultMessage", 400, `{"ResultMessage":"Invalid merchant"}`, "Invalid merchant", "", false},
		{"json message", 500, `{"message":"boom"}`, "boom", "", false},
		{"json without message", 503, `{"foo":1}`, "HTTP 503", "", false},
		{"non json body truncated", 502, long, "HTTP 502: " + strings.Repeat("x", 200), "", false},
		{"http 404", 404, `<html>nope</html>`, "HTTP 404: <html>nope</html>", "", true},
		{"business ERROR on 200", 200, `{"Status":"ERROR","ResultMessage":"Provider offline"}`, "Provider offline", "ERROR", false},
		{"business NOTFOUND on 200", 200, `{"Status":"NOTFOUND"}`, "API request failed", "NOTFOUND", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.GetServices(context.Background(), "")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.notFound, IsNotFound(err))
			assert.Equal(t, apperrors.GatewayBusiness, apperrors.KindOf(err))
			assert.False(t, IsNetworkError(err))
		})
	}
}

func TestNetworkErrors(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})
	_, err := c.GetServices(context.Background(), "ZW")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Contains(t, err.Error(), "invalid JSON response")

	srv.Close()
	_, err = c.GetServices(context.Background(), "ZW")
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestGetProductsCachesByKey(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "ZW", q.Get("countryCode"))
		assert.Equal(t, "6", q.Get("service"))
		_, _ = io.WriteString(w, `{"ServiceProducts":[{"Id":101,"Name":"ZESA Token","MinimumAmount":"10","MaxAmount":10,"Currency":"USD","ServiceProvider":{"Id":7}}]}`)
	})
	ctx := context.Background()
	f := ProductFilter{CountryCode: "ZW", ServiceID: "6", ProviderID: "7"}

	first, err := c.GetProducts(ctx, f)
	require.NoError(t, err)
	second, err := c.GetProducts(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first, second)

	require.Len(t, first, 1)
	p := first[0]
	assert.Equal(t, ID("101"), p.Id)
	assert.Equal(t, 10.0, p.Min())
	assert.Equal(t, 10.0, p.Max())
	assert.Equal(t, ID("7"), p.ProviderID())
	assert.Equal(t, "AccountNumber", p.IdentifierFieldName())

	// Different provider is a different key.
	_, err = c.GetProducts(ctx, ProductFilter{CountryCode: "ZW", ServiceID: "6"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, c.ClearProductCache(ctx))
	_, err = c.GetProducts(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProvidersAreNotCached(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/vas/V2/ServiceProviders", r.URL.Path)
		_, _ = io.WriteString(w, `{"ServiceProviders":[{"Id":7,"Name":"ZETDC","Country":{"Code":"ZW"}}]}`)
	})
	for i := 0; i < 2; i++ {
		got, err := c.GetServiceProviders(context.Background(), ProviderFilter{CountryCode: "ZW", ServiceID: "6"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].InCountry("ZW"))
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetProductsRequiresFilters(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:0"})
	_, err := c.GetProducts(context.Background(), ProductFilter{CountryCode: "ZW"})
	assert.Error(t, err)
}

func TestGetProductByID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vas/V2/Product", r.URL.Path)
		assert.Equal(t, "101", r.URL.Query().Get("id"))
		_, _ = io.WriteString(w, `{"ServiceProduct":{"Id":101,"Name":"ZESA Token","CreditPartyIdentifiers":[{"Name":"MeterNumber"}]}}`)
	})
	p, err := c.GetProductByID(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "ZESA Token", p.Name)
	assert.Equal(t, "MeterNumber", p.IdentifierFieldName())
}

func TestValidatePaymentPostsBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/vas/V2/ValidatePayment", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(101), body["ProductId"])
		assert.Equal(t, float64(1), body["Quantity"])
		assert.Nil(t, body["CustomerDetails"].(map[string]any)["EmailAddress"])
		_, _ = io.WriteString(w, `{"Status":"VALIDATED","DisplayData":[{"Label":"Name","Value":"J DOE"}]}`)
	})
	out, err := c.ValidatePayment(context.Background(), PaymentRequest{
		RequestId: NewRequestID(),
		Amount:    10,
		CreditPartyIdentifiers: []CreditPartyValue{
			{IdentifierFieldName: "MeterNumber", IdentifierFieldValue: "12345678"},
		},
		Currency:  "USD",
		ProductId: "101",
		Quantity:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, "VALIDATED", out.String("Status"))
}

func TestValidateToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/validate-token", r.URL.Path)
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))
		if r.URL.Query().Get("token") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"payload":{"sessionID":"s-1","sub":"u-9"}}`)
	})

	p, err := c.ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "s-1", p.String("sessionID"))

	_, err = c.ValidateToken(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewRequestID(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	a, b := NewRequestID(), NewRequestID()
	assert.Regexp(t, re, a)
	assert.NotEqual(t, a, b)
}

func TestIDAndAmountDecoding(t *testing.T) {
	var v struct {
		A ID
		B ID
		C Amount
		D Amount
	}
	require.NoError(t, json.Unmarshal([]byte(`{"A":42,"B":"abc","C":"12.50","D":3}`), &v))
	assert.Equal(t, ID("42"), v.A)
	assert.Equal(t, ID("abc"), v.B)
	assert.Equal(t, Amount(12.5), v.C)
	assert.Equal(t, Amount(3), v.D)

	out, err := json.Marshal(struct{ A, B ID }{"42", "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"A":42,"B":"abc"}`, string(out))
}
