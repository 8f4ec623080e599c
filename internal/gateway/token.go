// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ValidateToken checks a session token against GET /api/validate-token and
// returns the token payload. Any non-2xx answer yields ErrInvalidToken.
func (h *HTTP) ValidateToken(ctx context.Context, token string) (Payload, error) {
	u := h.tokenBase + "/api/validate-token?" + url.Values{"token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, networkError("validate token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("%w: HTTP %d", ErrInvalidToken, resp.StatusCode)
	}

	var out struct {
		Payload Payload `json:"payload"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return nil, networkError("decode token payload", err)
	}
	if out.Payload == nil {
		out.Payload = Payload{}
	}
	return out.Payload, nil
}
