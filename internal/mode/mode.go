// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package mode detects the execution context the checkout runs in: standalone,
// embedded in a parent host (iframe), or hosted by a native app shell.
//
// Detection is a pure function of an Env snapshot so that every component can
// ask for the mode at call time without side effects.
package mode

import (
	"net/url"
	"strings"
)

// Mode is the execution context.
type Mode string

const (
	Standalone Mode = "standalone"
	Iframe     Mode = "iframe"
	Native     Mode = "native"
)

// Env captures everything mode detection depends on.
type Env struct {
	// Query holds the launch URL query parameters.
	Query url.Values
	// Nested reports whether the app runs inside another window (a parent host).
	Nested bool
	// NativeAvailable reports whether a native payment capability was injected.
	NativeAvailable bool
	// Referrer is the referring document URL, used to resolve the parent origin.
	Referrer string
}

// Detector returns the current mode. Consumers hold a Detector rather than a
// Mode so the environment is consulted on every call.
type Detector func() Mode

// Mode resolves the execution context. First match wins:
// explicit mode=iframe|native, nesting, native capability, standalone.
func (e Env) Mode() Mode {
	switch Mode(e.Query.Get("mode")) {
	case Iframe:
		return Iframe
	case Native:
		return Native
	}
	if e.Nested {
		return Iframe
	}
	if e.NativeAvailable {
		return Native
	}
	return Standalone
}

// Detector returns a Detector bound to this environment.
func (e Env) Detector() Detector {
	return e.Mode
}

// IsInIframe reports whether the app has a parent window to talk to.
func (e Env) IsInIframe() bool {
	return e.Nested
}

// ParentOrigin derives the parent origin from the referrer.
// It returns "" when the origin cannot be determined.
func (e Env) ParentOrigin() string {
	return OriginOf(e.Referrer)
}

// OriginOf returns scheme://host[:port] of raw, or "" if raw is not an absolute URL.
func OriginOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// URLParams are the launch parameters the checkout understands.
// Absent values are "" so that comparisons need no nil checks.
type URLParams struct {
	Token         string
	Mode          string
	ReturnURL     string
	AccountNumber string
	ClientNumber  string
}

// GetURLParams extracts the known launch parameters from q.
func GetURLParams(q url.Values) URLParams {
	return URLParams{
		Token:         q.Get("token"),
		Mode:          q.Get("mode"),
		ReturnURL:     q.Get("returnUrl"),
		AccountNumber: q.Get("accountNumber"),
		ClientNumber:  q.Get("clientNumber"),
	}
}
