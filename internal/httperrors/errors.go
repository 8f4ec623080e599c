// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns transport and payment failures into user-facing
// categories and messages.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	apperrors "billpay/cli/internal/errors"
)

// Category is the user-facing class of a payment failure.
type Category int

const (
	// CategoryFailed is any failure that is neither a timeout nor a network problem.
	CategoryFailed Category = iota
	CategoryTimeout
	CategoryNetwork
)

func (c Category) String() string {
	switch c {
	case CategoryTimeout:
		return "timeout"
	case CategoryNetwork:
		return "network"
	default:
		return "failed"
	}
}

// Classify maps err to a Category. Timeouts win over network failures.
func Classify(err error) Category {
	if err == nil {
		return CategoryFailed
	}
	kind := apperrors.KindOf(err)
	if kind == apperrors.RPCTimeout || isTimeoutError(err) {
		return CategoryTimeout
	}
	if kind == apperrors.Network || isDNSError(err) || isConnectionRefusedError(err) {
		return CategoryNetwork
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "network") || strings.Contains(lower, "fetch") {
		return CategoryNetwork
	}
	return CategoryFailed
}

// Notice is a titled status message for a failed payment.
type Notice struct {
	Category Category
	Title    string
	Message  string
}

// PaymentNotice describes a failed payment for display.
func PaymentNotice(err error) Notice {
	switch c := Classify(err); c {
	case CategoryTimeout:
		return Notice{Category: c, Title: "Payment Timeout", Message: "Payment request timed out. Please try again."}
	case CategoryNetwork:
		return Notice{Category: c, Title: "Network Error", Message: "Network error. Please check your connection and try again."}
	default:
		msg := "An unexpected error occurred. Please try again."
		if err != nil && err.Error() != "" {
			msg = err.Error()
			var e *apperrors.E
			if errors.As(err, &e) && e.Message != "" {
				msg = e.Message
			}
		}
		return Notice{Category: c, Title: "Payment Failed", Message: msg}
	}
}

// Troubleshooting is advice for a request that could not reach the gateway.
type Troubleshooting struct {
	Headline string
	Tips     []string
	// Details is the raw error, shortened for display.
	Details string
}

// Diagnose explains why a request to host failed while doing action.
// The first matching cause wins: timeout, DNS, refused, TLS, server error.
func Diagnose(err error, action, host string) Troubleshooting {
	if err == nil {
		return Troubleshooting{}
	}
	if host == "" {
		host = "the payment gateway"
	}
	t := Troubleshooting{Details: shorten(err.Error(), 100)}
	switch {
	case isTimeoutError(err):
		t.Headline = fmt.Sprintf("⏱️  %s took too long to respond while %s", host, action)
		t.Tips = []string{"Slow internet connection", "The gateway is under heavy load", "A firewall is holding the connection"}
	case isDNSError(err):
		t.Headline = fmt.Sprintf("🌐 Cannot resolve %s while %s", host, action)
		t.Tips = []string{"Check that your internet connection works", "Check your DNS settings"}
	case isConnectionRefusedError(err):
		t.Headline = fmt.Sprintf("🚫 %s refused the connection while %s", host, action)
		t.Tips = []string{"The service may be down", "Check the gateway base_url and port in your config"}
	case isSSLError(err):
		t.Headline = fmt.Sprintf("🔒 Secure connection to %s failed while %s", host, action)
		t.Tips = []string{"Check your system date and time", "Check proxy settings that intercept HTTPS"}
	case isServerError(err.Error()):
		t.Headline = fmt.Sprintf("⚠️  %s had an internal error while %s", host, action)
		t.Tips = []string{"This is not a problem with your setup", "Please try again in a few minutes"}
	default:
		t.Headline = fmt.Sprintf("❌ Request to %s failed while %s", host, action)
		t.Tips = []string{"Check your internet connection", "Check the merchant id with 'billpay merchant show'"}
	}
	return t
}

// Print writes t to the terminal.
func (t Troubleshooting) Print() {
	pterm.Println(t.Headline)
	for _, tip := range t.Tips {
		pterm.Println("  • " + tip)
	}
	if t.Details != "" {
		pterm.Debug.Println("Technical details: " + t.Details)
	}
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// isTimeoutError checks if the error is a timeout error.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	// Check for timeout in error message
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	// Check for net.Error with Timeout()
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// isDNSError checks if the error is a DNS resolution error.
func isDNSError(err error) bool {
	if err == nil {
		return false
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefusedError checks if the error is a connection refused error.
func isConnectionRefusedError(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNREFUSED)
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused")
}

// isSSLError checks if the error is an SSL/TLS error.
func isSSLError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "ssl") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// isServerError checks if the error indicates a server-side problem (5xx errors).
func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	return strings.Contains(lower, "500") ||
		strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") ||
		strings.Contains(lower, "504") ||
		strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable") ||
		strings.Contains(lower, "gateway timeout")
}

// HostOf returns the host of a URL for messages, "" when it has none.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
