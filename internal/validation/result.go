// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package validation

import (
	"encoding/json"
	"strconv"
	"strings"

	"billpay/cli/internal/gateway"
)

// User-facing messages.
const (
	NetworkMessage  = "Network connection issue. Please check your internet connection and try again."
	FailedMessage   = "Failed to validate account details."
	OverrideWarning = "We do not recognise the account details. Are you sure you want to continue?"

	StatusValidated = "VALIDATED"
)

// DisplayItem is one label/value pair the biller returns about the account.
type DisplayItem struct {
	Label string `json:"Label"`
	Value string `json:"Value"`
}

// Outcome is the classified answer to one validation request.
type Outcome struct {
	Success bool
	// Data is the raw gateway payload, set whenever the gateway answered.
	Data        gateway.Payload
	DisplayData []DisplayItem
	// BillAmount is set when the biller reports an outstanding amount.
	BillAmount *float64
	Message    string
	// Network marks failures where the gateway could not be reached.
	Network bool
}

// Classify turns a ValidatePayment answer into an Outcome. Only a VALIDATED
// status succeeds; everything else, including errors, is a failure.
func Classify(payload gateway.Payload, err error) Outcome {
	if err != nil {
		if gateway.IsNetworkError(err) {
			return Outcome{Message: NetworkMessage, Network: true}
		}
		msg := err.Error()
		if msg == "" {
			msg = FailedMessage
		}
		return Outcome{Message: msg}
	}

	out := Outcome{Data: payload}
	if payload.String("Status") != StatusValidated {
		out.Message = payload.String("ResultMessage")
		if out.Message == "" {
			out.Message = FailedMessage
		}
		return out
	}
	out.Success = true
	out.Message = payload.String("ResultMessage")
	out.DisplayData = DisplayItems(payload["DisplayData"])
	out.BillAmount = billAmount(payload["BillAmount"])
	return out
}

// DisplayItems decodes a DisplayData list, dropping rows without a value.
// Billers send values as strings, numbers or booleans; each row is
// stringified on its own so one odd row cannot drop the others.
func DisplayItems(v any) []DisplayItem {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var rows []struct {
		Label any `json:"Label"`
		Value any `json:"Value"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil
	}
	var out []DisplayItem
	for _, r := range rows {
		value := displayString(r.Value)
		if strings.TrimSpace(value) == "" {
			continue
		}
		out = append(out, DisplayItem{Label: displayString(r.Label), Value: value})
	}
	return out
}

func displayString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func billAmount(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return &f
		}
	}
	return nil
}
