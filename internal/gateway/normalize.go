// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// listKeys are the wrapper keys the gateway uses around arrays, in the order
// they are tried.
var listKeys = []string{"Services", "ServiceProviders", "ServiceProducts", "Products", "Data", "Countries"}

// extractList returns the array carried by raw: raw itself when it is an
// array, otherwise the first wrapper key holding an array. Anything else
// yields an empty list.
func extractList(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []json.RawMessage{}
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return []json.RawMessage{}
		}
		return items
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return []json.RawMessage{}
		}
		for _, key := range listKeys {
			v, ok := obj[key]
			if !ok {
				continue
			}
			var items []json.RawMessage
			if err := json.Unmarshal(v, &items); err == nil && items != nil {
				return items
			}
		}
	}
	return []json.RawMessage{}
}

// decodeList extracts the list in raw and decodes every element as T.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	items := extractList(raw)
	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
