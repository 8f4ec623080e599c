// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinesFor(t *testing.T) {
	tests := []struct {
		length, width, want int
	}{
		{0, 80, 1},
		{1, 80, 1},
		{80, 80, 1},
		{81, 80, 2},
		{200, 80, 3},
		{10, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LinesFor(tt.length, tt.width), "length=%d width=%d", tt.length, tt.width)
	}
}
