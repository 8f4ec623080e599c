// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(time.Second, func() { order = append(order, "a") })
	stopped := c.AfterFunc(time.Second, func() { order = append(order, "x") })

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())
	assert.Equal(t, 2, c.Pending())

	c.Advance(999 * time.Millisecond)
	assert.Empty(t, order)

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, time.Unix(0, 0).Add(5999*time.Millisecond), c.Now())
}
