// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the Billpay CLI application.
// It runs the bill payment checkout standalone, embedded in a host or inside
// a native shell.
package main

import (
	"billpay/cli/cmd"
)

func main() {
	cmd.Execute()
}
