// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"

	"billpay/cli/internal/gateway"
	"billpay/cli/internal/httperrors"
	"billpay/cli/internal/terminal"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// startSpinner shows an animated status line until the returned function is
// called. Outside a terminal it prints text once and animates nothing.
func startSpinner(text string) func() {
	if !terminal.IsInteractive() {
		fmt.Println(text + "...")
		return func() {}
	}
	cursor.Hide()
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		cursor.Show()
		return startInlineSpinner(os.Stdout, text, spinnerFrames, 120*time.Millisecond)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(120 * time.Millisecond)
		defer t.Stop()
		frame := 0
		for {
			area.Update(pterm.NewStyle(pterm.FgCyan).Sprint(spinnerFrames[frame%len(spinnerFrames)]) + " " + text)
			select {
			case <-t.C:
				frame++
			case <-stop:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			_ = area.Stop()
			cursor.Show()
		})
	}
}

// startInlineSpinner rotates frames in front of text on a single line. The
// line is cleared when the returned function is called.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
	}
}

var stdin = bufio.NewReader(os.Stdin)

// prompt reads one line and clears the prompt and answer from the screen.
func prompt(label string) string {
	fmt.Print(label)
	raw, _ := stdin.ReadString('\n')
	if terminal.IsInteractive() {
		terminal.ClearPreviousLines(len(label) + len(raw))
	}
	return strings.TrimSpace(raw)
}

// selectOption lets the user pick one of options. When only one option
// exists it is returned without asking.
func selectOption(title string, options []string) (int, error) {
	switch len(options) {
	case 0:
		return -1, fmt.Errorf("no %s available", strings.ToLower(title))
	case 1:
		return 0, nil
	}
	if !terminal.IsInteractive() {
		return -1, fmt.Errorf("%s must be given as a flag when not running in a terminal", strings.ToLower(title))
	}
	choice, err := pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultText(title).
		WithMaxHeight(12).
		Show()
	if err != nil {
		return -1, err
	}
	for i, o := range options {
		if o == choice {
			return i, nil
		}
	}
	return -1, fmt.Errorf("unknown %s %q", strings.ToLower(title), choice)
}

func heading(text string) string {
	return pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint(text)
}

func label(text string) string {
	return pterm.NewStyle(pterm.FgLightCyan).Sprint(text)
}

// gatewayFailure prints troubleshooting advice when err means the gateway
// could not be reached, and returns err.
func gatewayFailure(err error, action string) error {
	if err != nil && httperrors.Classify(err) != httperrors.CategoryFailed {
		base := firstNonEmpty(cfg.Gateway.BaseURL, gateway.DefaultBaseURL)
		httperrors.Diagnose(err, action, httperrors.HostOf(base)).Print()
	}
	return err
}
