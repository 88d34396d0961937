package main

import (
	"fmt"
	"os"
)

// ANSI styles for stderr feedback. Stdout stays clean so answers and
// machine-readable output can be piped.
const (
	styleReset  = "\033[0m"
	styleRed    = "\033[31m"
	styleGreen  = "\033[32m"
	styleYellow = "\033[33m"
	styleCyan   = "\033[36m"
	styleBold   = "\033[1m"
)

func colorEnabled() bool {
	if noColor {
		return false
	}
	// https://no-color.org: any non-empty value disables color.
	return os.Getenv("NO_COLOR") == ""
}

func colorize(style, text string) string {
	if !colorEnabled() {
		return text
	}
	return style + text + styleReset
}

// note prints one styled, prefixed line to stderr.
func note(style, prefix, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(style, prefix+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { note(styleGreen, "✓ ", format, args...) }
func printError(format string, args ...any)   { note(styleRed, "✗ ", format, args...) }
func printWarning(format string, args ...any) { note(styleYellow, "! ", format, args...) }
func printStep(format string, args ...any)    { note(styleCyan, "> ", format, args...) }

// statusLine renders one aligned "Label: value" row of the status report.
// The label is padded before styling so escape codes do not skew the column.
func statusLine(label, value string) string {
	l := fmt.Sprintf("%-15s", label+":")
	return fmt.Sprintf("  %s %s", colorize(styleBold, l), value)
}

func printStatus(label, format string, args ...any) {
	fmt.Fprintln(os.Stderr, statusLine(label, fmt.Sprintf(format, args...)))
}
