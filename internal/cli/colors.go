// Package cli provides shared terminal output helpers for clawdeck
// commands.
package cli

import (
	"os"

	"golang.org/x/term"
)

// ANSI style codes
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"
)

var colorsEnabled *bool

// ColorsEnabled reports whether output should be colored: stdout is a
// terminal and NO_COLOR is unset.
func ColorsEnabled() bool {
	if colorsEnabled != nil {
		return *colorsEnabled
	}
	enabled := term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	colorsEnabled = &enabled
	return enabled
}

// ForceColors overrides terminal detection.
func ForceColors(enabled bool) {
	colorsEnabled = &enabled
}

// Styled wraps text with a style code and reset when colors are enabled.
func Styled(text, code string) string {
	if !ColorsEnabled() {
		return text
	}
	return code + text + Reset
}

func Bolden(text string) string  { return Styled(text, Bold) }
func Dimmed(text string) string  { return Styled(text, Dim) }
func RedText(text string) string { return Styled(text, Red) }

func GreenText(text string) string   { return Styled(text, Green) }
func YellowText(text string) string  { return Styled(text, Yellow) }
func CyanText(text string) string    { return Styled(text, Cyan) }
func MagentaText(text string) string { return Styled(text, Magenta) }
func GrayText(text string) string    { return Styled(text, Gray) }
func BoldCyan(text string) string    { return Styled(text, Bold+Cyan) }
