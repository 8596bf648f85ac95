package kcli

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// ColorMode is the value of the --color flag.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a --color flag value.
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(s) {
	case ColorAuto, ColorAlways, ColorNever:
		return ColorMode(s), nil
	default:
		return "", fmt.Errorf("invalid --color value %q (want auto, always, or never)", s)
	}
}

// Resolve decides whether output to f should be colorized: always/never
// are taken literally, auto checks whether f is an interactive terminal.
func (m ColorMode) Resolve(f *os.File) bool {
	switch m {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return term.IsTerminal(int(f.Fd()))
	}
}
