// Package sanitize applies input hygiene to untrusted text before it reaches
// the renderer or the logs.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxSize bounds prose accepted for rendering (64KB).
	DefaultMaxSize = 64 << 10
	// EnvMaxSize overrides DefaultMaxSize.
	EnvMaxSize = "WAYPOINT_MAX_INPUT_SIZE"
)

var (
	ErrTooLarge    = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8 = errors.New("input contains invalid UTF-8 sequences")
)

// Input rejects text over limit bytes (0 means the configured default) or with
// invalid UTF-8, and strips control characters other than \n, \t and \r.
// Oversized input is rejected rather than truncated so a citation or list is
// never cut in half.
func Input(text string, limit int) (string, error) {
	if limit <= 0 {
		limit = MaxSize()
	}
	if len(text) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrTooLarge, len(text), limit)
	}

	if !utf8.ValidString(text) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexFunc(text, isUnsafeControl) < 0 {
		return text, nil
	}
	return strings.Map(func(r rune) rune {
		if isUnsafeControl(r) {
			return -1
		}
		return r
	}, text), nil
}

// Line is Input for single-line values such as names in log attributes:
// line breaks are folded into spaces as well.
func Line(text string, limit int) (string, error) {
	clean, err := Input(text, limit)
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(clean), " "), nil
}

// MaxSize returns the size limit, honoring EnvMaxSize.
func MaxSize() int {
	if val := os.Getenv(EnvMaxSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxSize
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
