// Package rundir implements the run-directory naming convention: a launch
// timestamp plus a free-text variant label, unique by construction.
package rundir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout matches directory names like 2026-08-26_14-03-59_resnet.
const TimestampLayout = "2006-01-02_15-04-05"

// Name renders the directory name for a run launched at t. The variant label
// is optional; when present it is sanitized so the name stays a single
// filesystem-safe token.
func Name(t time.Time, variant string) string {
	base := t.Format(TimestampLayout)
	variant = Sanitize(variant)
	if variant == "" {
		return base
	}
	return base + "_" + variant
}

// Parse recovers the launch timestamp and variant label from a directory name
// produced by Name.
func Parse(name string) (time.Time, string, error) {
	name = strings.TrimSpace(name)
	if len(name) < len(TimestampLayout) {
		return time.Time{}, "", fmt.Errorf("run directory name too short: %q", name)
	}
	ts, err := time.Parse(TimestampLayout, name[:len(TimestampLayout)])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse run directory timestamp: %w", err)
	}
	rest := name[len(TimestampLayout):]
	if rest == "" {
		return ts, "", nil
	}
	if !strings.HasPrefix(rest, "_") {
		return time.Time{}, "", fmt.Errorf("malformed run directory name: %q", name)
	}
	return ts, rest[1:], nil
}

// Create makes the run directory under root and returns its path.
func Create(root string, t time.Time, variant string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("root directory is required")
	}
	path := filepath.Join(root, Name(t, variant))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return path, nil
}

// Sanitize maps a free-text label to the character set allowed inside a run
// directory name. Whitespace becomes '-', path separators and other unsafe
// runes are dropped.
func Sanitize(variant string) string {
	variant = strings.TrimSpace(variant)
	var b strings.Builder
	for _, r := range variant {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteByte('-')
		}
	}
	return b.String()
}
