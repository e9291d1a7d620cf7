package invocation

import (
	"fmt"
	"strings"
)

// ScriptFilename is the fixed sidecar name inside each run directory.
const ScriptFilename = "cli_call.sh"

const shebang = "#!/bin/sh"

var headerComment = []string{
	"# Command used to launch this run.",
	"# Re-execute in an equivalent environment to reproduce the invocation.",
}

// Encode renders the record as the persisted script: shebang, a fixed
// provenance comment, and the single invocation line. Output is deterministic,
// so rewriting the same record yields byte-identical content.
func Encode(rec Record) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(headerComment)+2)
	lines = append(lines, shebang)
	lines = append(lines, headerComment...)
	lines = append(lines, rec.CommandLine())
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

// Parse is the inverse of Encode. It ignores the shebang and comment lines and
// tokenizes the last non-empty line on whitespace; each token after the
// executable splits on its first '=' (tokens without '=' are presence flags).
// A leading '-' in a value (--momentum=-1) stays part of that value because
// splitting happens per token, never across tokens.
func Parse(data []byte) (Record, error) {
	command := ""
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		command = line
	}
	if command == "" {
		return Record{}, fmt.Errorf("no invocation line found")
	}

	tokens := strings.Fields(command)
	rec := Record{Executable: tokens[0]}
	if len(tokens) > 1 {
		rec.Args = make([]Arg, 0, len(tokens)-1)
	}
	for _, token := range tokens[1:] {
		name, value, found := strings.Cut(token, "=")
		if name == "" {
			return Record{}, fmt.Errorf("malformed token %q", token)
		}
		rec.Args = append(rec.Args, Arg{Name: name, Value: value, HasValue: found})
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
