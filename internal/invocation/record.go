// Package invocation models the exact command line that launched a training
// run and its persisted, replayable script form.
package invocation

import (
	"errors"
	"fmt"
	"strings"
)

// Arg is a single command-line option. HasValue distinguishes a valued flag
// (--lr=0.005) from a presence-only flag (--use_adam). A valued flag with an
// empty value (--label=) is legal and preserved.
type Arg struct {
	Name     string
	Value    string
	HasValue bool
}

// Record is the captured invocation of one run. Args keep command-line order;
// order is part of the record's identity because the persisted script must
// reproduce the original invocation byte for byte.
type Record struct {
	Executable string
	Args       []Arg
}

func (a Arg) String() string {
	if a.HasValue {
		return a.Name + "=" + a.Value
	}
	return a.Name
}

func (r Record) Validate() error {
	exe := strings.TrimSpace(r.Executable)
	if exe == "" {
		return errors.New("executable is required")
	}
	if containsSpace(r.Executable) {
		return fmt.Errorf("executable must not contain whitespace: %q", r.Executable)
	}
	for i, arg := range r.Args {
		if strings.TrimSpace(arg.Name) == "" {
			return fmt.Errorf("args[%d]: flag name is required", i)
		}
		if containsSpace(arg.Name) {
			return fmt.Errorf("args[%d]: flag name must not contain whitespace: %q", i, arg.Name)
		}
		if strings.Contains(arg.Name, "=") {
			return fmt.Errorf("args[%d]: flag name must not contain '=': %q", i, arg.Name)
		}
		if arg.HasValue && containsSpace(arg.Value) {
			return fmt.Errorf("args[%d]: flag value must not contain whitespace: %q", i, arg.Value)
		}
		if !arg.HasValue && arg.Value != "" {
			return fmt.Errorf("args[%d]: presence flag %q must not carry a value", i, arg.Name)
		}
	}
	return nil
}

// CommandLine renders the single invocation line: executable followed by the
// flags in original order, space separated.
func (r Record) CommandLine() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(r.Executable))
	for _, arg := range r.Args {
		b.WriteByte(' ')
		b.WriteString(arg.String())
	}
	return b.String()
}

// Clone returns a deep copy so stored records stay immutable.
func (r Record) Clone() Record {
	out := Record{Executable: r.Executable}
	if len(r.Args) > 0 {
		out.Args = make([]Arg, len(r.Args))
		copy(out.Args, r.Args)
	}
	return out
}

func (r Record) Equal(other Record) bool {
	if r.Executable != other.Executable || len(r.Args) != len(other.Args) {
		return false
	}
	for i := range r.Args {
		if r.Args[i] != other.Args[i] {
			return false
		}
	}
	return true
}

func containsSpace(s string) bool {
	return strings.ContainsAny(s, " \t\n\r")
}
