// Package hpsearch expands hyperparameter grids into concrete training-run
// invocations and parses the performance summaries those runs leave behind.
package hpsearch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/runcap-labs/runcap-go/internal/invocation"
)

// Candidate is one searchable value for a flag. Boolean candidates control
// flag presence: true renders the bare flag, false omits it entirely. Every
// other scalar renders as --flag=<text>, verbatim.
type Candidate struct {
	Text   string
	Bool   bool
	IsBool bool
}

// Entry pairs a flag name with its candidate values. Grid order is command
// line order in every expanded invocation.
type Entry struct {
	Flag   string
	Values []Candidate
}

// Condition forces alternative candidates onto configurations that match.
// Semantics follow the search configs this replaces: a configuration matching
// every flag/value in When is re-expanded over the Then candidates instead of
// whatever the grid assigned. Conditions naming flags absent from the grid are
// ignored.
type Condition struct {
	When []Entry
	Then []Entry
}

// Grid is an ordered hyperparameter search space.
type Grid struct {
	Script     string
	OutArg     string
	Entries    []Entry
	Conditions []Condition
}

// DefaultOutArg names the flag the launcher injects per run directory.
const DefaultOutArg = "out_dir"

func (g Grid) Validate() error {
	if strings.TrimSpace(g.Script) == "" {
		return errors.New("script is required")
	}
	if len(g.Entries) == 0 {
		return errors.New("grid must name at least one flag")
	}
	outArg := strings.TrimSpace(g.OutArg)
	if outArg == "" {
		outArg = DefaultOutArg
	}
	seen := make(map[string]struct{}, len(g.Entries))
	for i, entry := range g.Entries {
		flag := strings.TrimSpace(entry.Flag)
		if flag == "" {
			return fmt.Errorf("grid[%d]: flag name is required", i)
		}
		// the launcher owns the output flag, one value per run directory
		if flag == outArg {
			return fmt.Errorf("grid[%d]: flag %q is reserved for the output directory", i, flag)
		}
		if _, ok := seen[flag]; ok {
			return fmt.Errorf("grid[%d]: duplicate flag %q", i, flag)
		}
		seen[flag] = struct{}{}
		if len(entry.Values) == 0 {
			return fmt.Errorf("grid[%d]: flag %q has no candidate values", i, flag)
		}
	}
	return nil
}

// Expand produces the cartesian product of the grid as invocation records,
// applies conditions, and drops duplicates (conditions can collapse distinct
// grid points onto the same configuration). Order is deterministic: within a
// row, later grid entries vary fastest.
func (g Grid) Expand() ([]invocation.Record, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	configs := [][]Candidate{nil}
	for _, entry := range g.Entries {
		next := make([][]Candidate, 0, len(configs)*len(entry.Values))
		for _, base := range configs {
			for _, value := range entry.Values {
				row := make([]Candidate, len(base), len(base)+1)
				copy(row, base)
				next = append(next, append(row, value))
			}
		}
		configs = next
	}

	for _, cond := range g.Conditions {
		expanded := make([][]Candidate, 0, len(configs))
		for _, row := range configs {
			if !g.matches(row, cond.When) {
				expanded = append(expanded, row)
				continue
			}
			expanded = append(expanded, g.applyOverrides(row, cond.Then)...)
		}
		configs = expanded
	}

	records := make([]invocation.Record, 0, len(configs))
	seen := make(map[string]struct{}, len(configs))
	for _, row := range configs {
		rec := g.record(row)
		key := rec.CommandLine()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("expand grid: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (g Grid) record(row []Candidate) invocation.Record {
	rec := invocation.Record{Executable: strings.TrimSpace(g.Script)}
	for i, value := range row {
		flag := "--" + strings.TrimSpace(g.Entries[i].Flag)
		if value.IsBool {
			if value.Bool {
				rec.Args = append(rec.Args, invocation.Arg{Name: flag})
			}
			continue
		}
		rec.Args = append(rec.Args, invocation.Arg{Name: flag, Value: value.Text, HasValue: true})
	}
	return rec
}

func (g Grid) matches(row []Candidate, when []Entry) bool {
	if len(when) == 0 {
		return false
	}
	for _, entry := range when {
		idx := g.entryIndex(entry.Flag)
		if idx < 0 {
			return false
		}
		found := false
		for _, candidate := range entry.Values {
			if row[idx] == candidate {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// applyOverrides re-expands a matching row over the condition's Then
// candidates. Overrides for flags outside the grid are ignored.
func (g Grid) applyOverrides(row []Candidate, then []Entry) [][]Candidate {
	rows := [][]Candidate{row}
	for _, entry := range then {
		idx := g.entryIndex(entry.Flag)
		if idx < 0 || len(entry.Values) == 0 {
			continue
		}
		next := make([][]Candidate, 0, len(rows)*len(entry.Values))
		for _, base := range rows {
			for _, value := range entry.Values {
				out := make([]Candidate, len(base))
				copy(out, base)
				out[idx] = value
				next = append(next, out)
			}
		}
		rows = next
	}
	return rows
}

func (g Grid) entryIndex(flag string) int {
	flag = strings.TrimSpace(flag)
	for i, entry := range g.Entries {
		if strings.TrimSpace(entry.Flag) == flag {
			return i
		}
	}
	return -1
}
