package hpsearch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SummaryFilename is the sidecar a finished run writes next to cli_call.sh.
const SummaryFilename = "performance_overview.txt"

// finishedKey must appear in every summary; a missing or zero value marks the
// run as crashed or still in flight.
const finishedKey = "finished"

// Summary holds one run's parsed performance overview, keyed values in file
// order.
type Summary struct {
	Keys   []string
	Values map[string]string
}

func (s Summary) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Float returns the first numeric token of a summary value. Values may be
// scalar ("0.93") or a comma-separated series ("0.91,0.92,0.93"); the series
// form sorts by its first entry.
func (s Summary) Float(key string) (float64, error) {
	raw, ok := s.Values[key]
	if !ok {
		return 0, fmt.Errorf("summary key %q missing", key)
	}
	first := strings.TrimSpace(strings.Split(raw, ",")[0])
	v, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return 0, fmt.Errorf("summary key %q: %w", key, err)
	}
	return v, nil
}

func (s Summary) Finished() bool {
	raw, ok := s.Values[finishedKey]
	if !ok {
		return false
	}
	raw = strings.TrimSpace(raw)
	return raw != "" && raw != "0"
}

// ParseSummary reads "key : value" lines. Unknown keys are rejected when an
// allow-list is given; the finished keyword is always required.
func ParseSummary(data []byte, allowed []string) (Summary, error) {
	allow := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		allow[strings.TrimSpace(key)] = struct{}{}
	}

	summary := Summary{Values: make(map[string]string)}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return Summary{}, fmt.Errorf("summary line %d: expected 'key : value', got %q", i+1, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return Summary{}, fmt.Errorf("summary line %d: empty key", i+1)
		}
		if len(allow) > 0 {
			if _, ok := allow[key]; !ok {
				return Summary{}, fmt.Errorf("summary line %d: unknown key %q", i+1, key)
			}
		}
		if _, dup := summary.Values[key]; dup {
			return Summary{}, fmt.Errorf("summary line %d: duplicate key %q", i+1, key)
		}
		summary.Keys = append(summary.Keys, key)
		summary.Values[key] = value
	}
	if _, ok := summary.Values[finishedKey]; !ok {
		return Summary{}, fmt.Errorf("summary missing required key %q", finishedKey)
	}
	return summary, nil
}

// RankedRun pairs a run identifier with its parsed summary for sorting.
type RankedRun struct {
	RunDir  string
	Summary Summary
}

// LoadRankedRuns reads every run directory's performance overview under
// root. Directories without one are included unfinished, so Rank sorts them
// last; a malformed overview is an error.
func LoadRankedRuns(root string, allowed []string) ([]RankedRun, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read run root: %w", err)
	}
	runs := make([]RankedRun, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run := RankedRun{RunDir: entry.Name()}
		data, err := os.ReadFile(filepath.Join(root, entry.Name(), SummaryFilename))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read summary for %s: %w", entry.Name(), err)
		default:
			summary, err := ParseSummary(data, allowed)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", entry.Name(), err)
			}
			run.Summary = summary
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Rank orders finished runs by the performance key, descending unless asc is
// set. Unfinished runs and runs whose key will not parse sort last, keeping
// their relative order.
func Rank(runs []RankedRun, performanceKey string, asc bool) []RankedRun {
	out := make([]RankedRun, len(runs))
	copy(out, runs)
	score := func(r RankedRun) (float64, bool) {
		if !r.Summary.Finished() {
			return 0, false
		}
		v, err := r.Summary.Float(performanceKey)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, oki := score(out[i])
		vj, okj := score(out[j])
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		if asc {
			return vi < vj
		}
		return vi > vj
	})
	return out
}
