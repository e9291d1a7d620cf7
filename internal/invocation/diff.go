package invocation

// DiffEntry describes one flag that differs between two records.
type DiffEntry struct {
	Name string
	Kind DiffKind
	// Old/New render like CommandLine tokens ("--lr=0.01") and are empty when
	// the flag is absent on that side.
	Old string
	New string
}

type DiffKind string

const (
	DiffAdded   DiffKind = "added"
	DiffRemoved DiffKind = "removed"
	DiffChanged DiffKind = "changed"
)

// Diff compares two records flag by flag, keyed on flag name (last occurrence
// wins for duplicated flags). Entries follow the flag order of the previous
// record, with additions appended in the current record's order. A differing executable is
// reported under the pseudo-name "<executable>".
func Diff(prev, curr Record) []DiffEntry {
	entries := make([]DiffEntry, 0)
	if prev.Executable != curr.Executable {
		entries = append(entries, DiffEntry{
			Name: "<executable>",
			Kind: DiffChanged,
			Old:  prev.Executable,
			New:  curr.Executable,
		})
	}

	prevByName := lastByName(prev.Args)
	currByName := lastByName(curr.Args)

	seen := make(map[string]struct{}, len(prev.Args))
	for _, arg := range prev.Args {
		if _, ok := seen[arg.Name]; ok {
			continue
		}
		seen[arg.Name] = struct{}{}
		before := prevByName[arg.Name]
		after, inCurr := currByName[arg.Name]
		switch {
		case !inCurr:
			entries = append(entries, DiffEntry{Name: arg.Name, Kind: DiffRemoved, Old: before.String()})
		case before != after:
			entries = append(entries, DiffEntry{Name: arg.Name, Kind: DiffChanged, Old: before.String(), New: after.String()})
		}
	}
	for _, arg := range curr.Args {
		if _, ok := seen[arg.Name]; ok {
			continue
		}
		seen[arg.Name] = struct{}{}
		entries = append(entries, DiffEntry{Name: arg.Name, Kind: DiffAdded, New: currByName[arg.Name].String()})
	}
	return entries
}

func lastByName(args []Arg) map[string]Arg {
	out := make(map[string]Arg, len(args))
	for _, arg := range args {
		out[arg.Name] = arg
	}
	return out
}
