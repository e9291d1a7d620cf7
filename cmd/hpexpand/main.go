// Command hpexpand expands a YAML hyperparameter grid into run directories,
// one replayable cli_call.sh per configuration.
//
//	hpexpand -config grid.yaml -root ./out
//
// With -dry-run the expanded command lines print to stdout and nothing is
// written. With -rank the run directories under -root are ordered by the
// named performance_overview.txt key instead of expanding anything:
//
//	hpexpand -root ./out -rank test_acc
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/runcap-labs/runcap-go/internal/hpsearch"
	"github.com/runcap-labs/runcap-go/internal/invocation"
	"github.com/runcap-labs/runcap-go/internal/recorder"
	"github.com/runcap-labs/runcap-go/internal/rundir"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML grid config")
	root := flag.String("root", ".", "root directory run directories are created under")
	dryRun := flag.Bool("dry-run", false, "print expanded command lines without writing")
	rankKey := flag.String("rank", "", "rank run directories under -root by this summary key instead of expanding")
	asc := flag.Bool("asc", false, "rank ascending (lower is better)")
	flag.Parse()

	if *rankKey != "" {
		if err := rankRuns(os.Stdout, *root, *rankKey, *asc); err != nil {
			fmt.Fprintln(os.Stderr, "hpexpand:", err)
			os.Exit(1)
		}
		return
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "hpexpand: -config is required")
		os.Exit(2)
	}

	data, err := os.ReadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hpexpand:", err)
		os.Exit(2)
	}
	grid, err := hpsearch.ParseGrid(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hpexpand:", err)
		os.Exit(2)
	}
	records, err := grid.Expand()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hpexpand:", err)
		os.Exit(2)
	}

	if *dryRun {
		for _, rec := range records {
			fmt.Println(rec.CommandLine())
		}
		return
	}

	now := time.Now()
	for i, rec := range records {
		// one directory per configuration, disambiguated by index
		variant := fmt.Sprintf("cfg%03d", i)
		dir, err := rundir.Create(*root, now, variant)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hpexpand:", err)
			os.Exit(1)
		}
		rec.Args = append(rec.Args, invocation.Arg{Name: "--" + grid.OutArg, Value: dir, HasValue: true})
		if err := recorder.Write(dir, rec); err != nil {
			fmt.Fprintln(os.Stderr, "hpexpand:", err)
			os.Exit(1)
		}
		fmt.Printf("%s\n  %s\n", dir, rec.CommandLine())
	}
	fmt.Printf("expanded %d configurations\n", len(records))
}

func rankRuns(w io.Writer, root, key string, asc bool) error {
	runs, err := hpsearch.LoadRankedRuns(root, nil)
	if err != nil {
		return err
	}
	for _, run := range hpsearch.Rank(runs, key, asc) {
		if !run.Summary.Finished() {
			fmt.Fprintf(w, "%s\tunfinished\n", run.RunDir)
			continue
		}
		value, err := run.Summary.Float(key)
		if err != nil {
			fmt.Fprintf(w, "%s\tmissing %s\n", run.RunDir, key)
			continue
		}
		fmt.Fprintf(w, "%s\t%g\n", run.RunDir, value)
	}
	return nil
}
