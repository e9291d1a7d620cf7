package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/runcap-labs/runcap-go/internal/invocation"
)

func TestRunCreatesTimestampedDirAndScript(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 8, 26, 14, 3, 59, 0, time.UTC)

	target, rec, err := run(root, "", "resnet", "", []string{"train_resnet_bbb.py", "--lr=0.005", "--use_adam", "--num_tasks=5"}, now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if filepath.Base(target) != "2026-08-26_14-03-59_resnet" {
		t.Fatalf("run dir = %q", target)
	}
	if rec.CommandLine() != "train_resnet_bbb.py --lr=0.005 --use_adam --num_tasks=5" {
		t.Fatalf("command = %q", rec.CommandLine())
	}

	data, err := os.ReadFile(filepath.Join(target, invocation.ScriptFilename))
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if !strings.HasPrefix(string(data), "#!/bin/sh\n") {
		t.Fatalf("script missing shebang:\n%s", data)
	}
	parsed, err := invocation.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Equal(rec) {
		t.Fatalf("round trip mismatch: %q", parsed.CommandLine())
	}
}

func TestRunUsesExplicitDirAndInjectsOutArg(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run_7")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	target, rec, err := run("", dir, "", "out_dir", []string{"train.py", "--lr=0.1"}, time.Now())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if target != dir {
		t.Fatalf("target = %q, want %q", target, dir)
	}
	last := rec.Args[len(rec.Args)-1]
	if last.Name != "--out_dir" || last.Value != dir || !last.HasValue {
		t.Fatalf("injected arg = %+v", last)
	}
}

func TestRunKeepsCallerOutArg(t *testing.T) {
	dir := t.TempDir()
	_, rec, err := run("", dir, "", "out_dir", []string{"train.py", "--out_dir=custom"}, time.Now())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.Args) != 1 || rec.Args[0].Value != "custom" {
		t.Fatalf("args = %+v", rec.Args)
	}
}

func TestRunRejectsEmptyArgv(t *testing.T) {
	if _, _, err := run(t.TempDir(), "", "", "", nil, time.Now()); err == nil {
		t.Fatal("expected usage error")
	}
}

func TestParseArgv(t *testing.T) {
	rec, err := parseArgv([]string{"train.py", "--lr=0.005", "--use_adam", "--temp=-0.5"})
	if err != nil {
		t.Fatalf("parseArgv: %v", err)
	}
	want := []invocation.Arg{
		{Name: "--lr", Value: "0.005", HasValue: true},
		{Name: "--use_adam"},
		{Name: "--temp", Value: "-0.5", HasValue: true},
	}
	if len(rec.Args) != len(want) {
		t.Fatalf("args = %+v", rec.Args)
	}
	for i := range want {
		if rec.Args[i] != want[i] {
			t.Fatalf("arg %d = %+v, want %+v", i, rec.Args[i], want[i])
		}
	}

	if _, err := parseArgv([]string{"train.py", "=oops"}); err == nil {
		t.Fatal("expected error for empty flag name")
	}
}

func TestRegisterRunPostsInvocation(t *testing.T) {
	var got registerPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/runs" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	rec := invocation.Record{
		Executable: "train.py",
		Args: []invocation.Arg{
			{Name: "--lr", Value: "0.005", HasValue: true},
			{Name: "--use_adam"},
		},
	}
	if err := registerRun(context.Background(), srv.URL, "exp-1", "resnet", rec); err != nil {
		t.Fatalf("registerRun: %v", err)
	}
	if got.ExperimentID != "exp-1" || got.Variant != "resnet" || got.Executable != "train.py" {
		t.Fatalf("payload = %+v", got)
	}
	if len(got.Args) != 2 || got.Args[0].Name != "--lr" || got.Args[1].HasValue {
		t.Fatalf("args = %+v", got.Args)
	}
}

func TestRegisterRunErrors(t *testing.T) {
	rec := invocation.Record{Executable: "train.py"}
	if err := registerRun(context.Background(), "http://localhost:0", "", "", rec); err == nil {
		t.Fatal("expected error without experiment id")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	if err := registerRun(context.Background(), srv.URL, "exp-1", "", rec); err == nil {
		t.Fatal("expected error on non-201 response")
	}
}
