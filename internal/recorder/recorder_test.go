package recorder

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/runcap-labs/runcap-go/internal/invocation"
)

func sampleRecord() invocation.Record {
	return invocation.Record{
		Executable: "train_resnet_bbb.py",
		Args: []invocation.Arg{
			{Name: "--lr", Value: "0.005", HasValue: true},
			{Name: "--use_adam"},
			{Name: "--num_tasks", Value: "5", HasValue: true},
		},
	}
}

func TestWriteCreatesScript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run_X")
	if err := Write(dir, sampleRecord()); err != nil {
		t.Fatalf("Write() err=%v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, invocation.ScriptFilename))
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	want := "train_resnet_bbb.py --lr=0.005 --use_adam --num_tasks=5"
	if got := lines[len(lines)-1]; got != want {
		t.Fatalf("final line=%q, want %q", got, want)
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecord()

	if err := Write(dir, rec); err != nil {
		t.Fatalf("first Write() err=%v", err)
	}
	first, err := os.ReadFile(filepath.Join(dir, invocation.ScriptFilename))
	if err != nil {
		t.Fatalf("read script: %v", err)
	}

	if err := Write(dir, rec); err != nil {
		t.Fatalf("second Write() err=%v", err)
	}
	second, err := os.ReadFile(filepath.Join(dir, invocation.ScriptFilename))
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected byte-identical rewrites")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecord()
	if err := Write(dir, rec); err != nil {
		t.Fatalf("Write() err=%v", err)
	}
	got, err := Read(dir)
	if err != nil {
		t.Fatalf("Read() err=%v", err)
	}
	if !got.Equal(rec) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, rec)
	}
}

func TestWriteStorageErrorLeavesNothingBehind(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are unreliable on windows")
	}
	if os.Getuid() == 0 {
		t.Skip("permission bits are ignored when running as root")
	}
	parent := t.TempDir()
	if err := os.Chmod(parent, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })

	dir := filepath.Join(parent, "run_X")
	err := Write(dir, sampleRecord())
	if err == nil {
		t.Fatalf("expected error for unwritable parent")
	}
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T: %v", err, err)
	}
	if _, statErr := os.Stat(dir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected no directory left behind, stat err=%v", statErr)
	}
}

func TestWriteInvalidRecordIsNotStorageError(t *testing.T) {
	err := Write(t.TempDir(), invocation.Record{})
	if err == nil {
		t.Fatalf("expected error for invalid record")
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		t.Fatalf("validation failure must not be a StorageError")
	}
}

func TestReadMissingRecord(t *testing.T) {
	_, err := Read(t.TempDir())
	if err == nil {
		t.Fatalf("expected error for missing record")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped os.ErrNotExist, got %v", err)
	}
}
