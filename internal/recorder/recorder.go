// Package recorder persists invocation records as replayable sidecar scripts
// inside run directories.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/runcap-labs/runcap-go/internal/invocation"
)

// StorageError reports a filesystem rejection while persisting a record: the
// run directory could not be created, or the script write failed. Losing
// provenance is never swallowed; callers decide how to surface it.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store invocation record at %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Write encodes rec and writes it to <dir>/cli_call.sh, creating dir if
// needed. The script is executable. Rewriting the same record yields a
// byte-identical file; on a colliding directory the last writer wins.
//
// Encoding failures (an invalid record) surface as plain errors; filesystem
// failures surface as *StorageError.
func Write(dir string, rec invocation.Record) error {
	data, err := invocation.Encode(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, invocation.ScriptFilename)
	if err := os.WriteFile(path, data, 0o755); err != nil {
		return &StorageError{Path: path, Err: err}
	}
	return nil
}

// Read loads and parses the sidecar script from a run directory.
func Read(dir string) (invocation.Record, error) {
	path := filepath.Join(dir, invocation.ScriptFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return invocation.Record{}, fmt.Errorf("no invocation record in %s: %w", dir, err)
		}
		return invocation.Record{}, &StorageError{Path: path, Err: err}
	}
	return invocation.Parse(data)
}
