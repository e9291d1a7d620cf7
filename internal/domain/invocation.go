package domain

import (
	"errors"
	"strings"
	"time"
)

// InvocationRecord is the stored capture of the command line that launched a
// run. It is written once at registration and never mutated or deleted; the
// integrity hash pins the exact script bytes mirrored to object storage.
type InvocationRecord struct {
	RunID      string
	Executable string
	// ArgsJSON is the ordered argument list as stored (JSON array of
	// {name, value, has_value}); order is part of the record's identity.
	ArgsJSON  []byte
	ObjectKey string
	SHA256    string
	CreatedAt time.Time
	CreatedBy string
}

func (r InvocationRecord) Validate() error {
	if strings.TrimSpace(r.RunID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(r.Executable) == "" {
		return errors.New("executable is required")
	}
	if len(r.ArgsJSON) == 0 {
		return errors.New("args are required")
	}
	if strings.TrimSpace(r.SHA256) == "" {
		return errors.New("script sha256 is required")
	}
	return nil
}
