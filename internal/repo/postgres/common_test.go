package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/runcap-labs/runcap-go/internal/domain"
	"github.com/runcap-labs/runcap-go/internal/repo"
)

func TestNormalizeTime(t *testing.T) {
	if got := normalizeTime(time.Time{}); got.IsZero() {
		t.Fatal("zero time must default to now")
	}
	local := time.Date(2026, 8, 26, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	if got := normalizeTime(local); got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
}

func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("  ").Valid {
		t.Fatal("blank string must map to NULL")
	}
	got := nullIfEmpty(" resnet ")
	if !got.Valid || got.String != "resnet" {
		t.Fatalf("got %+v", got)
	}
}

func TestMetadataCodec(t *testing.T) {
	blob, err := encodeMetadata(nil)
	if err != nil {
		t.Fatalf("encodeMetadata: %v", err)
	}
	if string(blob) != "{}" {
		t.Fatalf("nil metadata encodes as %q", blob)
	}

	meta, err := decodeMetadata([]byte(`{"lr": 0.005}`))
	if err != nil {
		t.Fatalf("decodeMetadata: %v", err)
	}
	if meta["lr"] != 0.005 {
		t.Fatalf("meta = %v", meta)
	}

	meta, err = decodeMetadata(nil)
	if err != nil || meta == nil {
		t.Fatalf("empty input must yield empty metadata, got %v, %v", meta, err)
	}

	if _, err := decodeMetadata([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}

	var _ domain.Metadata = meta
}

func TestHandleNotFound(t *testing.T) {
	if got := handleNotFound(sql.ErrNoRows); !errors.Is(got, repo.ErrNotFound) {
		t.Fatalf("got %v", got)
	}
	other := errors.New("connection reset")
	if got := handleNotFound(other); !errors.Is(got, other) {
		t.Fatalf("got %v", got)
	}
}
