// Package auditlog appends run-lifecycle and auth events to the insert-only
// audit_events table. Each row carries a SHA-256 over its canonical encoding
// so after-the-fact edits to the table are detectable.
package auditlog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Run-lifecycle actions emitted by the provenance service. Auth denials use
// the auth.<reason> form via InsertAuthDeny.
const (
	ActionRunRegistered = "run.registered"
	ActionRunFinished   = "run.finished"
	ActionRunCrashed    = "run.crashed"
)

const (
	ResourceRun  = "run"
	ResourceHTTP = "http"
)

// Event is one audit row. At defaults to insertion time when zero.
type Event struct {
	At           time.Time
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	RequestID    string
	IP           net.IP
	UserAgent    string
	Payload      any
}

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (e Event) Validate() error {
	if e.At.IsZero() {
		return errors.New("At is required")
	}
	if strings.TrimSpace(e.Actor) == "" {
		return errors.New("Actor is required")
	}
	action := strings.TrimSpace(e.Action)
	if action == "" {
		return errors.New("Action is required")
	}
	if !strings.HasPrefix(action, "run.") && !strings.HasPrefix(action, "auth.") {
		return fmt.Errorf("Action %q is outside the run./auth. vocabulary", action)
	}
	switch strings.TrimSpace(e.ResourceType) {
	case ResourceRun, ResourceHTTP:
	case "":
		return errors.New("ResourceType is required")
	default:
		return fmt.Errorf("ResourceType %q is not audited", e.ResourceType)
	}
	if strings.TrimSpace(e.ResourceID) == "" {
		return errors.New("ResourceID is required")
	}
	return nil
}

// normalized is the canonical form of an event: trimmed fields, UTC time,
// IP rendered as text. Both the row and the integrity hash are built from it.
type normalized struct {
	At           time.Time       `json:"occurred_at"`
	Actor        string          `json:"actor"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	RequestID    string          `json:"request_id,omitempty"`
	IP           string          `json:"ip,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

func normalize(e Event, payloadJSON []byte) normalized {
	ip := strings.TrimSpace(e.IP.String())
	if ip == "<nil>" {
		ip = ""
	}
	return normalized{
		At:           e.At.UTC(),
		Actor:        strings.TrimSpace(e.Actor),
		Action:       strings.TrimSpace(e.Action),
		ResourceType: strings.TrimSpace(e.ResourceType),
		ResourceID:   strings.TrimSpace(e.ResourceID),
		RequestID:    strings.TrimSpace(e.RequestID),
		IP:           ip,
		UserAgent:    strings.TrimSpace(e.UserAgent),
		Payload:      payloadJSON,
	}
}

func Insert(ctx context.Context, q QueryRower, event Event) (int64, error) {
	if q == nil {
		return 0, errors.New("queryer is required")
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}

	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	row := normalize(event, payloadJSON)
	integrity, err := integritySHA256(row)
	if err != nil {
		return 0, err
	}

	var id int64
	err = q.QueryRowContext(
		ctx,
		`INSERT INTO audit_events (
			occurred_at,
			actor,
			action,
			resource_type,
			resource_id,
			request_id,
			ip,
			user_agent,
			payload,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING event_id`,
		row.At,
		row.Actor,
		row.Action,
		row.ResourceType,
		row.ResourceID,
		nullable(row.RequestID),
		nullable(row.IP),
		nullable(row.UserAgent),
		payloadJSON,
		integrity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert audit event: %w", err)
	}
	return id, nil
}

func nullable(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// ComputeIntegritySHA256 hashes an event's canonical encoding. payloadJSON
// must be the already-marshaled payload so the hash matches the stored row.
func ComputeIntegritySHA256(event Event, payloadJSON []byte) (string, error) {
	return integritySHA256(normalize(event, payloadJSON))
}

func integritySHA256(row normalized) (string, error) {
	blob, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
