package provenance

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runcap-labs/runcap-go/internal/domain"
	"github.com/runcap-labs/runcap-go/internal/invocation"
	"github.com/runcap-labs/runcap-go/internal/platform/auditlog"
	"github.com/runcap-labs/runcap-go/internal/platform/lineageevent"
	"github.com/runcap-labs/runcap-go/internal/repo"
	"github.com/runcap-labs/runcap-go/internal/rundir"
	store "github.com/runcap-labs/runcap-go/internal/storage/objectstore"
)

type Service struct {
	runs        repo.RunRepository
	invocations repo.InvocationRepository
	store       store.Store
	bucket      string
	now         func() time.Time
	newID       func() string
}

type AuditInfo struct {
	Actor     string
	RequestID string
	UserAgent string
	IP        net.IP
	Service   string
}

// RegisterInput describes one run registration. OutArg, when set, names the
// output-directory flag to inject (--<out_arg>=<run_dir>) unless the caller
// already supplied it. ExpandedFrom identifies the hyperparameter grid the
// run came out of, when it came out of one.
type RegisterInput struct {
	ExperimentID string
	Variant      string
	Record       invocation.Record
	OutArg       string
	StartedAt    time.Time
	Params       domain.Metadata
	ExpandedFrom string
}

func New(runRepo repo.RunRepository, invocationRepo repo.InvocationRepository, objectStore store.Store, bucket string) (*Service, error) {
	if runRepo == nil || invocationRepo == nil {
		return nil, errors.New("run and invocation repositories are required")
	}
	if objectStore == nil {
		return nil, errors.New("object store is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &Service{
		runs:        runRepo,
		invocations: invocationRepo,
		store:       objectStore,
		bucket:      bucket,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// RegisterRun captures a run's invocation: the script is mirrored to object
// storage before any row exists, then run and record rows are inserted and a
// run.registered audit event plus a registered_in lineage edge are emitted.
func (s *Service) RegisterRun(ctx context.Context, q auditlog.QueryRower, info AuditInfo, input RegisterInput) (domain.Run, domain.InvocationRecord, error) {
	if s == nil || s.store == nil {
		return domain.Run{}, domain.InvocationRecord{}, errors.New("provenance service not initialized")
	}
	if strings.TrimSpace(input.ExperimentID) == "" {
		return domain.Run{}, domain.InvocationRecord{}, errors.New("experiment id is required")
	}
	if strings.TrimSpace(info.Actor) == "" {
		return domain.Run{}, domain.InvocationRecord{}, errors.New("audit actor is required")
	}

	startedAt := input.StartedAt
	if startedAt.IsZero() {
		startedAt = s.now().UTC()
	}
	runID := s.newID()
	runDir := rundir.Name(startedAt, input.Variant)

	rec := input.Record.Clone()
	if outArg := strings.TrimSpace(input.OutArg); outArg != "" {
		rec = injectOutArg(rec, outArg, runDir)
	}

	script, err := invocation.Encode(rec)
	if err != nil {
		return domain.Run{}, domain.InvocationRecord{}, err
	}
	sum := sha256.Sum256(script)
	scriptSHA := hex.EncodeToString(sum[:])

	objectKey := fmt.Sprintf("runs/%s/%s", runID, invocation.ScriptFilename)
	if err := s.store.Put(ctx, s.bucket, objectKey, bytes.NewReader(script), int64(len(script)), "text/x-shellscript"); err != nil {
		return domain.Run{}, domain.InvocationRecord{}, fmt.Errorf("mirror invocation script: %w", err)
	}

	argsJSON, err := invocation.MarshalArgs(rec.Args)
	if err != nil {
		return domain.Run{}, domain.InvocationRecord{}, fmt.Errorf("encode args: %w", err)
	}

	run := domain.Run{
		ID:           runID,
		ExperimentID: strings.TrimSpace(input.ExperimentID),
		Variant:      rundir.Sanitize(input.Variant),
		RunDir:       runDir,
		Status:       domain.RunStatusRegistered,
		StartedAt:    startedAt,
		Params:       input.Params.Clone(),
		CreatedBy:    strings.TrimSpace(info.Actor),
	}
	integrity, err := runIntegritySHA256(run, scriptSHA)
	if err != nil {
		return domain.Run{}, domain.InvocationRecord{}, err
	}
	run.IntegritySHA256 = integrity

	record := domain.InvocationRecord{
		RunID:      runID,
		Executable: rec.Executable,
		ArgsJSON:   argsJSON,
		ObjectKey:  objectKey,
		SHA256:     scriptSHA,
		CreatedAt:  s.now().UTC(),
		CreatedBy:  strings.TrimSpace(info.Actor),
	}

	if err := s.runs.CreateRun(ctx, run); err != nil {
		return domain.Run{}, domain.InvocationRecord{}, err
	}
	if err := s.invocations.CreateInvocation(ctx, record); err != nil {
		return domain.Run{}, domain.InvocationRecord{}, err
	}

	if q != nil {
		if _, err := auditlog.Insert(ctx, q, auditlog.Event{
			Actor:        info.Actor,
			Action:       auditlog.ActionRunRegistered,
			ResourceType: auditlog.ResourceRun,
			ResourceID:   runID,
			RequestID:    info.RequestID,
			IP:           info.IP,
			UserAgent:    info.UserAgent,
			Payload: map[string]any{
				"service":       strings.TrimSpace(info.Service),
				"experiment_id": run.ExperimentID,
				"run_dir":       run.RunDir,
				"script_sha256": scriptSHA,
			},
		}); err != nil {
			return domain.Run{}, domain.InvocationRecord{}, fmt.Errorf("audit run registration: %w", err)
		}
		for _, event := range registerLineage(run, input, info) {
			if _, err := lineageevent.Insert(ctx, q, event); err != nil {
				return domain.Run{}, domain.InvocationRecord{}, fmt.Errorf("record lineage: %w", err)
			}
		}
	}

	return run, record, nil
}

func (s *Service) GetRun(ctx context.Context, runID string) (domain.Run, error) {
	return s.runs.GetRun(ctx, runID)
}

func (s *Service) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	return s.runs.ListRuns(ctx, filter)
}

func (s *Service) GetInvocation(ctx context.Context, runID string) (domain.InvocationRecord, error) {
	return s.invocations.GetInvocation(ctx, runID)
}

// RenderScript rebuilds the canonical script for a stored record and checks
// it against the recorded hash, so tampering with either store is caught at
// read time.
func (s *Service) RenderScript(ctx context.Context, runID string) ([]byte, error) {
	record, err := s.invocations.GetInvocation(ctx, runID)
	if err != nil {
		return nil, err
	}
	rec, err := recordFromStored(record)
	if err != nil {
		return nil, err
	}
	script, err := invocation.Encode(rec)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(script)
	if got := hex.EncodeToString(sum[:]); got != record.SHA256 {
		return nil, fmt.Errorf("invocation record %s integrity mismatch: stored %s, rebuilt %s", runID, record.SHA256, got)
	}
	return script, nil
}

// DefaultScriptURLTTL bounds presigned script links.
const DefaultScriptURLTTL = 10 * time.Minute

// ScriptURL mints an expiring direct link to the mirrored script object, when
// the backing store supports presigning.
func (s *Service) ScriptURL(ctx context.Context, runID string, ttl time.Duration) (string, error) {
	presigner, ok := s.store.(store.Presigner)
	if !ok {
		return "", errors.New("object store does not support presigned links")
	}
	record, err := s.invocations.GetInvocation(ctx, runID)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultScriptURLTTL
	}
	return presigner.PresignGet(ctx, s.bucket, record.ObjectKey, ttl)
}

// DiffRuns compares the invocations of two runs flag by flag.
func (s *Service) DiffRuns(ctx context.Context, runID, otherRunID string) ([]invocation.DiffEntry, error) {
	first, err := s.invocations.GetInvocation(ctx, runID)
	if err != nil {
		return nil, err
	}
	second, err := s.invocations.GetInvocation(ctx, otherRunID)
	if err != nil {
		return nil, err
	}
	prev, err := recordFromStored(first)
	if err != nil {
		return nil, err
	}
	curr, err := recordFromStored(second)
	if err != nil {
		return nil, err
	}
	return invocation.Diff(prev, curr), nil
}

// UpdateStatus transitions a run and audits terminal transitions.
func (s *Service) UpdateStatus(ctx context.Context, q auditlog.QueryRower, info AuditInfo, runID, status string, endedAt *time.Time) error {
	if !domain.ValidRunStatus(status) {
		return fmt.Errorf("status is invalid")
	}
	if err := s.runs.UpdateRunStatus(ctx, runID, status, endedAt); err != nil {
		return err
	}
	if q == nil || (status != domain.RunStatusFinished && status != domain.RunStatusCrashed) {
		return nil
	}
	_, err := auditlog.Insert(ctx, q, auditlog.Event{
		Actor:        info.Actor,
		Action:       "run." + status,
		ResourceType: auditlog.ResourceRun,
		ResourceID:   runID,
		RequestID:    info.RequestID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		Payload: map[string]any{
			"service": strings.TrimSpace(info.Service),
			"status":  status,
		},
	})
	return err
}

// registerLineage builds the edges a registration writes: every run is
// registered_in its experiment, and grid-produced runs are additionally
// expanded_from their grid.
func registerLineage(run domain.Run, input RegisterInput, info AuditInfo) []lineageevent.Event {
	events := []lineageevent.Event{{
		Actor:       info.Actor,
		RequestID:   info.RequestID,
		SubjectType: "run",
		SubjectID:   run.ID,
		Predicate:   lineageevent.PredicateRegisteredIn,
		ObjectType:  "experiment",
		ObjectID:    run.ExperimentID,
		Metadata:    map[string]any{"run_dir": run.RunDir},
	}}
	if grid := strings.TrimSpace(input.ExpandedFrom); grid != "" {
		events = append(events, lineageevent.Event{
			Actor:       info.Actor,
			RequestID:   info.RequestID,
			SubjectType: "run",
			SubjectID:   run.ID,
			Predicate:   lineageevent.PredicateExpandedFrom,
			ObjectType:  "grid",
			ObjectID:    grid,
			Metadata:    map[string]any{"run_dir": run.RunDir},
		})
	}
	return events
}

func recordFromStored(record domain.InvocationRecord) (invocation.Record, error) {
	args, err := invocation.UnmarshalArgs(record.ArgsJSON)
	if err != nil {
		return invocation.Record{}, err
	}
	return invocation.Record{Executable: record.Executable, Args: args}, nil
}

func injectOutArg(rec invocation.Record, outArg, runDir string) invocation.Record {
	flag := "--" + outArg
	for _, arg := range rec.Args {
		if arg.Name == flag {
			return rec
		}
	}
	rec.Args = append(rec.Args, invocation.Arg{Name: flag, Value: runDir, HasValue: true})
	return rec
}

func runIntegritySHA256(run domain.Run, scriptSHA string) (string, error) {
	type integrityInput struct {
		RunID        string    `json:"run_id"`
		ExperimentID string    `json:"experiment_id"`
		Variant      string    `json:"variant,omitempty"`
		RunDir       string    `json:"run_dir"`
		StartedAt    time.Time `json:"started_at"`
		CreatedBy    string    `json:"created_by,omitempty"`
		ScriptSHA256 string    `json:"script_sha256"`
	}
	blob, err := json.Marshal(integrityInput{
		RunID:        run.ID,
		ExperimentID: run.ExperimentID,
		Variant:      run.Variant,
		RunDir:       run.RunDir,
		StartedAt:    run.StartedAt.UTC(),
		CreatedBy:    run.CreatedBy,
		ScriptSHA256: scriptSHA,
	})
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
