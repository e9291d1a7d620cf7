package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/runcap-labs/runcap-go/internal/domain"
	"github.com/runcap-labs/runcap-go/internal/hpsearch"
	"github.com/runcap-labs/runcap-go/internal/invocation"
	"github.com/runcap-labs/runcap-go/internal/platform/auth"
	"github.com/runcap-labs/runcap-go/internal/repo"
	"github.com/runcap-labs/runcap-go/internal/service/provenance"
)

const maxBodyBytes = 1 << 20

type provenanceAPI struct {
	logger *slog.Logger
	db     *sql.DB
	svc    *provenance.Service
}

func newProvenanceAPI(logger *slog.Logger, db *sql.DB, svc *provenance.Service) *provenanceAPI {
	return &provenanceAPI{
		logger: logger,
		db:     db,
		svc:    svc,
	}
}

func (api *provenanceAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /runs", api.handleRegisterRun)
	mux.HandleFunc("GET /runs", api.handleListRuns)
	mux.HandleFunc("GET /runs/{run_id}", api.handleGetRun)
	mux.HandleFunc("PATCH /runs/{run_id}/status", api.handleUpdateStatus)
	mux.HandleFunc("GET /runs/{run_id}/cli_call.sh", api.handleGetScript)
	mux.HandleFunc("GET /runs/{run_id}/script_url", api.handleScriptURL)
	mux.HandleFunc("GET /runs/{run_id}/diff/{other_run_id}", api.handleDiff)

	mux.HandleFunc("POST /grids/expand", api.handleExpandGrid)
}

type argPayload struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	HasValue bool   `json:"has_value"`
}

type registerRunRequest struct {
	ExperimentID string         `json:"experiment_id"`
	Variant      string         `json:"variant,omitempty"`
	Executable   string         `json:"executable"`
	Args         []argPayload   `json:"args"`
	OutArg       string         `json:"out_arg,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	ExpandedFrom string         `json:"expanded_from,omitempty"`
}

type runResponse struct {
	RunID        string         `json:"run_id"`
	ExperimentID string         `json:"experiment_id"`
	Variant      string         `json:"variant,omitempty"`
	RunDir       string         `json:"run_dir"`
	Status       string         `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
	Params       map[string]any `json:"params"`
	CreatedBy    string         `json:"created_by,omitempty"`
	Integrity    string         `json:"integrity_sha256"`
}

type invocationResponse struct {
	RunID      string       `json:"run_id"`
	Executable string       `json:"executable"`
	Args       []argPayload `json:"args"`
	Command    string       `json:"command"`
	ObjectKey  string       `json:"object_key,omitempty"`
	SHA256     string       `json:"script_sha256"`
	CreatedAt  time.Time    `json:"created_at"`
	CreatedBy  string       `json:"created_by,omitempty"`
}

func (api *provenanceAPI) handleRegisterRun(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	var req registerRunRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.ExperimentID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "experiment_id_required")
		return
	}

	rec := invocation.Record{Executable: strings.TrimSpace(req.Executable)}
	for _, arg := range req.Args {
		rec.Args = append(rec.Args, invocation.Arg{Name: arg.Name, Value: arg.Value, HasValue: arg.HasValue})
	}
	if err := rec.Validate(); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_invocation")
		return
	}

	input := provenance.RegisterInput{
		ExperimentID: req.ExperimentID,
		Variant:      req.Variant,
		Record:       rec,
		OutArg:       req.OutArg,
		Params:       domain.Metadata(req.Params),
		ExpandedFrom: req.ExpandedFrom,
	}
	if req.StartedAt != nil {
		input.StartedAt = req.StartedAt.UTC()
	}

	run, record, err := api.svc.RegisterRun(r.Context(), api.db, api.auditInfo(r, identity), input)
	if err != nil {
		api.logger.Error("register run", "request_id", r.Header.Get("X-Request-Id"), "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	api.writeJSON(w, http.StatusCreated, map[string]any{
		"run":        toRunResponse(run),
		"invocation": toInvocationResponse(record),
	})
}

func (api *provenanceAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		ExperimentID: strings.TrimSpace(r.URL.Query().Get("experiment_id")),
		Variant:      strings.TrimSpace(r.URL.Query().Get("variant")),
		Status:       strings.TrimSpace(r.URL.Query().Get("status")),
		Limit:        clampInt(parseIntQuery(r, "limit", 100), 1, 500),
	}

	runs, err := api.svc.ListRuns(r.Context(), filter)
	if err != nil {
		api.logger.Error("list runs", "request_id", r.Header.Get("X-Request-Id"), "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (api *provenanceAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	run, err := api.svc.GetRun(r.Context(), runID)
	if err != nil {
		api.writeRepoError(w, r, err, "get run")
		return
	}
	resp := map[string]any{"run": toRunResponse(run)}

	record, err := api.svc.GetInvocation(r.Context(), runID)
	switch {
	case err == nil:
		resp["invocation"] = toInvocationResponse(record)
	case errors.Is(err, repo.ErrNotFound):
		// registered before record mirroring is visible; return the run alone
	default:
		api.writeRepoError(w, r, err, "get invocation")
		return
	}

	api.writeJSON(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status  string     `json:"status"`
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

func (api *provenanceAPI) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if !domain.ValidRunStatus(req.Status) {
		api.writeError(w, r, http.StatusBadRequest, "invalid_status")
		return
	}

	err := api.svc.UpdateStatus(r.Context(), api.db, api.auditInfo(r, identity), runID, strings.TrimSpace(req.Status), req.EndedAt)
	if err != nil {
		api.writeRepoError(w, r, err, "update status")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "status": strings.TrimSpace(req.Status)})
}

func (api *provenanceAPI) handleGetScript(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	script, err := api.svc.RenderScript(r.Context(), runID)
	if err != nil {
		api.writeRepoError(w, r, err, "render script")
		return
	}

	w.Header().Set("Content-Type", "text/x-shellscript")
	w.Header().Set("Content-Disposition", `attachment; filename="`+invocation.ScriptFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(script)
}

func (api *provenanceAPI) handleScriptURL(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	url, err := api.svc.ScriptURL(r.Context(), runID, provenance.DefaultScriptURLTTL)
	if err != nil {
		api.writeRepoError(w, r, err, "script url")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":             runID,
		"url":                url,
		"expires_in_seconds": int(provenance.DefaultScriptURLTTL.Seconds()),
	})
}

func (api *provenanceAPI) handleDiff(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	otherRunID := strings.TrimSpace(r.PathValue("other_run_id"))
	if runID == "" || otherRunID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	entries, err := api.svc.DiffRuns(r.Context(), runID, otherRunID)
	if err != nil {
		api.writeRepoError(w, r, err, "diff runs")
		return
	}

	type diffPayload struct {
		Flag string `json:"flag"`
		Kind string `json:"kind"`
		Old  string `json:"old,omitempty"`
		New  string `json:"new,omitempty"`
	}
	out := make([]diffPayload, 0, len(entries))
	for _, entry := range entries {
		out = append(out, diffPayload{
			Flag: entry.Name,
			Kind: string(entry.Kind),
			Old:  entry.Old,
			New:  entry.New,
		})
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       runID,
		"other_run_id": otherRunID,
		"entries":      out,
	})
}

type expandGridRequest struct {
	Config string `json:"config"`
}

func (api *provenanceAPI) handleExpandGrid(w http.ResponseWriter, r *http.Request) {
	var req expandGridRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Config) == "" {
		api.writeError(w, r, http.StatusBadRequest, "config_required")
		return
	}

	grid, err := hpsearch.ParseGrid([]byte(req.Config))
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_grid")
		return
	}
	records, err := grid.Expand()
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_grid")
		return
	}

	commands := make([]string, 0, len(records))
	for _, rec := range records {
		commands = append(commands, rec.CommandLine())
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"script":   grid.Script,
		"out_arg":  grid.OutArg,
		"count":    len(commands),
		"commands": commands,
	})
}

func (api *provenanceAPI) auditInfo(r *http.Request, identity auth.Identity) provenance.AuditInfo {
	var ip net.IP
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = net.ParseIP(host)
	}
	return provenance.AuditInfo{
		Actor:     identity.Subject,
		RequestID: r.Header.Get("X-Request-Id"),
		UserAgent: r.UserAgent(),
		IP:        ip,
		Service:   "provenance",
	}
}

func toRunResponse(run domain.Run) runResponse {
	params := run.Params
	if params == nil {
		params = domain.Metadata{}
	}
	return runResponse{
		RunID:        run.ID,
		ExperimentID: run.ExperimentID,
		Variant:      run.Variant,
		RunDir:       run.RunDir,
		Status:       run.Status,
		StartedAt:    run.StartedAt,
		EndedAt:      run.EndedAt,
		Params:       params,
		CreatedBy:    run.CreatedBy,
		Integrity:    run.IntegritySHA256,
	}
}

func toInvocationResponse(record domain.InvocationRecord) invocationResponse {
	resp := invocationResponse{
		RunID:      record.RunID,
		Executable: record.Executable,
		ObjectKey:  record.ObjectKey,
		SHA256:     record.SHA256,
		CreatedAt:  record.CreatedAt,
		CreatedBy:  record.CreatedBy,
	}
	args, err := invocation.UnmarshalArgs(record.ArgsJSON)
	if err != nil {
		return resp
	}
	rec := invocation.Record{Executable: record.Executable, Args: args}
	resp.Command = rec.CommandLine()
	for _, arg := range args {
		resp.Args = append(resp.Args, argPayload{Name: arg.Name, Value: arg.Value, HasValue: arg.HasValue})
	}
	return resp
}

func (api *provenanceAPI) writeRepoError(w http.ResponseWriter, r *http.Request, err error, op string) {
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "not_found")
		return
	}
	api.logger.Error(op, "request_id", r.Header.Get("X-Request-Id"), "error", err)
	api.writeError(w, r, http.StatusInternalServerError, "internal_error")
}

func (api *provenanceAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *provenanceAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
