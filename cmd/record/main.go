// Command record captures a training-run invocation as a replayable
// cli_call.sh sidecar inside a timestamped run directory.
//
//	record -root ./out -variant resnet -- train_resnet_bbb.py --lr=0.005 --use_adam --num_tasks=5
//
// With -dir the run directory is used as given instead of being derived from
// the launch time and variant label. With -register the invocation is also
// posted to the provenance service; CI jobs running with AUTH_MODE=oidc
// authenticate with client credentials.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/runcap-labs/runcap-go/internal/invocation"
	"github.com/runcap-labs/runcap-go/internal/platform/auth"
	"github.com/runcap-labs/runcap-go/internal/platform/env"
	"github.com/runcap-labs/runcap-go/internal/recorder"
	"github.com/runcap-labs/runcap-go/internal/rundir"
)

func main() {
	root := flag.String("root", ".", "root directory run directories are created under")
	dir := flag.String("dir", "", "exact run directory (overrides -root/-variant naming)")
	variant := flag.String("variant", "", "free-text variant label for the run directory name")
	outArg := flag.String("out-arg", "", "output-directory flag to inject (e.g. out_dir); empty disables injection")
	registerURL := flag.String("register", "", "provenance service base URL; when set the run is also registered over HTTP")
	experiment := flag.String("experiment", "", "experiment id to register the run under (requires -register)")
	flag.Parse()

	target, rec, err := run(*root, *dir, *variant, *outArg, flag.Args(), time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "record:", err)
		var storageErr *recorder.StorageError
		if errors.As(err, &storageErr) {
			os.Exit(1)
		}
		os.Exit(2)
	}
	fmt.Printf("recorded %s\n  %s\n", target, rec.CommandLine())

	if strings.TrimSpace(*registerURL) != "" {
		if err := registerRun(context.Background(), *registerURL, *experiment, *variant, rec); err != nil {
			fmt.Fprintln(os.Stderr, "record:", err)
			os.Exit(1)
		}
		fmt.Printf("registered with %s\n", strings.TrimSpace(*registerURL))
	}
}

func run(root, dir, variant, outArg string, argv []string, now time.Time) (string, invocation.Record, error) {
	if len(argv) == 0 {
		return "", invocation.Record{}, errors.New("usage: record [flags] -- <executable> [--flag[=value] ...]")
	}

	rec, err := parseArgv(argv)
	if err != nil {
		return "", invocation.Record{}, err
	}

	target := strings.TrimSpace(dir)
	if target == "" {
		target, err = rundir.Create(root, now, variant)
		if err != nil {
			return "", invocation.Record{}, err
		}
	}

	if outArg = strings.TrimSpace(outArg); outArg != "" {
		flagName := "--" + outArg
		if !hasFlag(rec, flagName) {
			rec.Args = append(rec.Args, invocation.Arg{Name: flagName, Value: target, HasValue: true})
		}
	}

	if err := recorder.Write(target, rec); err != nil {
		return "", invocation.Record{}, err
	}
	return target, rec, nil
}

func parseArgv(argv []string) (invocation.Record, error) {
	rec := invocation.Record{Executable: argv[0]}
	for _, token := range argv[1:] {
		name, value, found := strings.Cut(token, "=")
		if strings.TrimSpace(name) == "" {
			return invocation.Record{}, fmt.Errorf("malformed argument %q", token)
		}
		rec.Args = append(rec.Args, invocation.Arg{Name: name, Value: value, HasValue: found})
	}
	if err := rec.Validate(); err != nil {
		return invocation.Record{}, err
	}
	return rec, nil
}

func hasFlag(rec invocation.Record, name string) bool {
	for _, arg := range rec.Args {
		if arg.Name == name {
			return true
		}
	}
	return false
}

type argPayload struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	HasValue bool   `json:"has_value"`
}

type registerPayload struct {
	ExperimentID string       `json:"experiment_id"`
	Variant      string       `json:"variant,omitempty"`
	Executable   string       `json:"executable"`
	Args         []argPayload `json:"args"`
}

func registerRun(ctx context.Context, baseURL, experimentID, variant string, rec invocation.Record) error {
	if strings.TrimSpace(experimentID) == "" {
		return errors.New("-experiment is required with -register")
	}
	client, err := newRegisterClient(ctx)
	if err != nil {
		return err
	}

	payload := registerPayload{
		ExperimentID: strings.TrimSpace(experimentID),
		Variant:      variant,
		Executable:   rec.Executable,
	}
	for _, arg := range rec.Args {
		payload.Args = append(payload.Args, argPayload{Name: arg.Name, Value: arg.Value, HasValue: arg.HasValue})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(strings.TrimSpace(baseURL), "/")+"/runs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("register run: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register run: service returned %s", resp.Status)
	}
	return nil
}

// newRegisterClient attaches a client-credentials bearer when the CLI runs
// with AUTH_MODE=oidc; otherwise the gateway's own auth mode applies.
func newRegisterClient(ctx context.Context) (*http.Client, error) {
	if strings.ToLower(strings.TrimSpace(env.String("AUTH_MODE", ""))) != string(auth.ModeOIDC) {
		return &http.Client{Timeout: 30 * time.Second}, nil
	}
	cfg, err := auth.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	oidcAuth, err := auth.NewOIDCAuthenticator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := oauth2.NewClient(ctx, oidcAuth.ClientCredentialsSource(ctx))
	client.Timeout = 30 * time.Second
	return client, nil
}
