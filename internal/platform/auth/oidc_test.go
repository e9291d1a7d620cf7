package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                srv.URL,
			"authorization_endpoint":                srv.URL + "/authorize",
			"token_endpoint":                        srv.URL + "/token",
			"jwks_uri":                              srv.URL + "/keys",
			"response_types_supported":              []string{"code"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			http.Error(w, "unexpected grant_type "+got, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "machine-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	})
	srv = httptest.NewServer(mux)
	return srv
}

func TestClientCredentialsSource(t *testing.T) {
	srv := newFakeProvider(t)
	defer srv.Close()

	cfg := Config{
		Mode:             ModeOIDC,
		RolesClaim:       "roles",
		EmailClaim:       "email",
		OIDCIssuerURL:    srv.URL,
		OIDCClientID:     "runcap-ci",
		OIDCClientSecret: "ci-secret",
		OIDCScopes:       []string{"openid"},
	}
	authn, err := NewOIDCAuthenticator(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewOIDCAuthenticator() err=%v", err)
	}

	token, err := authn.ClientCredentialsSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() err=%v", err)
	}
	if token.AccessToken != "machine-token" {
		t.Fatalf("access token = %q", token.AccessToken)
	}
}

func TestOIDCAuthenticatorRejectsMissingBearer(t *testing.T) {
	srv := newFakeProvider(t)
	defer srv.Close()

	cfg := Config{
		Mode:          ModeOIDC,
		RolesClaim:    "roles",
		EmailClaim:    "email",
		OIDCIssuerURL: srv.URL,
		OIDCClientID:  "runcap-ci",
	}
	authn, err := NewOIDCAuthenticator(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewOIDCAuthenticator() err=%v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	if _, err := authn.Authenticate(context.Background(), req); err != ErrUnauthenticated {
		t.Fatalf("Authenticate() err=%v, want ErrUnauthenticated", err)
	}
}
