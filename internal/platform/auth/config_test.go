package auth

import "testing"

func TestConfigFromEnv_DefaultsToHeaders(t *testing.T) {
	t.Setenv("AUTH_MODE", "")
	t.Setenv("RUNCAP_INTERNAL_AUTH_SECRET", "secret")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Mode != ModeHeaders {
		t.Fatalf("Mode=%q, want headers", cfg.Mode)
	}
	if cfg.RolesClaim != "roles" || cfg.EmailClaim != "email" {
		t.Fatalf("claims=%q/%q", cfg.RolesClaim, cfg.EmailClaim)
	}
}

func TestConfigFromEnv_HeadersRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_MODE", "headers")
	t.Setenv("RUNCAP_INTERNAL_AUTH_SECRET", "")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error when RUNCAP_INTERNAL_AUTH_SECRET is unset")
	}
}

func TestConfigFromEnv_OIDCRequiresIssuer(t *testing.T) {
	t.Setenv("AUTH_MODE", "oidc")
	t.Setenv("OIDC_ISSUER_URL", "")
	t.Setenv("OIDC_CLIENT_ID", "runcap")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error when OIDC_ISSUER_URL is unset")
	}
	t.Setenv("OIDC_ISSUER_URL", "https://issuer.example.test")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Mode != ModeOIDC {
		t.Fatalf("Mode=%q, want oidc", cfg.Mode)
	}
	if len(cfg.OIDCScopes) != 3 {
		t.Fatalf("OIDCScopes=%v, want default scopes", cfg.OIDCScopes)
	}
}

func TestConfigFromEnv_RejectsUnknownMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "basic")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error for unknown auth mode")
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" Admin, viewer ,admin,, ")
	if len(got) != 2 || got[0] != "admin" || got[1] != "viewer" {
		t.Fatalf("parseCSV()=%v", got)
	}
}
