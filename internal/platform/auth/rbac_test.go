package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHasAtLeast(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		required string
		want     bool
	}{
		{"viewer satisfies viewer", []string{"viewer"}, RoleViewer, true},
		{"viewer lacks editor", []string{"viewer"}, RoleEditor, false},
		{"admin satisfies editor", []string{"admin"}, RoleEditor, true},
		{"case and spacing ignored", []string{" Admin "}, RoleViewer, true},
		{"unknown required role", []string{"admin"}, "owner", false},
		{"no roles", nil, RoleViewer, false},
	}
	for _, tc := range tests {
		if got := HasAtLeast(tc.roles, tc.required); got != tc.want {
			t.Fatalf("%s: HasAtLeast(%v, %q)=%v, want %v", tc.name, tc.roles, tc.required, got, tc.want)
		}
	}
}

func TestRequiredRoleForRequest(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/runs", nil)
	if got := RequiredRoleForRequest(get); got != RoleViewer {
		t.Fatalf("GET requires %q, want viewer", got)
	}
	post := httptest.NewRequest(http.MethodPost, "/runs", nil)
	if got := RequiredRoleForRequest(post); got != RoleEditor {
		t.Fatalf("POST requires %q, want editor", got)
	}
	patch := httptest.NewRequest(http.MethodPatch, "/runs/run-1/status", nil)
	if got := RequiredRoleForRequest(patch); got != RoleEditor {
		t.Fatalf("PATCH requires %q, want editor", got)
	}
}
