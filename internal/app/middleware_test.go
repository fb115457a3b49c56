package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harborline/harborline/internal/identity"
	"github.com/harborline/harborline/internal/shared"
)

func serveWith(t *testing.T, guard func(http.Handler) http.Handler, principal *identity.Principal) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if principal != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	guard(next).ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name      string
		principal *identity.Principal
		want      int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"disabled", &identity.Principal{ID: 7, Role: identity.RoleBuyer, IsActive: false}, http.StatusForbidden},
		{"active", &identity.Principal{ID: 7, Role: identity.RoleBuyer, IsActive: true}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWith(t, RequireAuth, tt.principal)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name      string
		principal *identity.Principal
		want      int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"buyer", &identity.Principal{ID: 7, Role: identity.RoleBuyer, IsActive: true}, http.StatusForbidden},
		{"disabled admin", &identity.Principal{ID: 7, Role: identity.RoleAdmin, IsActive: false}, http.StatusForbidden},
		{"admin", &identity.Principal{ID: 7, Role: identity.RoleAdmin, IsActive: true}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWith(t, RequireAdmin, tt.principal)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
