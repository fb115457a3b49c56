package federation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/harborline/harborline/internal/shared"
)

func newSession(t *testing.T) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func newProviderServer(t *testing.T, userinfo string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(userinfo))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testHandshake(server *httptest.Server, name string) *Handshake {
	handshake := NewHandshake(testRegistry(server, name), "http://app.local/auth/oauth/%s/callback")
	handshake.SetHTTPClient(server.Client())
	return handshake
}

func testRegistry(server *httptest.Server, name string) *Registry {
	return NewRegistry(ProviderConfig{
		Name:         name,
		DisplayName:  name,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      server.URL + "/authorize",
		TokenURL:     server.URL + "/token",
		UserInfoURL:  server.URL + "/userinfo",
		Scopes:       []string{"email"},
	})
}

func TestBeginIssuesStateAndChallenge(t *testing.T) {
	server := newProviderServer(t, `{}`)
	handshake := testHandshake(server, ProviderGoogle)
	sess := newSession(t)

	authURL, err := handshake.Begin(sess, ProviderGoogle)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	query := parsed.Query()
	if query.Get("state") == "" || query.Get("state") != sess.Get("oauth_state") {
		t.Fatalf("state must be issued and parked in the session")
	}
	if query.Get("code_challenge") == "" || query.Get("code_challenge_method") != "S256" {
		t.Fatalf("expected PKCE challenge parameters")
	}
	if query.Get("redirect_uri") != "http://app.local/auth/oauth/google/callback" {
		t.Fatalf("unexpected redirect uri %q", query.Get("redirect_uri"))
	}
}

func TestBeginUnknownProvider(t *testing.T) {
	server := newProviderServer(t, `{}`)
	handshake := testHandshake(server, ProviderGoogle)

	if _, err := handshake.Begin(newSession(t), "myspace"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestCompleteMapsGoogleClaims(t *testing.T) {
	server := newProviderServer(t, `{
		"sub": "998",
		"email": "carol@example.com",
		"email_verified": true,
		"given_name": "Carol",
		"family_name": "Jones",
		"picture": "https://lh3.example.com/photo.jpg"
	}`)
	handshake := testHandshake(server, ProviderGoogle)
	sess := newSession(t)

	if _, err := handshake.Begin(sess, ProviderGoogle); err != nil {
		t.Fatalf("begin: %v", err)
	}
	state := sess.Get("oauth_state")

	profile, err := handshake.Complete(context.Background(), sess, ProviderGoogle, state, "auth-code")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if profile.SubjectID != "google:998" {
		t.Fatalf("expected namespaced subject id, got %q", profile.SubjectID)
	}
	if profile.Email != "carol@example.com" || profile.FirstName != "Carol" || profile.LastName != "Jones" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.AvatarURL != "https://lh3.example.com/photo.jpg" {
		t.Fatalf("unexpected avatar %q", profile.AvatarURL)
	}
	if sess.Get("oauth_state") != "" || sess.Get("oauth_verifier") != "" {
		t.Fatalf("handshake material must be cleared after completion")
	}
}

func TestCompleteMapsGitHubClaims(t *testing.T) {
	server := newProviderServer(t, `{
		"id": 5550001,
		"email": "dev@example.com",
		"name": "Dana De Vries",
		"avatar_url": "https://avatars.example.com/u/5550001"
	}`)
	handshake := testHandshake(server, ProviderGitHub)
	sess := newSession(t)

	if _, err := handshake.Begin(sess, ProviderGitHub); err != nil {
		t.Fatalf("begin: %v", err)
	}
	profile, err := handshake.Complete(context.Background(), sess, ProviderGitHub, sess.Get("oauth_state"), "auth-code")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if profile.SubjectID != "github:5550001" {
		t.Fatalf("expected namespaced subject id, got %q", profile.SubjectID)
	}
	if profile.FirstName != "Dana De" || profile.LastName != "Vries" {
		t.Fatalf("unexpected name split %q %q", profile.FirstName, profile.LastName)
	}
}

func TestCompleteRejectsStateMismatch(t *testing.T) {
	server := newProviderServer(t, `{}`)
	handshake := testHandshake(server, ProviderGoogle)
	sess := newSession(t)

	if _, err := handshake.Begin(sess, ProviderGoogle); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err := handshake.Complete(context.Background(), sess, ProviderGoogle, "forged-state", "auth-code")
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected state mismatch, got %v", err)
	}

	// The material is single-use: a second attempt with the right state
	// must also fail.
	_, err = handshake.Complete(context.Background(), sess, ProviderGoogle, sess.Get("oauth_state"), "auth-code")
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected state mismatch on replay, got %v", err)
	}
}

func TestCompleteRequiresEmail(t *testing.T) {
	server := newProviderServer(t, `{"sub": "998", "email": ""}`)
	handshake := testHandshake(server, ProviderGoogle)
	sess := newSession(t)

	if _, err := handshake.Begin(sess, ProviderGoogle); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err := handshake.Complete(context.Background(), sess, ProviderGoogle, sess.Get("oauth_state"), "auth-code")
	if !errors.Is(err, ErrNoEmail) {
		t.Fatalf("expected ErrNoEmail, got %v", err)
	}
}
