package federation

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/harborline/harborline/internal/identity"
	"github.com/harborline/harborline/internal/shared"
)

// Session keys used between redirect and callback.
const (
	sessionKeyState    = "oauth_state"
	sessionKeyVerifier = "oauth_verifier"
	sessionKeyProvider = "oauth_provider"
)

// tokenExchangeTimeout bounds the code-for-token exchange so an
// unresponsive provider cannot hang the callback request.
const tokenExchangeTimeout = 10 * time.Second

var (
	// ErrStateMismatch indicates the callback state does not match the one
	// issued at the start of the handshake.
	ErrStateMismatch = errors.New("federation: state mismatch")
	// ErrNoEmail indicates the provider did not assert an email address.
	ErrNoEmail = errors.New("federation: provider returned no email")
)

// Handshake runs the authorization-code flow with PKCE for the configured
// providers. State and verifier live in the session between the redirect
// and the callback.
type Handshake struct {
	registry    *Registry
	redirectURL string
	client      *http.Client
}

// NewHandshake constructs a Handshake. redirectURL is the absolute callback
// URL template containing %s for the provider name.
func NewHandshake(registry *Registry, redirectURL string) *Handshake {
	return &Handshake{registry: registry, redirectURL: redirectURL, client: http.DefaultClient}
}

// Begin issues state and PKCE material, parks them in the session and
// returns the provider authorization URL to redirect the user to.
func (h *Handshake) Begin(sess *shared.Session, provider string) (string, error) {
	cfg, err := h.registry.Lookup(provider)
	if err != nil {
		return "", err
	}

	state := randomToken()
	verifier := randomToken()
	sess.Set(sessionKeyState, state)
	sess.Set(sessionKeyVerifier, verifier)
	sess.Set(sessionKeyProvider, provider)

	oauthCfg := cfg.oauthConfig(fmt.Sprintf(h.redirectURL, provider))
	return oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", s256Challenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// Complete validates the callback, exchanges the code and fetches the
// userinfo document, returning the asserted provider profile.
func (h *Handshake) Complete(ctx context.Context, sess *shared.Session, provider, state, code string) (identity.ProviderProfile, error) {
	cfg, err := h.registry.Lookup(provider)
	if err != nil {
		return identity.ProviderProfile{}, err
	}

	storedState := sess.Get(sessionKeyState)
	storedVerifier := sess.Get(sessionKeyVerifier)
	storedProvider := sess.Get(sessionKeyProvider)
	sess.Delete(sessionKeyState)
	sess.Delete(sessionKeyVerifier)
	sess.Delete(sessionKeyProvider)

	if storedState == "" || subtle.ConstantTimeCompare([]byte(storedState), []byte(state)) != 1 || storedProvider != provider {
		return identity.ProviderProfile{}, ErrStateMismatch
	}

	oauthCfg := cfg.oauthConfig(fmt.Sprintf(h.redirectURL, provider))

	exchangeCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()
	exchangeCtx = context.WithValue(exchangeCtx, oauth2.HTTPClient, h.client)

	token, err := oauthCfg.Exchange(exchangeCtx, code, oauth2.SetAuthURLParam("code_verifier", storedVerifier))
	if err != nil {
		return identity.ProviderProfile{}, fmt.Errorf("federation: exchange: %w", err)
	}

	resp, err := oauthCfg.Client(exchangeCtx, token).Get(cfg.UserInfoURL)
	if err != nil {
		return identity.ProviderProfile{}, fmt.Errorf("federation: userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return identity.ProviderProfile{}, fmt.Errorf("federation: userinfo status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return identity.ProviderProfile{}, fmt.Errorf("federation: userinfo read: %w", err)
	}

	profile, err := mapClaims(provider, body)
	if err != nil {
		return identity.ProviderProfile{}, err
	}
	if profile.Email == "" {
		return identity.ProviderProfile{}, ErrNoEmail
	}
	return profile, nil
}

// mapClaims converts a provider userinfo document into a profile. Subject
// ids are namespaced with the provider name so ids from different providers
// cannot collide in the directory.
func mapClaims(provider string, body []byte) (identity.ProviderProfile, error) {
	switch provider {
	case ProviderGoogle:
		var claims struct {
			Sub           string `json:"sub"`
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			GivenName     string `json:"given_name"`
			FamilyName    string `json:"family_name"`
			Picture       string `json:"picture"`
		}
		if err := json.Unmarshal(body, &claims); err != nil {
			return identity.ProviderProfile{}, fmt.Errorf("federation: google claims: %w", err)
		}
		return identity.ProviderProfile{
			Provider:      ProviderGoogle,
			SubjectID:     ProviderGoogle + ":" + claims.Sub,
			Email:         claims.Email,
			EmailVerified: claims.EmailVerified,
			FirstName:     claims.GivenName,
			LastName:      claims.FamilyName,
			AvatarURL:     claims.Picture,
		}, nil
	case ProviderGitHub:
		var claims struct {
			ID        int64  `json:"id"`
			Email     string `json:"email"`
			Name      string `json:"name"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := json.Unmarshal(body, &claims); err != nil {
			return identity.ProviderProfile{}, fmt.Errorf("federation: github claims: %w", err)
		}
		first, last := splitName(claims.Name)
		return identity.ProviderProfile{
			Provider:      ProviderGitHub,
			SubjectID:     ProviderGitHub + ":" + strconv.FormatInt(claims.ID, 10),
			Email:         claims.Email,
			EmailVerified: true,
			FirstName:     first,
			LastName:      last,
			AvatarURL:     claims.AvatarURL,
		}, nil
	default:
		return identity.ProviderProfile{}, fmt.Errorf("federation: no claim mapper for %q", provider)
	}
}

func splitName(full string) (string, string) {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == ' ' {
			return full[:i], full[i+1:]
		}
	}
	return full, ""
}

func randomToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Providers lists the configured provider names.
func (h *Handshake) Providers() []string {
	return h.registry.Names()
}

// SetHTTPClient overrides the HTTP client used for exchanges; tests point
// it at a local server.
func (h *Handshake) SetHTTPClient(client *http.Client) {
	h.client = client
}
