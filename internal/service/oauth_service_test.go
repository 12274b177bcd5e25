package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/noah-isme/session-auth-api/internal/models"
	"github.com/noah-isme/session-auth-api/internal/repository"
	"github.com/noah-isme/session-auth-api/pkg/config"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
)

type memoryStates struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStates) Save(ctx context.Context, state, payload string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[state] = payload
	return nil
}

func (m *memoryStates) Consume(ctx context.Context, state string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[state]
	if !ok {
		return "", repository.ErrStateNotFound
	}
	delete(m.data, state)
	return p, nil
}

type recordingSignIn struct {
	identity models.SocialIdentity
}

func (r *recordingSignIn) CompleteSocialLogin(ctx context.Context, identity models.SocialIdentity) (*models.SocialLoginResult, error) {
	r.identity = identity
	return &models.SocialLoginResult{AccessToken: "at", RefreshToken: "rt", User: models.UserInfo{UserID: "gina_12345678", Email: identity.Email}}, nil
}

func newProviderServer(t *testing.T, verified bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"email": "gina@example.com", "email_verified": verified, "name": "Gina"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOAuthService(srv *httptest.Server, auth socialSignIn) (*OAuthService, *memoryStates) {
	states := &memoryStates{data: map[string]string{}}
	oc := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/api/auth/social/google/callback",
		Scopes:       []string{"openid", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return newOAuthService(oc, srv.URL+"/userinfo", time.Minute, "/dashboard", states, auth, nil), states
}

func TestOAuthFlow(t *testing.T) {
	srv := newProviderServer(t, true)
	auth := &recordingSignIn{}
	svc, states := newTestOAuthService(srv, auth)
	ctx := context.Background()

	consent, err := svc.AuthCodeURL(ctx, "/settings")
	require.NoError(t, err)
	parsed, err := url.Parse(consent)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "client", parsed.Query().Get("client_id"))

	res, returnTo, err := svc.HandleCallback(ctx, state, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "/settings", returnTo)
	assert.Equal(t, "at", res.AccessToken)
	assert.Equal(t, models.SocialIdentity{Email: "gina@example.com", Name: "Gina", Provider: ProviderGoogle}, auth.identity)
	assert.Empty(t, states.data)

	_, _, err = svc.HandleCallback(ctx, state, "good-code")
	assert.ErrorIs(t, err, appErrors.ErrOAuthState)
}

func TestOAuthCallbackBadCode(t *testing.T) {
	srv := newProviderServer(t, true)
	svc, _ := newTestOAuthService(srv, &recordingSignIn{})
	ctx := context.Background()

	consent, err := svc.AuthCodeURL(ctx, "")
	require.NoError(t, err)
	parsed, _ := url.Parse(consent)

	_, _, err = svc.HandleCallback(ctx, parsed.Query().Get("state"), "bad-code")
	assert.ErrorIs(t, err, appErrors.ErrOAuthExchange)
}

func TestOAuthCallbackUnverifiedEmail(t *testing.T) {
	srv := newProviderServer(t, false)
	svc, states := newTestOAuthService(srv, &recordingSignIn{})
	require.NoError(t, states.Save(context.Background(), "s1", "/dashboard", time.Minute))

	_, _, err := svc.HandleCallback(context.Background(), "s1", "good-code")
	assert.ErrorIs(t, err, appErrors.ErrOAuthExchange)
}

func TestOAuthReturnToIsSanitised(t *testing.T) {
	svc := newOAuthService(&oauth2.Config{}, "", 0, "/dashboard", &memoryStates{data: map[string]string{}}, nil, nil)
	assert.Equal(t, "/dashboard", svc.safeReturnTo("https://evil.example"))
	assert.Equal(t, "/dashboard", svc.safeReturnTo("//evil.example"))
	assert.Equal(t, "/dashboard", svc.safeReturnTo(""))
	assert.Equal(t, "/profile", svc.safeReturnTo("/profile"))
}

func TestOAuthDisabled(t *testing.T) {
	svc := NewOAuthService(config.OAuthConfig{}, "/dashboard", nil, nil, nil)
	assert.False(t, svc.Enabled())

	_, err := svc.AuthCodeURL(context.Background(), "/")
	assert.ErrorIs(t, err, appErrors.ErrOAuthDisabled)
	_, _, err = svc.HandleCallback(context.Background(), "s", "c")
	assert.ErrorIs(t, err, appErrors.ErrOAuthDisabled)
}
