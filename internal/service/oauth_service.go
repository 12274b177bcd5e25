package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/noah-isme/session-auth-api/internal/models"
	"github.com/noah-isme/session-auth-api/internal/repository"
	"github.com/noah-isme/session-auth-api/pkg/config"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/logger"
)

// ProviderGoogle names the only configured identity provider.
const ProviderGoogle = "google"

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type oauthStateStore interface {
	Save(ctx context.Context, state, payload string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (string, error)
}

type socialSignIn interface {
	CompleteSocialLogin(ctx context.Context, identity models.SocialIdentity) (*models.SocialLoginResult, error)
}

// OAuthService runs the authorization-code exchange with the identity
// provider and hands the verified identity to the session protocol.
type OAuthService struct {
	oauth       *oauth2.Config
	userInfoURL string
	states      oauthStateStore
	auth        socialSignIn
	stateTTL    time.Duration
	fallback    string
	logger      *zap.Logger
}

// NewOAuthService builds the Google adapter. It reports Enabled() == false
// when the client credentials are missing.
func NewOAuthService(cfg config.OAuthConfig, dashboardPath string, states oauthStateStore, auth socialSignIn, logger *zap.Logger) *OAuthService {
	var oc *oauth2.Config
	if cfg.Enabled() {
		oc = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return newOAuthService(oc, googleUserInfoURL, cfg.StateTTL, dashboardPath, states, auth, logger)
}

func newOAuthService(oc *oauth2.Config, userInfoURL string, stateTTL time.Duration, dashboardPath string, states oauthStateStore, auth socialSignIn, logger *zap.Logger) *OAuthService {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	if dashboardPath == "" {
		dashboardPath = "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthService{
		oauth:       oc,
		userInfoURL: userInfoURL,
		states:      states,
		auth:        auth,
		stateTTL:    stateTTL,
		fallback:    dashboardPath,
		logger:      logger,
	}
}

// Enabled reports whether the provider is configured.
func (s *OAuthService) Enabled() bool {
	return s != nil && s.oauth != nil && s.states != nil
}

// AuthCodeURL stores a single-use state nonce bound to returnTo and returns
// the provider consent URL.
func (s *OAuthService) AuthCodeURL(ctx context.Context, returnTo string) (string, error) {
	if !s.Enabled() {
		return "", appErrors.ErrOAuthDisabled
	}
	state, err := randomState()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create oauth state")
	}
	if err := s.states.Save(ctx, state, s.safeReturnTo(returnTo), s.stateTTL); err != nil {
		s.log(ctx).Error("store oauth state", zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, appErrors.ErrServiceUnavailable.Message)
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// HandleCallback validates state, exchanges code, fetches the identity and
// completes the social login. It returns the result and the path to send the
// browser to afterwards.
func (s *OAuthService) HandleCallback(ctx context.Context, state, code string) (*models.SocialLoginResult, string, error) {
	if !s.Enabled() {
		return nil, "", appErrors.ErrOAuthDisabled
	}
	log := s.log(ctx)

	if state == "" || code == "" {
		return nil, "", appErrors.Clone(appErrors.ErrOAuthState, "missing state or code")
	}
	returnTo, err := s.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, repository.ErrStateNotFound) {
			log.Info("oauth callback rejected", zap.String("reason", "unknown state"))
			return nil, "", appErrors.ErrOAuthState
		}
		log.Error("consume oauth state", zap.Error(err))
		return nil, "", appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, appErrors.ErrServiceUnavailable.Message)
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		log.Warn("oauth code exchange failed", zap.Error(err))
		return nil, "", appErrors.Wrap(err, appErrors.ErrOAuthExchange.Code, appErrors.ErrOAuthExchange.Status, appErrors.ErrOAuthExchange.Message)
	}

	identity, err := s.fetchIdentity(ctx, tok)
	if err != nil {
		log.Warn("oauth userinfo failed", zap.Error(err))
		return nil, "", appErrors.Wrap(err, appErrors.ErrOAuthExchange.Code, appErrors.ErrOAuthExchange.Status, appErrors.ErrOAuthExchange.Message)
	}

	result, err := s.auth.CompleteSocialLogin(ctx, identity)
	if err != nil {
		return nil, "", err
	}
	return result, returnTo, nil
}

type googleUserInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (s *OAuthService) fetchIdentity(ctx context.Context, tok *oauth2.Token) (models.SocialIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return models.SocialIdentity{}, err
	}
	resp, err := s.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return models.SocialIdentity{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.SocialIdentity{}, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return models.SocialIdentity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" || !info.EmailVerified {
		return models.SocialIdentity{}, errors.New("provider did not return a verified email")
	}
	return models.SocialIdentity{Email: info.Email, Name: info.Name, Provider: ProviderGoogle}, nil
}

// safeReturnTo only allows same-origin absolute paths.
func (s *OAuthService) safeReturnTo(returnTo string) string {
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") || strings.Contains(returnTo, "\\") {
		return s.fallback
	}
	return returnTo
}

func (s *OAuthService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger).With(zap.String("op", "oauth.callback"), zap.String("provider", ProviderGoogle))
}

func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
