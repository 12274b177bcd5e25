package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/session-auth-api/internal/models"
	"github.com/noah-isme/session-auth-api/internal/repository"
	"github.com/noah-isme/session-auth-api/internal/token"
	"github.com/noah-isme/session-auth-api/pkg/database"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/logger"
)

// PasswordCost is the bcrypt work factor for stored password hashes.
const PasswordCost = 10

const socialIDAttempts = 3

// Column widths of com_user, in characters.
const (
	maxUserNmChars      = 100
	maxSocialLocalChars = 50
)

type sessionStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByRefreshToken(ctx context.Context, token string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateSocialProfile(ctx context.Context, id, usernm string, loginAt time.Time) error
	UpdateRefreshToken(ctx context.Context, id, token string, expiry, loginAt time.Time) error
	RotateRefreshToken(ctx context.Context, id, oldToken, newToken string, newExpiry, now time.Time) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
	InvalidateSession(ctx context.Context, id string, at time.Time) error
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// AuthService implements the session protocol: login, verification with
// refresh rotation, social sign-in, logout and forced invalidation. It keeps
// no session state of its own; the stored refresh token is authoritative.
type AuthService struct {
	repo      sessionStore
	codec     *token.Codec
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo sessionStore, codec *token.Codec, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		repo:      repo,
		codec:     codec,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for login stamps and stored-expiry
// checks. It should match the clock of the codec.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Login authenticates a local account and issues a fresh token pair,
// replacing any refresh token stored for the user.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (result *models.AuthResult, err error) {
	const op = "auth.login"
	defer func() { s.metrics.RecordAuthEvent("login", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "userid and password are required")
	}
	log := s.log(ctx, op).With(zap.String("userid", req.UserID))

	user, err := s.repo.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("login rejected", zap.String("reason", "user not found"))
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "user not found")
		}
		return nil, s.storeError(ctx, op, err)
	}

	if user.SocialOnly() {
		log.Info("login rejected", zap.String("reason", "no local password"))
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "password mismatch")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		log.Info("login rejected", zap.String("reason", "password mismatch"))
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "password mismatch")
	}

	result, err = s.IssueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	log.Info("login succeeded")
	return result, nil
}

// IssueTokens mints a token pair for user and stores the refresh token, its
// expiry and the login time in one write.
func (s *AuthService) IssueTokens(ctx context.Context, user *models.User) (*models.AuthResult, error) {
	const op = "auth.issue_tokens"

	pair, err := s.codec.IssuePair(user.Payload())
	if err != nil {
		s.log(ctx, op).Error("sign tokens", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}
	if err := s.repo.UpdateRefreshToken(ctx, user.UserID, pair.RefreshToken, pair.RefreshExpiresAt, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "user not found")
		}
		return nil, s.storeError(ctx, op, err)
	}
	return &models.AuthResult{User: user.Public(), Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// verify, equal the stored value and be unexpired according to the store. The
// swap is a single conditional write so that concurrent refreshes with the
// same token yield exactly one winner.
func (s *AuthService) Refresh(ctx context.Context, presented string) (result *models.AuthResult, err error) {
	const op = "auth.refresh"
	defer func() { s.metrics.RecordAuthEvent("refresh", err) }()
	log := s.log(ctx, op)

	claims, ok := s.codec.VerifyRefresh(presented)
	if !ok {
		log.Info("refresh rejected", zap.String("reason", "token failed verification"))
		return nil, appErrors.ErrInvalidRefreshToken
	}
	log = log.With(zap.String("userid", claims.UserID))

	user, err := s.repo.FindByRefreshToken(ctx, presented)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Info("refresh rejected", zap.String("reason", "token does not match stored value"))
			return nil, appErrors.ErrInvalidRefreshToken
		}
		return nil, s.storeError(ctx, op, err)
	}
	if user.UserID != claims.UserID {
		log.Warn("refresh rejected", zap.String("reason", "token subject differs from owner"))
		return nil, appErrors.ErrInvalidRefreshToken
	}

	now := s.now().UTC()
	if user.RefreshTokenExpiry == nil || !now.Before(*user.RefreshTokenExpiry) {
		log.Info("refresh rejected", zap.String("reason", "stored expiry passed"))
		return nil, appErrors.ErrRefreshTokenExpired
	}

	pair, err := s.codec.IssuePair(user.Payload())
	if err != nil {
		log.Error("sign tokens", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	rotated, err := s.repo.RotateRefreshToken(ctx, user.UserID, presented, pair.RefreshToken, pair.RefreshExpiresAt, now)
	if err != nil {
		return nil, s.storeError(ctx, op, err)
	}
	if !rotated {
		log.Info("refresh rejected", zap.String("reason", "token rotated concurrently"))
		return nil, appErrors.ErrStaleRefreshToken
	}

	log.Debug("refresh token rotated")
	return &models.AuthResult{User: user.Public(), Tokens: pair}, nil
}

// Verify authenticates a request from its two cookies. A valid access token
// short-circuits without touching the store. Otherwise the refresh token is
// rotated and the new pair is returned for the transport to set.
func (s *AuthService) Verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResult, error) {
	if payload, ok := s.codec.VerifyAccess(req.AccessToken); ok {
		return &models.VerifyResult{User: payload}, nil
	}
	if req.RefreshToken == "" {
		return nil, appErrors.ErrUnauthorized
	}

	result, err := s.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	tokens := result.Tokens
	return &models.VerifyResult{
		User:      models.TokenPayload{UserID: result.User.UserID, UserNm: result.User.UserNm, Email: result.User.Email},
		Refreshed: true,
		Tokens:    &tokens,
	}, nil
}

// ResolveUserID identifies the caller from either cookie without rotating
// anything. It is used by endpoints that end a session.
func (s *AuthService) ResolveUserID(req models.VerifyRequest) (string, bool) {
	if payload, ok := s.codec.VerifyAccess(req.AccessToken); ok {
		return payload.UserID, true
	}
	if payload, ok := s.codec.VerifyRefresh(req.RefreshToken); ok {
		return payload.UserID, true
	}
	return "", false
}

// SocialLogin finds the account owning identity.Email, refreshing its display
// name and last login, or creates a password-less account for it.
func (s *AuthService) SocialLogin(ctx context.Context, identity models.SocialIdentity) (user *models.User, err error) {
	const op = "auth.social_login"
	defer func() { s.metrics.RecordAuthEvent("social_login", err) }()

	identity.Email = strings.TrimSpace(identity.Email)
	if err := s.validator.Struct(identity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid social identity")
	}
	log := s.log(ctx, op).With(zap.String("provider", identity.Provider))
	now := s.now().UTC()

	existing, err := s.repo.FindByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		name := displayName(identity)
		if name == "" {
			name = existing.UserNm
		}
		if err := s.repo.UpdateSocialProfile(ctx, existing.UserID, name, now); err != nil {
			return nil, s.storeError(ctx, op, err)
		}
		existing.UserNm = name
		existing.LastLoginAt = &now
		s.forgetProfile(ctx, existing.UserID)
		log.Info("social login matched existing user", zap.String("userid", existing.UserID))
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, s.storeError(ctx, op, err)
	}

	for attempt := 0; attempt < socialIDAttempts; attempt++ {
		created := &models.User{
			UserID:      socialUserID(identity.Email),
			UserNm:      displayName(identity),
			Email:       identity.Email,
			LastLoginAt: &now,
		}
		err = s.repo.Create(ctx, created)
		if err == nil {
			log.Info("social login created user", zap.String("userid", created.UserID))
			return created, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, s.storeError(ctx, op, err)
		}
		// Either the generated id collided or a concurrent sign-in created
		// the email first.
		if raced, findErr := s.repo.FindByEmail(ctx, identity.Email); findErr == nil {
			return raced, nil
		}
	}
	return nil, s.storeError(ctx, op, err)
}

// CompleteSocialLogin runs SocialLogin followed by token issuance and returns
// the provider callback result.
func (s *AuthService) CompleteSocialLogin(ctx context.Context, identity models.SocialIdentity) (*models.SocialLoginResult, error) {
	user, err := s.SocialLogin(ctx, identity)
	if err != nil {
		return nil, err
	}
	issued, err := s.IssueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &models.SocialLoginResult{
		AccessToken:  issued.Tokens.AccessToken,
		RefreshToken: issued.Tokens.RefreshToken,
		User:         issued.User,
	}, nil
}

// Logout clears the stored refresh token. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) (err error) {
	const op = "auth.logout"
	defer func() { s.metrics.RecordAuthEvent("logout", err) }()

	if userID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "userid is required")
	}
	if err := s.repo.ClearRefreshToken(ctx, userID); err != nil {
		return s.storeError(ctx, op, err)
	}
	s.forgetProfile(ctx, userID)
	s.log(ctx, op).Info("session cleared", zap.String("userid", userID))
	return nil
}

// Invalidate force-ends the user's session. Clearing the token and touching
// updated_at commit together or not at all.
func (s *AuthService) Invalidate(ctx context.Context, userID string) (err error) {
	const op = "auth.invalidate"
	defer func() { s.metrics.RecordAuthEvent("invalidate", err) }()

	if userID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "userid is required")
	}
	log := s.log(ctx, op).With(zap.String("userid", userID))
	log.Info("invalidating session")

	if err := s.repo.InvalidateSession(ctx, userID, s.now().UTC()); err != nil {
		return s.storeError(ctx, op, err)
	}
	s.forgetProfile(ctx, userID)
	log.Info("session invalidated")
	return nil
}

// Profile returns the public view of a user, served from cache when possible.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.UserInfo, error) {
	const op = "auth.profile"

	var info models.UserInfo
	if hit, _ := s.cache.Get(ctx, userID, &info); hit {
		return &info, nil
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, s.storeError(ctx, op, err)
	}
	info = user.Public()
	_ = s.cache.Set(ctx, userID, info, 0)
	return &info, nil
}

// SessionStatus verifies the caller (rotating when needed) and reports the
// stored role together with the expiry embedded in each current token.
func (s *AuthService) SessionStatus(ctx context.Context, req models.VerifyRequest) (*models.SessionStatus, error) {
	verified, err := s.Verify(ctx, req)
	if err != nil {
		return nil, err
	}
	profile, err := s.Profile(ctx, verified.User.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken := req.AccessToken, req.RefreshToken
	if verified.Tokens != nil {
		accessToken, refreshToken = verified.Tokens.AccessToken, verified.Tokens.RefreshToken
	}

	status := &models.SessionStatus{
		UserID:       verified.User.UserID,
		Role:         profile.Role,
		WasRefreshed: verified.Refreshed,
		Tokens:       verified.Tokens,
	}
	if exp, ok := token.GetExpiry(accessToken); ok {
		status.AccessTokenExpiry = &exp
	}
	if exp, ok := token.GetExpiry(refreshToken); ok {
		status.RefreshTokenExpiry = &exp
	}
	return status, nil
}

// SweepExpiredSessions clears refresh tokens whose stored expiry has passed.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	const op = "auth.sweep"
	n, err := s.repo.ClearExpiredRefreshTokens(ctx, s.now().UTC())
	if err != nil {
		return 0, s.storeError(ctx, op, err)
	}
	s.metrics.AddSessionsSwept(n)
	if n > 0 {
		s.log(ctx, op).Info("expired sessions cleared", zap.Int64("count", n))
	}
	return n, nil
}

// CreateLocalUser inserts an account with a bcrypt-hashed password.
func (s *AuthService) CreateLocalUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	const op = "auth.create_user"
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		UserID:       req.UserID,
		UserNm:       req.UserNm,
		Email:        req.Email,
		PasswordHash: &hash,
		Role:         req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "userid or email already exists")
		}
		return nil, s.storeError(ctx, op, err)
	}
	return user, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *AuthService) forgetProfile(ctx context.Context, userID string) {
	_ = s.cache.Invalidate(ctx, userID)
}

// storeError logs a credential store failure and maps it onto the public
// taxonomy: connectivity and timeouts become 503, everything else 500.
func (s *AuthService) storeError(ctx context.Context, op string, err error) error {
	log := s.log(ctx, op)
	if errors.Is(err, database.ErrUnavailable) {
		log.Error("credential store unavailable", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, appErrors.ErrServiceUnavailable.Message)
	}
	log.Error("credential store failure", zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, appErrors.ErrDatabase.Message)
}

func (s *AuthService) log(ctx context.Context, op string) *zap.Logger {
	return logger.FromContext(ctx, s.logger).With(zap.String("op", op))
}

func displayName(identity models.SocialIdentity) string {
	if name := strings.TrimSpace(identity.Name); name != "" {
		return truncateChars(name, maxUserNmChars)
	}
	return truncateChars(emailLocalPart(identity.Email), maxUserNmChars)
}

func emailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// socialUserID derives a userid from the email local part plus a random suffix.
func socialUserID(email string) string {
	local := truncateChars(emailLocalPart(email), maxSocialLocalChars)
	return local + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// truncateChars cuts s to at most n characters without splitting a multibyte one.
func truncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
