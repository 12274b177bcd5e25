// Package token mints and verifies the signed access and refresh tokens that
// make up a session. The codec holds no state beyond its configuration and
// performs no I/O.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/session-auth-api/internal/models"
)

// Config holds the signing material for both token classes. The two secrets
// must differ.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Claims is the JWT body shared by access and refresh tokens.
type Claims struct {
	models.TokenPayload
	jwt.RegisteredClaims
}

// Codec issues and verifies tokens.
type Codec struct {
	cfg           Config
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// NewCodec builds a codec. Zero TTLs default to 15 minutes and 7 days.
func NewCodec(cfg Config) *Codec {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Codec{
		cfg:           cfg,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		now:           time.Now,
	}
}

// WithClock returns a copy of the codec reading time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	clone := *c
	clone.now = now
	return &clone
}

// AccessTTL returns the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// IssueAccessToken signs payload with the access secret.
func (c *Codec) IssueAccessToken(payload models.TokenPayload) (string, time.Time, error) {
	return c.sign(payload, c.accessSecret, c.now(), c.cfg.AccessTTL)
}

// IssueRefreshToken signs payload with the refresh secret.
func (c *Codec) IssueRefreshToken(payload models.TokenPayload) (string, time.Time, error) {
	return c.sign(payload, c.refreshSecret, c.now(), c.cfg.RefreshTTL)
}

// IssuePair mints both tokens from a single clock reading. RefreshExpiresAt is
// exactly the expiry embedded in the refresh token and is what gets persisted.
func (c *Codec) IssuePair(payload models.TokenPayload) (models.TokenPair, error) {
	now := c.now()
	access, accessExp, err := c.sign(payload, c.accessSecret, now, c.cfg.AccessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, refreshExp, err := c.sign(payload, c.refreshSecret, now, c.cfg.RefreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ComputeRefreshExpiry returns now + refresh TTL at the precision embedded in tokens.
func (c *Codec) ComputeRefreshExpiry() time.Time {
	return expiryAt(c.now(), c.cfg.RefreshTTL)
}

// VerifyAccess verifies an access token.
func (c *Codec) VerifyAccess(tokenString string) (models.TokenPayload, bool) {
	return c.Verify(tokenString, c.accessSecret)
}

// VerifyRefresh verifies a refresh token.
func (c *Codec) VerifyRefresh(tokenString string) (models.TokenPayload, bool) {
	return c.Verify(tokenString, c.refreshSecret)
}

// Verify checks signature, algorithm, issuer and expiry. Every failure
// collapses to ok == false.
func (c *Codec) Verify(tokenString string, secret []byte) (models.TokenPayload, bool) {
	if tokenString == "" || len(secret) == 0 {
		return models.TokenPayload{}, false
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return models.TokenPayload{}, false
	}
	return claims.TokenPayload, true
}

// GetExpiry decodes the exp claim without checking the signature. It is meant
// for display and diagnostics only.
func GetExpiry(tokenString string) (time.Time, bool) {
	if tokenString == "" {
		return time.Time{}, false
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// IsExpired reports whether the token's embedded expiry has passed. Tokens
// without a readable expiry count as expired.
func (c *Codec) IsExpired(tokenString string) bool {
	exp, ok := GetExpiry(tokenString)
	if !ok {
		return true
	}
	return !c.now().Before(exp)
}

var errEmptyPayload = errors.New("token payload requires userid")

func (c *Codec) sign(payload models.TokenPayload, secret []byte, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if payload.UserID == "" {
		return "", time.Time{}, errEmptyPayload
	}
	exp := expiryAt(now, ttl)
	claims := Claims{
		TokenPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.cfg.Issuer,
			Subject:   payload.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// expiryAt truncates to jwt.TimePrecision so the value handed back to callers
// equals the one a decoder reads out of the exp claim.
func expiryAt(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl).Truncate(jwt.TimePrecision)
}
