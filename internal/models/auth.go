package models

import "time"

// TokenPayload is the body signed into access and refresh tokens.
type TokenPayload struct {
	UserID string `json:"userid"`
	UserNm string `json:"usernm"`
	Email  string `json:"email"`
}

// LoginRequest holds credentials for authenticating a local account.
type LoginRequest struct {
	UserID   string `json:"userid" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// TokenPair is a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessTokenExpiry"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiry"`
}

// AuthResult is returned by a successful login or social token issuance.
type AuthResult struct {
	User   UserInfo
	Tokens TokenPair
}

// VerifyRequest carries the two session cookies presented by a client.
type VerifyRequest struct {
	AccessToken  string
	RefreshToken string
}

// VerifyResult describes an authenticated request. Tokens is set only when the
// refresh path rotated the pair and new cookies must be written.
type VerifyResult struct {
	User      TokenPayload
	Refreshed bool
	Tokens    *TokenPair
}

// SocialIdentity is the verified external identity produced by the provider exchange.
type SocialIdentity struct {
	Email    string `validate:"required,email"`
	Name     string
	Provider string `validate:"required"`
}

// SocialLoginResult is the typed outcome of the provider callback composition,
// shaped like the payload accepted by the social-callback endpoint.
type SocialLoginResult struct {
	AccessToken  string   `json:"accessToken" binding:"required"`
	RefreshToken string   `json:"refreshToken" binding:"required"`
	User         UserInfo `json:"user"`
}

// SessionStatus is the diagnostic view of the caller's session.
type SessionStatus struct {
	UserID             string     `json:"userId"`
	Role               *string    `json:"userrole"`
	WasRefreshed       bool       `json:"wasRefreshed"`
	AccessTokenExpiry  *time.Time `json:"accessTokenExpiry"`
	RefreshTokenExpiry *time.Time `json:"refreshTokenExpiry"`
	Tokens             *TokenPair `json:"-"`
}

// CreateUserRequest seeds a local account from the command line.
type CreateUserRequest struct {
	UserID   string  `validate:"required,max=64"`
	UserNm   string  `validate:"required,max=100"`
	Email    string  `validate:"required,email"`
	Password string  `validate:"required,min=6,max=72"`
	Role     *string `validate:"omitempty,max=32"`
}
