package models

import "time"

// User mirrors one row of the com_user table.
type User struct {
	UserID             string     `db:"userid" json:"userid"`
	UserNm             string     `db:"usernm" json:"usernm"`
	PasswordHash       *string    `db:"pwd" json:"-"`
	Email              string     `db:"email" json:"email"`
	Role               *string    `db:"userrole" json:"userrole,omitempty"`
	RefreshToken       *string    `db:"refresh_token" json:"-"`
	RefreshTokenExpiry *time.Time `db:"refresh_token_expiry" json:"-"`
	LastLoginAt        *time.Time `db:"lastlogin_at" json:"lastlogin_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Payload returns the claims embedded in both token classes for this user.
func (u *User) Payload() TokenPayload {
	return TokenPayload{UserID: u.UserID, UserNm: u.UserNm, Email: u.Email}
}

// Public strips credentials and session state.
func (u *User) Public() UserInfo {
	return UserInfo{UserID: u.UserID, UserNm: u.UserNm, Email: u.Email, Role: u.Role}
}

// SocialOnly reports whether the account has no local password.
func (u *User) SocialOnly() bool {
	return u.PasswordHash == nil || *u.PasswordHash == ""
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	UserID string  `json:"userid"`
	UserNm string  `json:"usernm"`
	Email  string  `json:"email"`
	Role   *string `json:"userrole,omitempty"`
}
