package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/session-auth-api/internal/models"
)

// Session cookie names.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// SessionCookies maps token pairs onto HttpOnly, SameSite=Strict cookies
// scoped to the whole site. Cookies carry no Max-Age, so they live for the
// browser session; token expiry is enforced server-side.
type SessionCookies struct {
	secure bool
}

// NewSessionCookies builds the transport. secure adds the Secure attribute.
func NewSessionCookies(secure bool) *SessionCookies {
	return &SessionCookies{secure: secure}
}

// Read returns whatever session cookies the request carries.
func (s *SessionCookies) Read(c *gin.Context) models.VerifyRequest {
	access, _ := c.Cookie(AccessTokenCookie)
	refresh, _ := c.Cookie(RefreshTokenCookie)
	return models.VerifyRequest{AccessToken: access, RefreshToken: refresh}
}

// Set writes both cookies.
func (s *SessionCookies) Set(c *gin.Context, pair models.TokenPair) {
	s.write(c, AccessTokenCookie, pair.AccessToken, 0)
	s.write(c, RefreshTokenCookie, pair.RefreshToken, 0)
}

// Clear expires both cookies immediately.
func (s *SessionCookies) Clear(c *gin.Context) {
	s.write(c, AccessTokenCookie, "", -1)
	s.write(c, RefreshTokenCookie, "", -1)
}

func (s *SessionCookies) write(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", "", s.secure, true)
}
