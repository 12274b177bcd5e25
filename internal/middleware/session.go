package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/session-auth-api/internal/models"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/response"
)

// ContextUserKey is the gin context key storing the verified token payload.
const ContextUserKey = "currentUser"

// ContextRefreshedKey is set to true when the request rotated the session.
const ContextRefreshedKey = "sessionRefreshed"

type sessionVerifier interface {
	Verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResult, error)
}

// CookieTransport reads and writes the two session cookies.
type CookieTransport interface {
	Read(c *gin.Context) models.VerifyRequest
	Set(c *gin.Context, pair models.TokenPair)
	Clear(c *gin.Context)
}

// Session protects routes with the cookie session. An expired access token is
// renewed through the refresh token and the rotated cookies are written
// before the route handler runs.
func Session(verifier sessionVerifier, cookies CookieTransport) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := verifier.Verify(c.Request.Context(), cookies.Read(c))
		if err != nil {
			if appErrors.FromError(err).Authentication() {
				cookies.Clear(c)
			}
			response.Abort(c, err)
			return
		}

		if res.Tokens != nil {
			cookies.Set(c, *res.Tokens)
		}
		c.Set(ContextUserKey, res.User)
		c.Set(ContextRefreshedKey, res.Refreshed)
		c.Next()
	}
}

// CurrentUser returns the payload stored by Session.
func CurrentUser(c *gin.Context) (models.TokenPayload, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.TokenPayload{}, false
	}
	payload, ok := value.(models.TokenPayload)
	return payload, ok
}
