package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/session-auth-api/internal/models"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/response"
)

type oauthService interface {
	Enabled() bool
	AuthCodeURL(ctx context.Context, returnTo string) (string, error)
	HandleCallback(ctx context.Context, state, code string) (*models.SocialLoginResult, string, error)
}

// OAuthHandler drives the browser through the provider consent flow.
type OAuthHandler struct {
	service   oauthService
	cookies   *SessionCookies
	loginPath string
}

// NewOAuthHandler constructs the handler. Failed callbacks redirect to loginPath.
func NewOAuthHandler(svc oauthService, cookies *SessionCookies, loginPath string) *OAuthHandler {
	return &OAuthHandler{service: svc, cookies: cookies, loginPath: loginPath}
}

// Start godoc
// @Summary Start Google sign-in
// @Description Redirect the browser to the provider consent page
// @Tags Authentication
// @Param returnTo query string false "Path to open after sign-in"
// @Success 302
// @Failure 404 {object} response.Envelope
// @Router /auth/social/google [get]
func (h *OAuthHandler) Start(c *gin.Context) {
	if !h.service.Enabled() {
		response.Error(c, appErrors.ErrOAuthDisabled)
		return
	}
	target, err := h.service.AuthCodeURL(c.Request.Context(), c.Query("returnTo"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// Callback godoc
// @Summary Finish Google sign-in
// @Description Exchange the authorization code, set the session cookies and redirect
// @Tags Authentication
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 302
// @Router /auth/social/google/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		c.Redirect(http.StatusFound, h.loginPath+"?error=social_login_cancelled")
		return
	}

	res, returnTo, err := h.service.HandleCallback(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status >= http.StatusInternalServerError && appErr.Status != http.StatusBadGateway {
			response.Error(c, err)
			return
		}
		c.Redirect(http.StatusFound, h.loginPath+"?error=social_login_failed")
		return
	}

	h.cookies.Set(c, models.TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
	c.Redirect(http.StatusFound, returnTo)
}
