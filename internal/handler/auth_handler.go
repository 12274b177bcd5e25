package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/session-auth-api/internal/middleware"
	"github.com/noah-isme/session-auth-api/internal/models"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/logger"
	"github.com/noah-isme/session-auth-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error)
	Verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResult, error)
	ResolveUserID(req models.VerifyRequest) (string, bool)
	Logout(ctx context.Context, userID string) error
	Profile(ctx context.Context, userID string) (*models.UserInfo, error)
}

// AuthHandler wires the session endpoints to the auth service.
type AuthHandler struct {
	service authService
	cookies *SessionCookies
	logger  *zap.Logger
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookies *SessionCookies, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{service: svc, cookies: cookies, logger: logger}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate a local account and set the session cookies
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.Set(c, res.Tokens)
	response.JSON(c, http.StatusOK, response.Envelope{Message: "login successful", User: res.User})
}

// Verify godoc
// @Summary Verify session
// @Description Validate the session cookies, rotating them when the access token expired
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/verify [get]
func (h *AuthHandler) Verify(c *gin.Context) {
	res, err := h.service.Verify(c.Request.Context(), h.cookies.Read(c))
	if err != nil {
		if appErrors.FromError(err).Authentication() {
			h.cookies.Clear(c)
		}
		response.Error(c, err)
		return
	}

	if res.Tokens != nil {
		h.cookies.Set(c, *res.Tokens)
	}
	response.JSON(c, http.StatusOK, response.Envelope{User: res.User, Refreshed: res.Refreshed})
}

// Logout godoc
// @Summary Logout
// @Description Clear the stored refresh token and the session cookies
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	session := h.cookies.Read(c)
	h.cookies.Clear(c)

	if userID, ok := h.service.ResolveUserID(session); ok {
		if err := h.service.Logout(c.Request.Context(), userID); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.JSON(c, http.StatusOK, response.Envelope{Message: "logged out"})
}

// Me godoc
// @Summary Current user
// @Description Return the authenticated user's profile
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	profile, err := h.service.Profile(c.Request.Context(), current.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, response.Envelope{User: profile, Refreshed: c.GetBool(middleware.ContextRefreshedKey)})
}

// SocialCallback godoc
// @Summary Complete social login
// @Description Accept the provider callback result and set the session cookies
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SocialLoginResult true "Social login result"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/social-callback [post]
func (h *AuthHandler) SocialCallback(c *gin.Context) {
	var body models.SocialLoginResult
	if err := c.ShouldBindJSON(&body); err != nil || body.User.UserID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "accessToken, refreshToken and user are required"))
		return
	}

	accessOwner, okAccess := h.service.ResolveUserID(models.VerifyRequest{AccessToken: body.AccessToken})
	refreshOwner, okRefresh := h.service.ResolveUserID(models.VerifyRequest{RefreshToken: body.RefreshToken})
	if !okAccess || !okRefresh || accessOwner != body.User.UserID || refreshOwner != body.User.UserID {
		logger.FromContext(c.Request.Context(), h.logger).Warn("social callback rejected",
			zap.String("op", "auth.social_callback"),
			zap.String("userid", body.User.UserID))
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "social login tokens are invalid"))
		return
	}

	h.cookies.Set(c, models.TokenPair{AccessToken: body.AccessToken, RefreshToken: body.RefreshToken})
	response.JSON(c, http.StatusOK, response.Envelope{Message: "social login successful", User: body.User})
}
