package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/session-auth-api/internal/models"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/logger"
	"github.com/noah-isme/session-auth-api/pkg/response"
)

type tokenService interface {
	SessionStatus(ctx context.Context, req models.VerifyRequest) (*models.SessionStatus, error)
	ResolveUserID(req models.VerifyRequest) (string, bool)
	Invalidate(ctx context.Context, userID string) error
}

// TokenHandler exposes session diagnostics and forced invalidation.
type TokenHandler struct {
	service tokenService
	cookies *SessionCookies
	logger  *zap.Logger
}

// NewTokenHandler constructs a token handler.
func NewTokenHandler(svc tokenService, cookies *SessionCookies, logger *zap.Logger) *TokenHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenHandler{service: svc, cookies: cookies, logger: logger}
}

// Expiry godoc
// @Summary Session status
// @Description Report the caller's role and token expiry times, refreshing when needed
// @Tags Tokens
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /token/expiry [get]
func (h *TokenHandler) Expiry(c *gin.Context) {
	session := h.cookies.Read(c)
	if session.AccessToken == "" && session.RefreshToken == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "no session cookies"))
		return
	}

	status, err := h.service.SessionStatus(c.Request.Context(), session)
	if err != nil {
		if appErrors.FromError(err).Authentication() {
			h.cookies.Clear(c)
		}
		response.Error(c, err)
		return
	}
	if status.Tokens != nil {
		h.cookies.Set(c, *status.Tokens)
	}
	response.OK(c, status)
}

// Invalidate godoc
// @Summary Invalidate session
// @Description Force-end the caller's session in storage and clear the cookies
// @Tags Tokens
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /token/invalidate [post]
func (h *TokenHandler) Invalidate(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), h.logger).With(zap.String("op", "token.invalidate"))

	userID, ok := h.service.ResolveUserID(h.cookies.Read(c))
	if !ok {
		h.cookies.Clear(c)
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "no valid session to invalidate"))
		return
	}

	if err := h.service.Invalidate(c.Request.Context(), userID); err != nil {
		log.Error("session invalidation failed", zap.String("userid", userID), zap.Error(err))
		response.Error(c, err)
		return
	}

	h.cookies.Clear(c)
	log.Info("session invalidated by request", zap.String("userid", userID))
	response.JSON(c, http.StatusOK, response.Envelope{Message: "session invalidated"})
}
