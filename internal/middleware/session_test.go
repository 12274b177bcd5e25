package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/session-auth-api/internal/models"
	"github.com/noah-isme/session-auth-api/internal/service"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
)

type verifierStub struct {
	res *models.VerifyResult
	err error
	got models.VerifyRequest
}

func (v *verifierStub) Verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResult, error) {
	v.got = req
	return v.res, v.err
}

type cookieStub struct {
	read    models.VerifyRequest
	set     *models.TokenPair
	cleared bool
}

func (s *cookieStub) Read(c *gin.Context) models.VerifyRequest { return s.read }
func (s *cookieStub) Set(c *gin.Context, pair models.TokenPair) { s.set = &pair }
func (s *cookieStub) Clear(c *gin.Context)                      { s.cleared = true }

func newSessionRouter(v *verifierStub, cookies *cookieStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Session(v, cookies), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userid": user.UserID, "refreshed": c.GetBool(ContextRefreshedKey)})
	})
	return r
}

func TestSessionAllowsValidAccessToken(t *testing.T) {
	v := &verifierStub{res: &models.VerifyResult{User: models.TokenPayload{UserID: "alice"}}}
	cookies := &cookieStub{read: models.VerifyRequest{AccessToken: "at", RefreshToken: "rt"}}

	w := httptest.NewRecorder()
	newSessionRouter(v, cookies).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "at", v.got.AccessToken)
	assert.Nil(t, cookies.set)
	assert.JSONEq(t, `{"userid":"alice","refreshed":false}`, w.Body.String())
}

func TestSessionWritesRotatedCookies(t *testing.T) {
	pair := models.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}
	v := &verifierStub{res: &models.VerifyResult{User: models.TokenPayload{UserID: "alice"}, Refreshed: true, Tokens: &pair}}
	cookies := &cookieStub{}

	w := httptest.NewRecorder()
	newSessionRouter(v, cookies).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, cookies.set)
	assert.Equal(t, "rt2", cookies.set.RefreshToken)
	assert.JSONEq(t, `{"userid":"alice","refreshed":true}`, w.Body.String())
}

func TestSessionRejectsAndClearsCookies(t *testing.T) {
	v := &verifierStub{err: appErrors.ErrInvalidRefreshToken}
	cookies := &cookieStub{}

	w := httptest.NewRecorder()
	newSessionRouter(v, cookies).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, cookies.cleared)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["shouldRedirect"])
	assert.Equal(t, "/login", body["redirectTo"])
}

func TestSessionKeepsCookiesOnOutage(t *testing.T) {
	v := &verifierStub{err: appErrors.ErrServiceUnavailable}
	cookies := &cookieStub{}

	w := httptest.NewRecorder()
	newSessionRouter(v, cookies).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, cookies.cleared)
}

func TestMetricsMiddlewareLabelsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, w.Body.String(), `path="unmatched"`)
}
