package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, inbound string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(headerKey, inbound)
	}
	r.ServeHTTP(w, req)
	return seen, w
}

func TestReusesWellFormedInboundID(t *testing.T) {
	seen, w := serve(t, "req-123.abc")
	assert.Equal(t, "req-123.abc", seen)
	assert.Equal(t, "req-123.abc", w.Header().Get(headerKey))
}

func TestGeneratesIDWhenMissing(t *testing.T) {
	seen, w := serve(t, "")
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(headerKey))
}

func TestReplacesMalformedInboundID(t *testing.T) {
	for _, bad := range []string{"has space", "line\x7fbreak", strings.Repeat("a", 65)} {
		seen, _ := serve(t, bad)
		assert.NotEqual(t, bad, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	}
}

func TestValueWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, Value(c))
}
