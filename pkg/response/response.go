package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
)

// LoginPath is the redirect hint attached to authentication failures.
var LoginPath = "/login"

// Envelope represents the common response contract shared by every auth endpoint.
type Envelope struct {
	Success        bool        `json:"success"`
	Message        string      `json:"message,omitempty"`
	Code           string      `json:"code,omitempty"`
	User           interface{} `json:"user,omitempty"`
	Refreshed      bool        `json:"refreshed,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	ShouldRedirect bool        `json:"shouldRedirect,omitempty"`
	RedirectTo     string      `json:"redirectTo,omitempty"`
	Detail         string      `json:"error,omitempty"`
}

// JSON sends a success envelope.
func JSON(c *gin.Context, status int, envelope Envelope) {
	noStore(c)
	envelope.Success = true
	c.JSON(status, envelope)
}

// OK responds with HTTP 200 and the provided payload under data.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, Envelope{Data: data})
}

// Error sends an error response converting the error to the common structure.
// Underlying causes are exposed only while gin runs in debug mode.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	envelope := Envelope{
		Success: false,
		Code:    appErr.Code,
		Message: appErr.Message,
	}
	if appErr.Authentication() {
		envelope.ShouldRedirect = true
		envelope.RedirectTo = LoginPath
	}
	if gin.IsDebugging() && appErr.Err != nil {
		envelope.Detail = appErr.Err.Error()
	}
	noStore(c)
	c.JSON(appErr.Status, envelope)
}

// Abort writes the error and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
