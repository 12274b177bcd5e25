package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	cloned := Clone(ErrUnauthorized, "no session cookies")
	assert.ErrorIs(t, cloned, ErrUnauthorized)
	assert.NotErrorIs(t, cloned, ErrInvalidCredentials)

	wrapped := fmt.Errorf("verify: %w", Wrap(errors.New("boom"), ErrDatabase.Code, ErrDatabase.Status, "db"))
	assert.ErrorIs(t, wrapped, ErrDatabase)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	assert.Nil(t, FromError(nil))

	e := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.Status)

	assert.Same(t, ErrStaleRefreshToken, FromError(fmt.Errorf("x: %w", ErrStaleRefreshToken)))
}

func TestAuthentication(t *testing.T) {
	assert.True(t, ErrInvalidRefreshToken.Authentication())
	assert.False(t, ErrServiceUnavailable.Authentication())
	var nilErr *Error
	assert.False(t, nilErr.Authentication())
}

func TestCloneLeavesSentinelUntouched(t *testing.T) {
	c := Clone(ErrValidation, "userid is required")
	assert.Equal(t, "userid is required", c.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.Nil(t, Clone(nil, "x"))
}
