package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("item")))
	assert.True(t, IsDepthExceeded(NewDepthExceededError(6, 5)))
	assert.True(t, IsInvalidOperation(NewInvalidOperationError("nope")))
	assert.True(t, IsConflict(NewConflictError("taken")))
	assert.True(t, IsUnavailable(NewUnavailableError("FindByID", errors.New("timeout"))))

	assert.False(t, IsNotFound(NewConflictError("taken")))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestErrorClassificationThroughWrapping(t *testing.T) {
	err := fmt.Errorf("loading parent: %w", NewNotFoundError("item"))
	assert.True(t, IsNotFound(err))

	appErr := GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewUnavailableError("Save", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Save")
}

func TestDepthExceededDetails(t *testing.T) {
	err := NewDepthExceededError(6, 5)
	assert.Equal(t, 6, err.Details["depth"])
	assert.Equal(t, 5, err.Details["maxDepth"])
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	wrapped := Wrap(NewNotFoundError("item"), "loading parent")
	assert.True(t, IsNotFound(wrapped))
	assert.Contains(t, wrapped.Error(), "loading parent")

	plain := Wrap(errors.New("disk full"), "saving")
	appErr := GetAppError(plain)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrorTypeInternal, appErr.Type)
}
