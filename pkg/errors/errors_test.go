package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	require.Equal(t, "<nil>", (*AppError)(nil).Error())
	require.Equal(t, "Resource not found", ErrNotFound.Error())
	require.Equal(t, "Internal server error: disk full",
		ErrInternalServer.WithInternal(stderrors.New("disk full")).Error())
}

func TestCopiesLeaveSentinelUntouched(t *testing.T) {
	cause := stderrors.New("no rows")
	withCause := ErrNotFound.WithInternal(cause)
	renamed := ErrNotFound.WithMessage("Post not found")

	require.NotSame(t, ErrNotFound, withCause)
	require.Nil(t, ErrNotFound.Internal)
	require.Equal(t, "Resource not found", ErrNotFound.Message)

	require.Same(t, cause, withCause.Unwrap())
	require.Equal(t, "Post not found", renamed.Message)
	require.Equal(t, http.StatusNotFound, renamed.StatusCode)

	var nilErr *AppError
	require.Nil(t, nilErr.WithMessage("x"))
	require.Nil(t, nilErr.Unwrap())
}

func TestIsMatchesByCode(t *testing.T) {
	postNotFound := New("POST_NOT_FOUND", "Post not found", http.StatusNotFound)
	err := fmt.Errorf("notification service: mark seen: %w", ErrNotFound.WithInternal(stderrors.New("no rows")))

	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, postNotFound)
	require.NotErrorIs(t, err, ErrBadRequest)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))
	require.Same(t, ErrRateLimit, FromError(ErrRateLimit))

	wrapped := fmt.Errorf("signin: %w", ErrInvalidCredentials)
	require.Same(t, ErrInvalidCredentials, FromError(wrapped))

	raw := stderrors.New("connection reset")
	out := FromError(raw)
	require.Equal(t, ErrInternalServer.Code, out.Code)
	require.ErrorIs(t, out, raw)
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("limit must be an integer")
	require.Equal(t, "BAD_REQUEST", err.Code)
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.Equal(t, "limit must be an integer", err.Message)
	require.ErrorIs(t, err, ErrBadRequest)
}
