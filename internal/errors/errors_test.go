package errors_test

import (
	"testing"

	"github.com/jrsteele09/xlsx-validator-shell/api"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapfKeepsChain(t *testing.T) {
	err := apperrors.Wrapf(apperrors.ErrNotFound, "[api Delete] %s", "a.xlsx")
	require.EqualError(t, err, "[api Delete] a.xlsx: file not found")
	require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	require.False(t, apperrors.Is(err, apperrors.ErrInvalidRequest))
}

func TestWrapfNil(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "[api List] %s", "template"))
}

func TestAsFindsWrappedAPIError(t *testing.T) {
	err := apperrors.Wrapf(&api.Error{Status: 404, Message: "gone"}, "[api Download] %s", "a.xlsx")

	var apiErr *api.Error
	require.True(t, apperrors.As(err, &apiErr))
	require.Equal(t, "gone", apiErr.Message)
	require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
