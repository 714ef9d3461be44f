package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	searcherrors "github.com/tutao/search-core/internal/errors"
)

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_NotFound(t *testing.T) {
	err := searcherrors.NotFound(searcherrors.ErrCodeKeyNotFound, "term key not found", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeNotFound, result.Code)
	assert.Contains(t, result.Message, "term key not found")
}

func TestMapError_Crypto(t *testing.T) {
	err := searcherrors.Crypto(searcherrors.ErrCodeDecryptFailed, "failed to decrypt posting entry", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeCrypto, result.Code)
}

func TestMapError_Cancelled(t *testing.T) {
	err := searcherrors.Cancelled("search cancelled", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeCancelled, result.Code)
}

func TestMapError_Corruption(t *testing.T) {
	err := searcherrors.Corruption(searcherrors.ErrCodeCorruptMetadata, "metadata row truncated", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeCorruption, result.Code)
}

func TestMapError_Store(t *testing.T) {
	err := searcherrors.Store(searcherrors.ErrCodeStoreRead, "read failed", nil)

	result := MapError(err)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeStore, result.Code)
}

func TestMapError_WithSuggestion_AppendedToMessage(t *testing.T) {
	err := searcherrors.NotFound(searcherrors.ErrCodeEntityNotFound, "entity not found", nil).
		WithSuggestion("the element may have been deleted since indexing")

	result := MapError(err)

	require.NotNil(t, result)
	assert.Contains(t, result.Message, "entity not found")
	assert.Contains(t, result.Message, "the element may have been deleted since indexing")
}

func TestMapError_ContextDeadlineExceeded(t *testing.T) {
	result := MapError(context.DeadlineExceeded)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeCancelled, result.Code)
}

func TestMapError_ContextCanceled(t *testing.T) {
	result := MapError(context.Canceled)

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeCancelled, result.Code)
}

func TestMapError_UnknownError_MapsToInternal(t *testing.T) {
	result := MapError(errors.New("boom"))

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeInternalError, result.Code)
	assert.Contains(t, result.Message, "boom")
}

func TestNewInvalidParamsError(t *testing.T) {
	err := NewInvalidParamsError("query is required")

	assert.Equal(t, ErrCodeInvalidParams, err.Code)
	assert.Equal(t, "query is required", err.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("unknown_tool")

	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "unknown_tool")
}

func TestMCPError_ErrorString(t *testing.T) {
	err := &MCPError{Code: ErrCodeInternalError, Message: "something broke"}

	assert.Contains(t, err.Error(), "something broke")
	assert.Contains(t, err.Error(), "-32603")
}
