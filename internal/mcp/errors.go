// Package mcp exposes the search core over the Model Context Protocol: a
// search tool, a pagination tool, and an index-extension tool, the way the
// teacher's internal/mcp exposes its BM25/semantic search engine.
package mcp

import (
	"context"
	"errors"
	"fmt"

	searcherrors "github.com/tutao/search-core/internal/errors"
)

// Standard JSON-RPC error codes, plus a block reserved for this server.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603

	ErrCodeNotFound     = -32001
	ErrCodeNotAuthorized = -32002
	ErrCodeCancelled    = -32003
	ErrCodeCorruption   = -32004
	ErrCodeCrypto       = -32005
	ErrCodeStore        = -32006
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a pipeline error into an MCP protocol error, branching
// on the SearchError taxonomy's Kind the way a caller that wants different
// handling per failure bucket would.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var se *searcherrors.SearchError
	if errors.As(err, &se) {
		return mapSearchError(se)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeCancelled, Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeCancelled, Message: "request was canceled"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func mapSearchError(se *searcherrors.SearchError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Kind {
	case searcherrors.KindNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case searcherrors.KindNotAuthorized:
		return &MCPError{Code: ErrCodeNotAuthorized, Message: message}
	case searcherrors.KindCancelled:
		return &MCPError{Code: ErrCodeCancelled, Message: message}
	case searcherrors.KindCorruption:
		return &MCPError{Code: ErrCodeCorruption, Message: message}
	case searcherrors.KindCrypto:
		return &MCPError{Code: ErrCodeCrypto, Message: message}
	case searcherrors.KindStore:
		return &MCPError{Code: ErrCodeStore, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError creates an error for invalid tool input.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for an unknown tool name.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool %q not found", name)}
}
