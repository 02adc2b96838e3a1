package graphql

import (
	"context"
	"errors"
	"net/http"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/rpattn/spanql/internal/domain"
)

// ErrorCode is the machine readable code placed in an error's extensions.
type ErrorCode string

const (
	ErrorCodeInvalidSort    ErrorCode = "INVALID_SORT"
	ErrorCodeUnknownSortKey ErrorCode = "UNKNOWN_SORT_KEY"
	ErrorCodeInvalidCursor  ErrorCode = "INVALID_CURSOR"
	ErrorCodeBadUserInput   ErrorCode = "BAD_USER_INPUT"
	ErrorCodeInternal       ErrorCode = "INTERNAL"
)

// Classify maps an error to its code and HTTP status.
func Classify(err error) (ErrorCode, int) {
	var (
		validationErr *domain.SortValidationError
		unknownErr    *domain.UnknownSortKeyError
		cursorErr     *domain.CursorDecodeError
		inputErr      *domain.InvalidInputError
	)
	switch {
	case errors.As(err, &validationErr):
		return ErrorCodeInvalidSort, http.StatusBadRequest
	case errors.As(err, &unknownErr):
		return ErrorCodeUnknownSortKey, http.StatusBadRequest
	case errors.As(err, &cursorErr):
		return ErrorCodeInvalidCursor, http.StatusBadRequest
	case errors.As(err, &inputErr):
		return ErrorCodeBadUserInput, http.StatusBadRequest
	}
	return ErrorCodeInternal, http.StatusInternalServerError
}

// ErrorPresenter renders domain errors with their code. Internal errors keep
// their cause out of the message.
func ErrorPresenter(ctx context.Context, err error) *gqlerror.Error {
	gqlErr := graphql.DefaultErrorPresenter(ctx, err)

	code, _ := Classify(err)
	if code == ErrorCodeInternal {
		gqlErr.Message = "internal server error"
	}
	if gqlErr.Extensions == nil {
		gqlErr.Extensions = map[string]interface{}{}
	}
	gqlErr.Extensions["code"] = string(code)
	return gqlErr
}

// ErrorResponse wraps a presented error into a response envelope.
func ErrorResponse(ctx context.Context, err error) *graphql.Response {
	return &graphql.Response{Errors: gqlerror.List{ErrorPresenter(ctx, err)}}
}
