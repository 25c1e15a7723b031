package errors

import (
	"encoding/json"
	goerrors "errors"
	"net/http"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeNotReady       = "NOT_READY"
	ErrCodeUnavailable    = "UNAVAILABLE"
	ErrCodePartialFailure = "PARTIAL_FAILURE"
	ErrCodeInvalidRecord  = "INVALID_RECORD"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteAppError maps the error taxonomy onto an HTTP response. Errors outside
// the taxonomy are reported as internal errors without leaking their text.
func WriteAppError(w http.ResponseWriter, err error) {
	status, code, message, details := Classify(err)
	WriteError(w, status, code, message, details)
}

// Classify returns the HTTP status, error code, message and details for err.
func Classify(err error) (int, string, string, interface{}) {
	var (
		authErr    *AuthError
		resErr     *ResolutionError
		stateErr   *StateError
		notFound   *NotFoundError
		partialErr *PartialFailureError
		decodeErr  *DecodeError
		inputErr   *ValidationError
	)

	switch {
	case goerrors.As(err, &authErr):
		return http.StatusUnauthorized, ErrCodeUnauthorized, authErr.Error(), map[string]string{"reason": authErr.Reason}
	case goerrors.As(err, &resErr):
		return http.StatusServiceUnavailable, ErrCodeUnavailable, "Could not resolve organizations, try again", nil
	case goerrors.As(err, &stateErr):
		return http.StatusConflict, ErrCodeNotReady, stateErr.Error(), nil
	case goerrors.As(err, &notFound):
		return http.StatusNotFound, ErrCodeNotFound, notFound.Error(), nil
	case goerrors.As(err, &partialErr):
		return http.StatusInternalServerError, ErrCodePartialFailure, partialErr.Error(), map[string]interface{}{"failed_ids": partialErr.FailedIDs()}
	case goerrors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity, ErrCodeInvalidRecord, decodeErr.Error(), nil
	case goerrors.As(err, &inputErr):
		return http.StatusBadRequest, ErrCodeInvalidInput, inputErr.Error(), map[string]string{"field": inputErr.Field}
	case goerrors.Is(err, ErrAlreadyMember):
		return http.StatusConflict, ErrCodeConflict, err.Error(), nil
	case goerrors.Is(err, ErrInvitationInvalid):
		return http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil
	case goerrors.Is(err, ErrNotMember):
		return http.StatusForbidden, ErrCodeForbidden, err.Error(), nil
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "Internal error", nil
	}
}

// Is and As re-export the standard helpers so callers importing this package
// under its own name don't need a second import.
func Is(err, target error) bool { return goerrors.Is(err, target) }

func As(err error, target interface{}) bool { return goerrors.As(err, target) }

func New(text string) error { return goerrors.New(text) }
