package errors

import (
	goerrors "errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrAlreadyMember     = goerrors.New("user is already an active member of this organization")
	ErrInvitationInvalid = goerrors.New("invitation is invalid, expired or used up")
	ErrNotMember         = goerrors.New("user is not an active member of this organization")
)

// Auth error reasons.
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonEmailTaken         = "email_taken"
	ReasonWeakPassword       = "weak_password"
	ReasonInvalidEmail       = "invalid_email"
	ReasonInvalidToken       = "invalid_token"
)

// AuthError is a user-correctable authentication failure.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case ReasonInvalidCredentials:
		return "invalid email or password"
	case ReasonEmailTaken:
		return "an account with this email already exists"
	case ReasonWeakPassword:
		return "password must be at least 8 characters and contain a letter and a digit"
	case ReasonInvalidEmail:
		return "invalid email address"
	case ReasonInvalidToken:
		return "identity token rejected"
	}
	if e.Err != nil {
		return "authentication failed: " + e.Err.Error()
	}
	return "authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

func NewAuthError(reason string, err error) *AuthError {
	return &AuthError{Reason: reason, Err: err}
}

// ResolutionError is a retryable transport failure while resolving
// memberships or organizations.
type ResolutionError struct {
	Op  string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Op, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// StateError reports an operation attempted without its prerequisite state.
// It indicates a sequencing defect in the caller.
type StateError struct {
	Op      string
	Missing string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: no %s", e.Op, e.Missing)
}

// NotFoundError reports a record id that does not resolve.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

// PartialFailureError reports a multi-record operation whose primary step
// succeeded while some follow-up steps failed.
type PartialFailureError struct {
	Op     string
	Failed map[string]error
}

func (e *PartialFailureError) Error() string {
	ids := e.FailedIDs()
	return fmt.Sprintf("%s: %d follow-up operation(s) failed (%s)", e.Op, len(ids), strings.Join(ids, ", "))
}

func (e *PartialFailureError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DecodeError rejects a provider document that lacks a required field or
// carries a value outside its domain.
type DecodeError struct {
	Collection string
	ID         string
	Field      string
	Reason     string
}

func (e *DecodeError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing"
	}
	return fmt.Sprintf("%s %q: field %s %s", e.Collection, e.ID, e.Field, reason)
}

// ValidationError rejects caller input before it reaches the provider.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
