package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"auth", NewAuthError(ReasonInvalidCredentials, nil), http.StatusUnauthorized, ErrCodeUnauthorized},
		{"wrapped resolution", fmt.Errorf("bootstrap: %w", &ResolutionError{Op: "memberships", Err: New("timeout")}), http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"state", &StateError{Op: "create task", Missing: "current organization"}, http.StatusConflict, ErrCodeNotReady},
		{"not found", &NotFoundError{Collection: "tasks", ID: "t1"}, http.StatusNotFound, ErrCodeNotFound},
		{"partial", &PartialFailureError{Op: "delete project", Failed: map[string]error{"t1": New("boom")}}, http.StatusInternalServerError, ErrCodePartialFailure},
		{"decode", &DecodeError{Collection: "tasks", ID: "t1", Field: "title"}, http.StatusUnprocessableEntity, ErrCodeInvalidRecord},
		{"validation", NewValidationError("title", "is required"), http.StatusBadRequest, ErrCodeInvalidInput},
		{"already member", ErrAlreadyMember, http.StatusConflict, ErrCodeConflict},
		{"not member", fmt.Errorf("switch: %w", ErrNotMember), http.StatusForbidden, ErrCodeForbidden},
		{"unknown", New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _, _ := Classify(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if code != tt.wantCode {
				t.Errorf("code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestWriteAppError_DoesNotLeakInternalErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteAppError(rr, New("secret connection string"))

	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message != "Internal error" {
		t.Errorf("expected generic message, got %q", body.Message)
	}
}

func TestPartialFailureError_FailedIDsSorted(t *testing.T) {
	err := &PartialFailureError{Op: "delete project", Failed: map[string]error{
		"t3": New("x"), "t1": New("y"), "t2": New("z"),
	}}

	ids := err.FailedIDs()
	want := []string{"t1", "t2", "t3"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("FailedIDs() = %v, want %v", ids, want)
		}
	}
}
