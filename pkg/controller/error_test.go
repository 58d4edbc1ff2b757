package controller

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestMapErrorAppError(t *testing.T) {
	expires := time.Now().Add(5 * time.Minute).UTC()
	err := NewLockConflictError("record is being edited", map[string]interface{}{
		"locked_by":  "dispatcher-1",
		"expires_at": expires,
	})

	status, body := MapError("req-1", err)
	if status != http.StatusConflict {
		t.Fatalf("status = %d", status)
	}
	if body.Success {
		t.Fatal("expected success=false")
	}
	if body.ErrorCode != CodeLockConflict {
		t.Fatalf("error_code = %s", body.ErrorCode)
	}
	if body.Data["locked_by"] != "dispatcher-1" {
		t.Fatalf("data = %v", body.Data)
	}
	if body.RequestID != "req-1" {
		t.Fatalf("request_id = %s", body.RequestID)
	}
}

func TestMapErrorUnknownError(t *testing.T) {
	status, body := MapError("", errors.New("pq: connection refused"))
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d", status)
	}
	if body.ErrorCode != CodeServerError {
		t.Fatalf("error_code = %s", body.ErrorCode)
	}
	if body.Message == "pq: connection refused" {
		t.Fatal("internal error details must not leak to the client")
	}
}

func TestMapErrorWrappedAppError(t *testing.T) {
	inner := NewNotFoundError("order not found")
	wrapped := fmt.Errorf("handling request: %w", inner)

	status, body := MapError("", wrapped)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	if body.ErrorCode != CodeNotFound {
		t.Fatalf("error_code = %s", body.ErrorCode)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewInternalError("query failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
		code   string
	}{
		{NewValidationError("bad"), http.StatusBadRequest, CodeValidationError},
		{NewNotFoundError("missing"), http.StatusNotFound, CodeNotFound},
		{NewUnauthorizedError("who"), http.StatusUnauthorized, CodeUnauthorized},
		{NewForbiddenError("no"), http.StatusForbidden, CodeForbidden},
		{NewInternalError("oops", nil), http.StatusInternalServerError, CodeServerError},
	}
	for _, tt := range tests {
		status, body := MapError("", tt.err)
		if status != tt.status || body.ErrorCode != tt.code {
			t.Fatalf("%s: got (%d, %s), want (%d, %s)", tt.err.Message, status, body.ErrorCode, tt.status, tt.code)
		}
	}
}
