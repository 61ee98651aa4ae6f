package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsSetStatus(t *testing.T) {
	cases := []struct {
		err    *Error
		code   Code
		status int
	}{
		{InvalidArgument("bad"), CodeInvalidArgument, http.StatusBadRequest},
		{InvalidRange("bad"), CodeInvalidRange, http.StatusBadRequest},
		{OverlapConflict("bad"), CodeOverlapConflict, http.StatusConflict},
		{NotFound("bad"), CodeNotFound, http.StatusNotFound},
		{Conflict("bad"), CodeConflict, http.StatusConflict},
		{Unauthorized("bad"), CodeUnauthorized, http.StatusUnauthorized},
		{Forbidden("bad"), CodeForbidden, http.StatusForbidden},
		{RateLimited("bad"), CodeRateLimited, http.StatusTooManyRequests},
		{Storage("bad", nil), CodeStorage, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
		}
		if tc.err.HTTPStatus != tc.status {
			t.Errorf("%s: expected status %d, got %d", tc.code, tc.status, tc.err.HTTPStatus)
		}
	}
}

func TestStorageKeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage("database query failed", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be unwrappable")
	}
	if err.Message != "database query failed" {
		t.Fatalf("caller-safe message changed: %q", err.Message)
	}
}

func TestFromClassifiesUnknownErrors(t *testing.T) {
	plain := errors.New("boom")
	got := From(plain)
	if got.Code != CodeStorage {
		t.Fatalf("expected storage classification, got %s", got.Code)
	}
	if !errors.Is(got, plain) {
		t.Fatal("expected original error preserved as cause")
	}

	wrapped := fmt.Errorf("while saving: %w", NotFound("no such node"))
	if From(wrapped).Code != CodeNotFound {
		t.Fatalf("expected wrapped service error recovered, got %s", From(wrapped).Code)
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("context: %w", OverlapConflict("period collides"))
	if !Is(err, CodeOverlapConflict) {
		t.Fatal("expected Is to see through wrapping")
	}
	if Is(err, CodeNotFound) {
		t.Fatal("unexpected code match")
	}
	if Is(errors.New("plain"), CodeNotFound) {
		t.Fatal("plain error should not match any code")
	}
}

func TestWithDetails(t *testing.T) {
	err := InvalidArgument("bad field").WithDetails("field", "name").WithDetails("reason", "empty")
	if err.Details["field"] != "name" || err.Details["reason"] != "empty" {
		t.Fatalf("unexpected details %v", err.Details)
	}
}
