package errcode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFromPassesCodedErrorsThrough(t *testing.T) {
	orig := Validationf("max_hits %d exceeds ceiling %d", 90, 50)
	wrapped := fmt.Errorf("engine: %w", orig)

	got := From(wrapped)
	if got.Code != Validation {
		t.Fatalf("expected %s, got %s", Validation, got.Code)
	}
	if got.Message != "max_hits 90 exceeds ceiling 50" {
		t.Fatalf("unexpected message %q", got.Message)
	}
}

func TestFromClassifiesDeadline(t *testing.T) {
	err := fmt.Errorf("fetching: %w", context.DeadlineExceeded)
	if CodeOf(err) != Timeout {
		t.Fatalf("expected TIMEOUT, got %s", CodeOf(err))
	}
}

func TestFromHidesInternalDetail(t *testing.T) {
	err := errors.New("dial tcp 10.0.0.7:443: connection refused")
	got := From(err)
	if got.Code != Internal {
		t.Fatalf("expected INTERNAL_ERROR, got %s", got.Code)
	}
	if strings.Contains(got.Message, "10.0.0.7") {
		t.Fatalf("message leaks internal detail: %q", got.Message)
	}
	if !errors.Is(got, err) {
		t.Fatal("cause should remain reachable through Unwrap")
	}
}

func TestIs(t *testing.T) {
	if !Is(NotFoundf("no filings"), NotFound) {
		t.Fatal("expected NOT_FOUND")
	}
	if Is(nil, NotFound) {
		t.Fatal("nil is never coded")
	}
	if CodeOf(nil) != "" {
		t.Fatal("nil code should be empty")
	}
}
