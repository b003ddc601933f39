package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestToDomainError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{name: "domain error passes through", err: NewForbidden("nope"), wantCode: "FORBIDDEN", wantStatus: http.StatusForbidden},
		{name: "wrapped domain error", err: fmt.Errorf("ctx: %w", NewConflict("dup", nil)), wantCode: "CONFLICT", wantStatus: http.StatusConflict},
		{name: "no rows", err: fmt.Errorf("get: %w", pgx.ErrNoRows), wantCode: "NOT_FOUND", wantStatus: http.StatusNotFound},
		{name: "unknown", err: errors.New("boom"), wantCode: "INTERNAL_ERROR", wantStatus: http.StatusInternalServerError},
		{name: "transition", err: NewInvalidTransition("已關閉", "處理中"), wantCode: "INVALID_TRANSITION", wantStatus: http.StatusConflict},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ToDomainError(tc.err)
			if got.Code != tc.wantCode {
				t.Fatalf("code = %s, want %s", got.Code, tc.wantCode)
			}
			if got.HTTPStatus != tc.wantStatus {
				t.Fatalf("status = %d, want %d", got.HTTPStatus, tc.wantStatus)
			}
		})
	}
}

func TestToDomainErrorNil(t *testing.T) {
	if ToDomainError(nil) != nil {
		t.Fatal("nil error should map to nil")
	}
}

func TestMapErrorNil(t *testing.T) {
	if err := MapError(nil); err != nil {
		t.Fatalf("MapError(nil) = %#v, want untyped nil", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(pgx.ErrNoRows) {
		t.Fatal("pgx.ErrNoRows should be not found")
	}
	if !IsNotFound(NewNotFound("ticket", nil)) {
		t.Fatal("NOT_FOUND domain error should be not found")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatal("plain error should not be not found")
	}
}
