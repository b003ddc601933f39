package service

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/repairdesk/repair-service/internal/auth"
	"github.com/repairdesk/repair-service/internal/domain"
)

func TestRegisterAlwaysCreatesUserRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	result, err := e.auth.Register(ctx, AccountInput{
		Username: "newbie",
		Password: "secret1",
		Name:     "New Person",
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.User.Role != domain.RoleUser {
		t.Fatalf("expected User role, got %s", result.User.Role)
	}
	claims, err := e.auth.TokenManager().ParseToken(result.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != result.User.ID {
		t.Fatalf("token subject %q, want %q", claims.Subject, result.User.ID)
	}

	_, err = e.auth.Register(ctx, AccountInput{Username: "newbie", Password: "secret1", Name: "Dup"})
	if httpStatus(err) != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name  string
		input AccountInput
	}{
		{"short username", AccountInput{Username: "ab", Password: "secret1", Name: "A"}},
		{"short password", AccountInput{Username: "valid", Password: "123", Name: "A"}},
		{"missing name", AccountInput{Username: "valid", Password: "secret1"}},
		{"bad email", AccountInput{Username: "valid", Password: "secret1", Name: "A", Email: "nope"}},
		{"duplicate email", AccountInput{Username: "valid", Password: "secret1", Name: "A", Email: "admin@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.auth.Register(context.Background(), tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if status := httpStatus(err); status != http.StatusBadRequest && status != http.StatusConflict {
				t.Fatalf("unexpected status %d (%v)", status, err)
			}
		})
	}
}

func TestLoginUpdatesLastLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	result, err := e.auth.Login(ctx, "reporter", "reporter-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" || result.User.ID != e.reporter.ID {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, _ := e.store.Users().GetByID(ctx, e.reporter.ID)
	if stored.LastLoginAt == nil {
		t.Fatal("last login not recorded")
	}

	if _, err := e.auth.Login(ctx, "reporter", "wrong"); httpStatus(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %v", err)
	}
	if _, err := e.auth.Login(ctx, "ghost", "whatever"); httpStatus(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %v", err)
	}
}

func TestLoginLockout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.auth.Login(ctx, "tech", "bad"); httpStatus(err) != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %v", i+1, err)
		}
	}
	_, err := e.auth.Login(ctx, "tech", "tech-pass")
	if errorCode(err) != "TOO_MANY_ATTEMPTS" {
		t.Fatalf("expected lockout, got %v", err)
	}

	// once the window has passed the correct password works and clears the counter
	e.auth.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	if _, err := e.auth.Login(ctx, "tech", "tech-pass"); err != nil {
		t.Fatalf("login after window: %v", err)
	}
	if state, _ := e.lockout.Get(ctx, "tech"); state.FailedCount != 0 {
		t.Fatalf("expected counter cleared, got %+v", state)
	}
}

func TestLoginFailsOpenWhenLockoutStoreIsDown(t *testing.T) {
	e := newEnv(t)
	e.lockout.down = true

	if _, err := e.auth.Login(context.Background(), "tech", "tech-pass"); err != nil {
		t.Fatalf("expected login to succeed without lockout store, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	err := e.auth.ChangePassword(ctx, e.reporter.ID, "wrong", "newpass1")
	if httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong old password, got %v", err)
	}
	if err := e.auth.ChangePassword(ctx, e.reporter.ID, "reporter-pass", "newpass1"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := e.auth.Login(ctx, "reporter", "newpass1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

var resetTokenPattern = regexp.MustCompile(`[0-9a-f]{64}`)

func TestPasswordResetFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.auth.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email should succeed silently: %v", err)
	}
	if len(e.mail.sent) != 0 {
		t.Fatalf("no mail expected for unknown email, got %d", len(e.mail.sent))
	}

	if err := e.auth.RequestPasswordReset(ctx, "reporter@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if got := e.mail.recipients(); len(got) != 1 || got[0] != "reporter@example.com" {
		t.Fatalf("unexpected recipients %v", got)
	}
	token := resetTokenPattern.FindString(e.mail.sent[0].HTMLBody)
	if token == "" {
		t.Fatal("reset mail does not contain a token")
	}

	if err := e.auth.ConfirmPasswordReset(ctx, token, "fresh-pass"); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}
	if _, err := e.auth.Login(ctx, "reporter", "fresh-pass"); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
	if err := e.auth.ConfirmPasswordReset(ctx, token, "again-pass"); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected used token to be rejected, got %v", err)
	}
}

func TestPasswordResetTokenRedeemsOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.auth.RequestPasswordReset(ctx, "reporter@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := resetTokenPattern.FindString(e.mail.sent[0].HTMLBody)

	passwords := []string{"first-pass", "second-pass"}
	errs := make([]error, len(passwords))
	var wg sync.WaitGroup
	for i, pw := range passwords {
		wg.Add(1)
		go func(i int, pw string) {
			defer wg.Done()
			errs[i] = e.auth.ConfirmPasswordReset(ctx, token, pw)
		}(i, pw)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			if winner >= 0 {
				t.Fatal("token redeemed twice")
			}
			winner = i
		case httpStatus(err) != http.StatusBadRequest:
			t.Fatalf("expected 400 for the losing confirm, got %v", err)
		}
	}
	if winner < 0 {
		t.Fatalf("one confirm should succeed, got %v", errs)
	}
	if _, err := e.auth.Login(ctx, "reporter", passwords[winner]); err != nil {
		t.Fatalf("login with redeemed password: %v", err)
	}
	if _, err := e.auth.Login(ctx, "reporter", passwords[1-winner]); httpStatus(err) != http.StatusUnauthorized {
		t.Fatalf("losing password must not be set, got %v", err)
	}
}

func TestPasswordResetTokenExpires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.auth.RequestPasswordReset(ctx, "tech@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := resetTokenPattern.FindString(e.mail.sent[0].HTMLBody)

	e.auth.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	if err := e.auth.ConfirmPasswordReset(ctx, token, "fresh-pass"); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestLoginUpgradesHashCost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.auth.cfg.BcryptCost = testBcryptCost + 1

	if _, err := e.auth.Login(ctx, "reporter", "reporter-pass"); err != nil {
		t.Fatalf("login: %v", err)
	}
	stored, err := e.store.Users().GetByID(ctx, e.reporter.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if auth.NeedsRehash(stored.PasswordHash, testBcryptCost+1) {
		t.Fatal("hash should have been upgraded to the configured cost")
	}
	if _, err := e.auth.Login(ctx, "reporter", "reporter-pass"); err != nil {
		t.Fatalf("login with upgraded hash: %v", err)
	}
}
