package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"elclasico/apperr"
	"elclasico/logger"
	"elclasico/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	s, err := store.NewJSONStore(filepath.Join(t.TempDir(), "elclasico.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return NewService(s, NewTokenManager("test-secret", time.Hour), logger.Discard()), s
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterInput{Username: " <b>pepe</b> ", Email: "Pepe@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.Token == "" || sess.User.Username != "pepe" || sess.User.Role != store.RolePlayer || sess.User.Email != "pepe@example.com" {
		t.Fatalf("session = %+v", sess)
	}

	login, err := svc.Login(ctx, "pepe", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	u, err := svc.Authenticate(ctx, login.Token)
	if err != nil || u.ID != sess.User.ID {
		t.Fatalf("authenticate: %+v %v", u, err)
	}

	if _, err := svc.Login(ctx, "pepe", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret1"); apperr.KindOf(err) != apperr.Unauthenticated {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Username: "taken", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"short username", RegisterInput{Username: "ab", Password: "secret1"}, ErrInvalidUsername},
		{"spaces in username", RegisterInput{Username: "a b c", Password: "secret1"}, ErrInvalidUsername},
		{"short password", RegisterInput{Username: "valid", Password: "12345"}, ErrInvalidPassword},
		{"bad email", RegisterInput{Username: "valid", Email: "nope", Password: "secret1"}, ErrInvalidEmail},
		{"duplicate", RegisterInput{Username: "taken", Password: "secret1"}, ErrUserExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if apperr.KindOf(err) != apperr.Validation {
				t.Fatalf("kind = %v", apperr.KindOf(err))
			}
		})
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.Register(ctx, RegisterInput{Username: "fan", Password: "secret1"})

	if _, err := svc.Authenticate(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: %v", err)
	}

	other := NewTokenManager("other-secret", time.Hour)
	forged, _, _ := other.Issue(&store.User{ID: sess.User.ID, Username: "fan", Role: store.RoleSuperadmin})
	if _, err := svc.Authenticate(ctx, forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("forged: %v", err)
	}

	svc.tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Authenticate(ctx, sess.Token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired: %v", err)
	}
	svc.tokens.now = time.Now

	s.DeleteUser(ctx, sess.User.ID)
	if _, err := svc.Authenticate(ctx, sess.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("deleted user: %v", err)
	}
}

func TestTokenCarriesClaims(t *testing.T) {
	tm := NewTokenManager("k", 0)
	token, expiresAt, err := tm.Issue(&store.User{ID: 9, Username: "coach", Role: store.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if d := time.Until(expiresAt); d < 7*24*time.Hour-time.Minute {
		t.Fatalf("default ttl too short: %v", d)
	}
	claims, err := tm.Parse(token)
	if err != nil || claims.UserID != 9 || claims.Username != "coach" || claims.Role != store.RoleAdmin || claims.Issuer != tokenIssuer {
		t.Fatalf("claims = %+v %v", claims, err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  xyz": "xyz",
		"Basic abc":   "",
		"":            "",
	}
	for header, want := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := BearerToken(r); got != want {
			t.Errorf("%q: got %q, want %q", header, got, want)
		}
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, _ := svc.Register(ctx, RegisterInput{Username: "fan", Password: "secret1"})
	newName, newPass := "superfan", "secret2"

	if _, err := svc.UpdateProfile(ctx, sess.User.ID, ProfileInput{Username: &newName, CurrentPassword: "nope"}); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("wrong current password: %v", err)
	}

	u, err := svc.UpdateProfile(ctx, sess.User.ID, ProfileInput{Username: &newName, Password: &newPass, CurrentPassword: "secret1"})
	if err != nil || u.Username != "superfan" {
		t.Fatalf("update: %+v %v", u, err)
	}
	if _, err := svc.Login(ctx, "superfan", "secret2"); err != nil {
		t.Fatalf("login with new credentials: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Register(ctx, RegisterInput{Username: "forgetful", Email: "f@example.com", Password: "secret1"})

	if _, err := svc.RequestPasswordReset(ctx, "ghost@example.com"); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("unknown email: %v", err)
	}

	token, err := svc.RequestPasswordReset(ctx, "F@example.com")
	if err != nil || token == "" {
		t.Fatalf("request: %q %v", token, err)
	}
	if err := svc.ResetPassword(ctx, token, "brandnew"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Login(ctx, "forgetful", "brandnew"); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "another1"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("token reused: %v", err)
	}

	expired, _ := svc.RequestPasswordReset(ctx, "f@example.com")
	svc.now = func() time.Time { return time.Now().Add(2 * resetTokenTTL) }
	if err := svc.ResetPassword(ctx, expired, "another1"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestEnsureSuperadmin(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	created, err := svc.EnsureSuperadmin(ctx, "boss", "bosspass")
	if err != nil || !created {
		t.Fatalf("first: %v created=%v", err, created)
	}
	created, err = svc.EnsureSuperadmin(ctx, "boss2", "bosspass")
	if err != nil || created {
		t.Fatalf("second: %v created=%v", err, created)
	}
	u, _ := s.GetUserByUsername(ctx, "boss")
	if u == nil || u.Role != store.RoleSuperadmin {
		t.Fatalf("superadmin = %+v", u)
	}
}
