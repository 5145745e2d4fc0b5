package service

import (
	"context"
	"testing"

	"duet/internal/apperr"
	"duet/internal/models"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.deps)
	ctx := context.Background()

	u, err := svc.Register(ctx, " Jo@Example.com ", " Jo ")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.Email != "jo@example.com" || u.Name != "Jo" || u.Status != models.UserStatusSingle {
		t.Errorf("user = %+v", u)
	}

	tests := []struct {
		name, email, userName string
	}{
		{"duplicate", "jo@example.com", "Jo"},
		{"bad email", "not-an-email", "Jo"},
		{"short name", "kim@example.com", "K"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.userName)
			wantCode(t, err, apperr.CodeIllegalArgument)
		})
	}

	got, err := svc.GetUser(ctx, u.ID)
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetUser() = %v, %v", got, err)
	}
	_, err = svc.GetUser(ctx, 999)
	wantCode(t, err, apperr.CodeNotFound)
}

func TestRegisterRaceReportsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.deps)

	// Another registration lands after the duplicate lookup and before the insert.
	svc.afterLoad = func(context.Context, string, int64) {
		f.user(t, "jo@example.com", "Other Jo")
	}

	_, err := svc.Register(context.Background(), "jo@example.com", "Jo")
	wantCode(t, err, apperr.CodeIllegalArgument)
	if appErr, ok := apperr.As(err); !ok || appErr.Message != "email is already registered" {
		t.Errorf("error = %v, want the duplicate email message", err)
	}
	if got := f.count(t, "SELECT COUNT(*) FROM users WHERE email = ?", "jo@example.com"); got != 1 {
		t.Errorf("users with the email = %d, want 1", got)
	}
}
