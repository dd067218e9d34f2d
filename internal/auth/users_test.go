package auth

import (
	"errors"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	s := NewUserStore()

	u, err := s.Register("Dana@Example.com", "Dana Smith", "hunter22hunter22")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "dana@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.ID == "" {
		t.Fatalf("missing id")
	}

	got, err := s.Authenticate("dana@example.com", "hunter22hunter22")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("authenticated wrong user")
	}

	if _, err := s.Authenticate("dana@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.Authenticate("nobody@example.com", "hunter22hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := NewUserStore()
	if _, err := s.Register("not-an-email", "X", "longenough"); err == nil {
		t.Fatalf("expected email validation error")
	}
	if _, err := s.Register("a@b.com", "X", "short"); err == nil {
		t.Fatalf("expected password length error")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := NewUserStore()
	if _, err := s.Register("a@b.com", "First", "longenough"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.Register("A@B.COM", "Second", "longenough"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestByID(t *testing.T) {
	s := NewUserStore()
	u, _ := s.Register("a@b.com", "First", "longenough")
	got, ok := s.ByID(u.ID)
	if !ok || got.Email != "a@b.com" {
		t.Fatalf("ByID = %+v, %v", got, ok)
	}
	if _, ok := s.ByID("missing"); ok {
		t.Fatalf("found nonexistent user")
	}
}
