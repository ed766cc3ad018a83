package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sonara-health/sonara/pkg/store"
)

func newTestSigner(t *testing.T, opts ...SignerOption) *TokenSigner {
	t.Helper()
	s, err := NewTokenSigner([]byte("test-secret"), opts...)
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	return s
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestSigner(t)

	token, err := s.Issue("dr.lee@example.com", store.RoleTherapist)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "dr.lee@example.com" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if claims.Role != store.RoleTherapist {
		t.Errorf("role = %q", claims.Role)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := newTestSigner(t)
	token, err := s.Issue("pat@example.com", store.RolePatient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// A patient must not be able to edit their role claim. Flip one
	// payload character but keep the original signature.
	payload, sig, _ := strings.Cut(token, ".")
	flipped := "A"
	if payload[0] == 'A' {
		flipped = "B"
	}
	forged := flipped + payload[1:] + "." + sig
	if _, err := s.Verify(forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("forged payload err = %v, want ErrInvalidToken", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", payload},
		{"truncated signature", payload + "." + sig[:len(sig)-2]},
		{"garbage", "not.a.token"},
		{"payload not base64", "!!!." + sig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	s1 := newTestSigner(t)
	s2, err := NewTokenSigner([]byte("other-secret"))
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	token, err := s1.Issue("pat@example.com", store.RolePatient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s2.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	current := time.Now()
	s := newTestSigner(t,
		WithTTL(time.Hour),
		WithSignerClock(func() time.Time { return current }),
	)

	token, err := s.Issue("pat@example.com", store.RolePatient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := s.Verify(token); err != nil {
		t.Fatalf("fresh token: %v", err)
	}

	current = current.Add(2 * time.Hour)
	if _, err := s.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestNewTokenSignerEmptySecret(t *testing.T) {
	if _, err := NewTokenSigner(nil); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("password stored in the clear")
	}
	if err := CheckPassword(hash, "correct horse battery"); err != nil {
		t.Errorf("CheckPassword: %v", err)
	}
	if err := CheckPassword(hash, "wrong password"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("err = %v, want ErrWrongPassword", err)
	}
}

func TestHashPasswordTooShort(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Error("expected error for short password")
	}
}
