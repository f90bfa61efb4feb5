package storage

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(testKey)
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	sealed, err := s.Seal("bearer-token")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if strings.Contains(sealed, "bearer-token") {
		t.Error("sealed value must not contain the plaintext")
	}

	plain, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if plain != "bearer-token" {
		t.Errorf("expected 'bearer-token', got '%s'", plain)
	}
}

func TestSealer_WrongKey(t *testing.T) {
	a, _ := NewSealer(testKey)
	b, _ := NewSealer(strings.Repeat("ff", 32))

	sealed, err := a.Seal("secret")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if _, err := b.Open(sealed); !errors.Is(err, ErrSealedData) {
		t.Errorf("expected ErrSealedData, got %v", err)
	}
}

func TestSealer_NilPassThrough(t *testing.T) {
	s, err := NewSealer("")
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil sealer for empty key")
	}

	out, _ := s.Seal("x")
	if out != "x" {
		t.Errorf("nil sealer should pass through, got '%s'", out)
	}
}

func TestNewSealer_BadKey(t *testing.T) {
	if _, err := NewSealer("abcd"); err == nil {
		t.Error("expected error for short key")
	}
}
