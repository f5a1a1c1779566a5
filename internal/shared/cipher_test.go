package shared

import (
	"encoding/base64"
	"errors"
	"testing"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key, err := NewKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(key)
	s, err := NewSealer(raw)
	if err != nil {
		t.Fatalf("failed to create sealer: %v", err)
	}
	return s
}

func TestSealer(t *testing.T) {
	t.Run("Round Trip", func(t *testing.T) {
		s := newTestSealer(t)

		sealed, err := s.Seal("RT1", "abc")
		if err != nil {
			t.Fatalf("seal failed: %v", err)
		}
		if sealed == "RT1" || sealed == "" {
			t.Fatalf("expected ciphertext, got %q", sealed)
		}

		plain, err := s.Open(sealed, "abc")
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if plain != "RT1" {
			t.Errorf("expected RT1, got %q", plain)
		}
	})

	t.Run("Empty Passes Through", func(t *testing.T) {
		s := newTestSealer(t)

		sealed, err := s.Seal("", "abc")
		if err != nil || sealed != "" {
			t.Fatalf("expected empty seal, got %q, %v", sealed, err)
		}
		plain, err := s.Open("", "abc")
		if err != nil || plain != "" {
			t.Fatalf("expected empty open, got %q, %v", plain, err)
		}
	})

	t.Run("Bound To Session", func(t *testing.T) {
		s := newTestSealer(t)

		sealed, _ := s.Seal("RT1", "abc")
		if _, err := s.Open(sealed, "other"); err == nil {
			t.Error("expected open with another session id to fail")
		}
	})

	t.Run("Nonce Varies", func(t *testing.T) {
		s := newTestSealer(t)

		a, _ := s.Seal("RT1", "abc")
		b, _ := s.Seal("RT1", "abc")
		if a == b {
			t.Error("expected distinct ciphertexts for the same plaintext")
		}
	})

	t.Run("Rejects Garbage", func(t *testing.T) {
		s := newTestSealer(t)

		if _, err := s.Open("%%%", "abc"); err == nil {
			t.Error("expected decode error")
		}
		if _, err := s.Open("AAAA", "abc"); err == nil {
			t.Error("expected short value error")
		}
	})

	t.Run("Bad Key", func(t *testing.T) {
		if _, err := NewSealer([]byte("short")); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
