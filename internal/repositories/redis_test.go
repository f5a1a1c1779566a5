package repositories

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/redis/go-redis/v9"
)

func TestRedisSessionStore(t *testing.T) {
	t.Run("Keys", func(t *testing.T) {
		store := NewRedisSessionStore(nil, newTestSealer(t), "")

		if store.key("abc") != "session:abc" {
			t.Errorf("unexpected key %s", store.key("abc"))
		}
		if store.sequenceKey() != "session:_sequence" {
			t.Errorf("unexpected sequence key %s", store.sequenceKey())
		}
	})

	t.Run("Codec Seals Refresh Token", func(t *testing.T) {
		store := NewRedisSessionStore(nil, newTestSealer(t), "test:")
		now := time.Now().UTC().Truncate(time.Second)

		in := &models.Session{
			ID:           "abc",
			Sequence:     3,
			PendingState: "XYZ123",
			RefreshToken: "refresh-token-RT1",
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		data, err := store.encode(in)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if string(data) == "" || bytes.Contains(data, []byte("refresh-token-RT1")) {
			t.Errorf("expected sealed token in %s", data)
		}

		out, err := store.decode(data)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if out.RefreshToken != "refresh-token-RT1" || out.PendingState != "XYZ123" || out.Sequence != 3 {
			t.Errorf("unexpected decoded session %+v", out)
		}
		if !out.CreatedAt.Equal(now) {
			t.Errorf("expected created_at %v, got %v", now, out.CreatedAt)
		}
	})

	t.Run("Decode Garbage", func(t *testing.T) {
		store := NewRedisSessionStore(nil, newTestSealer(t), "test:")

		if _, err := store.decode([]byte("{")); err == nil {
			t.Error("expected unmarshal error")
		}
	})

	t.Run("Unreachable Server", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 200 * time.Millisecond,
			MaxRetries:  -1,
		})
		defer client.Close()

		store := NewRedisSessionStore(client, newTestSealer(t), "test:")
		ctx := context.Background()

		if _, err := store.Get(ctx, "abc"); err == nil || errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected connection error, got %v", err)
		}
		if _, err := store.Update(ctx, "abc", func(s *models.Session) error { return nil }); err == nil {
			t.Error("expected connection error on update")
		}
		if _, err := NewRedisClient(ctx, shared.RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
			t.Error("expected ping failure")
		}
	})
}

// newMiniredisStore returns a store on an in-process Redis plus a second client for
// writes that race the store.
func newMiniredisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisSessionStore(client, newTestSealer(t), "test:"), srv
}

func TestRedisSessionStoreUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("Round Trip", func(t *testing.T) {
		store, srv := newMiniredisStore(t)

		if _, err := store.Get(ctx, "abc"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}

		created, err := store.Update(ctx, "abc", func(s *models.Session) error {
			s.RefreshToken = "RT1"
			return nil
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if created.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", created.Sequence)
		}
		if err := store.Set(ctx, &models.Session{ID: "def", PendingState: "XYZ123"}); err != nil {
			t.Fatalf("set failed: %v", err)
		}

		got, err := store.Get(ctx, "abc")
		if err != nil || got.RefreshToken != "RT1" {
			t.Errorf("expected RT1 back, got %+v, %v", got, err)
		}

		raw, err := srv.Get(store.key("abc"))
		if err != nil {
			t.Fatalf("raw read failed: %v", err)
		}
		if strings.Contains(raw, "RT1") {
			t.Errorf("refresh token stored in the clear: %s", raw)
		}

		sessions, err := store.List(ctx)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(sessions) != 2 || sessions[0].ID != "abc" || sessions[1].ID != "def" {
			t.Errorf("unexpected sessions %+v", sessions)
		}

		if err := store.Delete(ctx, "abc"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if srv.Exists(store.key("abc")) {
			t.Error("expected the key to be removed")
		}
	})

	t.Run("Conflicting Write Is Retried", func(t *testing.T) {
		store, srv := newMiniredisStore(t)
		if _, err := store.Update(ctx, "abc", func(s *models.Session) error {
			s.RefreshToken = "RT1"
			return nil
		}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		raw, _ := srv.Get(store.key("abc"))

		attempts := 0
		got, err := store.Update(ctx, "abc", func(s *models.Session) error {
			attempts++
			if attempts == 1 {
				srv.Set(store.key("abc"), raw)
			}
			s.PendingState = "XYZ123"
			return nil
		})
		if err != nil {
			t.Fatalf("expected the retry to succeed, got %v", err)
		}
		if attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", attempts)
		}
		if got.PendingState != "XYZ123" || got.RefreshToken != "RT1" {
			t.Errorf("unexpected session %+v", got)
		}
	})

	t.Run("Persistent Conflict Gives Up", func(t *testing.T) {
		store, srv := newMiniredisStore(t)
		if _, err := store.Update(ctx, "abc", func(s *models.Session) error { return nil }); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		raw, _ := srv.Get(store.key("abc"))

		attempts := 0
		_, err := store.Update(ctx, "abc", func(s *models.Session) error {
			attempts++
			srv.Set(store.key("abc"), raw)
			s.PendingState = "lost"
			return nil
		})
		if !errors.Is(err, shared.ErrStoreConflict) {
			t.Errorf("expected ErrStoreConflict, got %v", err)
		}
		if attempts != redisMaxRetries {
			t.Errorf("expected %d attempts, got %d", redisMaxRetries, attempts)
		}
		if after, _ := srv.Get(store.key("abc")); after != raw {
			t.Error("expected the competing write to survive")
		}
	})

	t.Run("Failed Update Leaves Key Untouched", func(t *testing.T) {
		store, srv := newMiniredisStore(t)
		if _, err := store.Update(ctx, "abc", func(s *models.Session) error {
			s.RefreshToken = "RT1"
			return nil
		}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		before, _ := srv.Get(store.key("abc"))

		errBoom := errors.New("boom")
		_, err := store.Update(ctx, "abc", func(s *models.Session) error {
			s.RefreshToken = ""
			return errBoom
		})
		if !errors.Is(err, errBoom) {
			t.Errorf("expected the callback error, got %v", err)
		}
		if after, _ := srv.Get(store.key("abc")); after != before {
			t.Error("expected the stored session to be unchanged")
		}

		_, err = store.Update(ctx, "new", func(s *models.Session) error { return errBoom })
		if !errors.Is(err, errBoom) {
			t.Errorf("expected the callback error, got %v", err)
		}
		if srv.Exists(store.key("new")) {
			t.Error("expected no session to be created")
		}
	})
}
