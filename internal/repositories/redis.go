package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/spotauth/internal/models"
	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/redis/go-redis/v9"
)

const redisMaxRetries = 8

// redisRecord is the JSON layout stored under each session key.
type redisRecord struct {
	ID           string    `json:"id"`
	Sequence     int       `json:"sequence"`
	PendingState string    `json:"pending_state"`
	RedirectURI  string    `json:"redirect_uri"`
	RefreshToken string    `json:"refresh_token"` // sealed
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RedisSessionStore implements [models.SessionStore] on Redis.
//
// Updates run as optimistic WATCH/MULTI transactions on the session key only.
type RedisSessionStore struct {
	client *redis.Client
	sealer *shared.Sealer
	prefix string
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg shared.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// NewRedisSessionStore creates a Redis-backed session store. An empty prefix defaults to "session:".
func NewRedisSessionStore(client *redis.Client, sealer *shared.Sealer, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisSessionStore{client: client, sealer: sealer, prefix: prefix}
}

func (r *RedisSessionStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisSessionStore) sequenceKey() string {
	return r.prefix + "_sequence"
}

func (r *RedisSessionStore) encode(s *models.Session) ([]byte, error) {
	sealed, err := r.sealer.Seal(s.RefreshToken, s.ID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(redisRecord{
		ID:           s.ID,
		Sequence:     s.Sequence,
		PendingState: s.PendingState,
		RedirectURI:  s.RedirectURI,
		RefreshToken: sealed,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("session: failed to marshal: %w", err)
	}
	return data, nil
}

func (r *RedisSessionStore) decode(data []byte) (*models.Session, error) {
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}

	token, err := r.sealer.Open(rec.RefreshToken, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open refresh token for session %s: %w", rec.ID, err)
	}

	return &models.Session{
		ID:           rec.ID,
		Sequence:     rec.Sequence,
		PendingState: rec.PendingState,
		RedirectURI:  rec.RedirectURI,
		RefreshToken: token,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

// Get retrieves a session by ID.
func (r *RedisSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return r.decode(data)
}

// Set creates or replaces a session.
func (r *RedisSessionStore) Set(ctx context.Context, s *models.Session) error {
	_, err := r.Update(ctx, s.ID, func(cur *models.Session) error {
		assign(cur, s)
		return nil
	})
	return err
}

// Update watches the session key, applies fn and commits with MULTI/EXEC, retrying when
// another writer touched the same key.
func (r *RedisSessionStore) Update(ctx context.Context, id string, fn models.UpdateFunc) (*models.Session, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	key := r.key(id)
	var result *models.Session

	txf := func(tx *redis.Tx) error {
		var s *models.Session

		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			sequence, err := tx.Incr(ctx, r.sequenceKey()).Result()
			if err != nil {
				return fmt.Errorf("failed to generate sequence: %w", err)
			}
			s = models.NewSession(id)
			s.Sequence = int(sequence)
		case err != nil:
			return fmt.Errorf("failed to read session: %w", err)
		default:
			if s, err = r.decode(data); err != nil {
				return err
			}
		}

		if err := fn(s); err != nil {
			return err
		}
		s.ID = id
		s.UpdatedAt = time.Now().UTC()

		encoded, err := r.encode(s)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err == nil {
			result = s
		}
		return err
	}

	for range redisMaxRetries {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: %s", shared.ErrStoreConflict, id)
}

// Delete removes a session.
func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// List scans all session keys under the prefix, ordered by sequence.
func (r *RedisSessionStore) List(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if key == r.sequenceKey() {
			continue
		}

		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read session: %w", err)
		}

		s, err := r.decode(data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Sequence < sessions[j].Sequence
	})
	return sessions, nil
}
