package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"yolda/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Store keeps per-user conversation state in Redis so a bot restart does
// not drop users mid-flow. State expires after the configured TTL; an
// expired or missing session reads back as the empty state.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(addr, password string, db int, ttl time.Duration) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func sessionKey(telegramID int64) string {
	return fmt.Sprintf("session:%d", telegramID)
}

// Get loads the user's conversation state. A missing session is not an
// error: the user simply is not in a flow.
func (s *Store) Get(ctx context.Context, telegramID int64) (*domain.UserState, error) {
	raw, err := s.client.Get(ctx, sessionKey(telegramID)).Bytes()
	if err == redis.Nil {
		return &domain.UserState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", telegramID, err)
	}

	var state domain.UserState
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt session is unrecoverable; start the user over.
		return &domain.UserState{}, nil
	}
	return &state, nil
}

// Set stores the user's conversation state and refreshes its TTL.
func (s *Store) Set(ctx context.Context, telegramID int64, state *domain.UserState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %d: %w", telegramID, err)
	}
	if err := s.client.Set(ctx, sessionKey(telegramID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set session %d: %w", telegramID, err)
	}
	return nil
}

// Clear drops the user's conversation state, ending any active flow.
func (s *Store) Clear(ctx context.Context, telegramID int64) error {
	if err := s.client.Del(ctx, sessionKey(telegramID)).Err(); err != nil {
		return fmt.Errorf("clear session %d: %w", telegramID, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
