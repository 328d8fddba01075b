package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BizNestAI/bizzy-sub000/internal/domain/calendar"
)

// SessionStore keeps calendar session state in Redis as JSON, one key per
// business and module. Every save refreshes the TTL.
type SessionStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewSessionStore(client *RedisClient, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// SessionKey is the Redis key (before prefixing) for a scope.
func SessionKey(scope calendar.Scope) string {
	module := string(scope.Module)
	if module == "" {
		module = "all"
	}
	return fmt.Sprintf("calendar:session:%s:%s", scope.BusinessID, module)
}

func (s *SessionStore) Load(ctx context.Context, scope calendar.Scope) (*calendar.SessionState, error) {
	raw, err := s.client.Get(ctx, SessionKey(scope))
	if err != nil {
		if errors.Is(err, ErrCacheNotFound) {
			return calendar.NewSessionState(), nil
		}
		return nil, err
	}

	state := calendar.NewSessionState()
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	if state.Overrides == nil {
		state.Overrides = make(map[string]calendar.Override)
	}
	return state, nil
}

func (s *SessionStore) Save(ctx context.Context, scope calendar.Scope, state *calendar.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	return s.client.Set(ctx, SessionKey(scope), string(data), s.ttl)
}
