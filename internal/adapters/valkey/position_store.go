package valkey

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

const positionKeyPrefix = "map:position:"

// PositionStore implements ports.PositionStore on top of the cache.
// Positions expire after ttlSeconds without a move.
type PositionStore struct {
	cache      *Cache
	ttlSeconds int
}

// NewPositionStore creates a position store.
func NewPositionStore(cache *Cache, ttlSeconds int) *PositionStore {
	return &PositionStore{cache: cache, ttlSeconds: ttlSeconds}
}

// SavePosition remembers the viewport of a session.
func (s *PositionStore) SavePosition(ctx context.Context, sessionID string, vp domain.Viewport) error {
	data, err := json.Marshal(vp)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, positionKeyPrefix+sessionID, data, s.ttlSeconds); err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// LoadPosition returns the remembered viewport, or nil when none is stored.
func (s *PositionStore) LoadPosition(ctx context.Context, sessionID string) (*domain.Viewport, error) {
	data, err := s.cache.Get(ctx, positionKeyPrefix+sessionID)
	if err != nil {
		if IsMiss(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load position: %w", err)
	}
	var vp domain.Viewport
	if err := json.Unmarshal(data, &vp); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	return &vp, nil
}
