package repository

import (
	"context"
	"errors"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/cache"
)

const (
	// guardTTL keeps a day's set past the next reset so a late restart still finds it.
	guardTTL     = 48 * time.Hour
	resetDateTTL = 8 * 24 * time.Hour
)

// CacheGuardStore persists the daily confirmed set in the shared cache.
type CacheGuardStore struct {
	cache cache.Service
}

var _ repository.GuardStore = (*CacheGuardStore)(nil)

func NewCacheGuardStore(c cache.Service) *CacheGuardStore {
	return &CacheGuardStore{cache: c}
}

func guardKey(date string) string {
	return cache.GenerateKey("daily", date)
}

// LoadDaily returns the keys saved for date, empty when none were saved.
func (s *CacheGuardStore) LoadDaily(ctx context.Context, date string) ([]models.DailyKey, error) {
	var keys []models.DailyKey
	if err := s.cache.Get(ctx, guardKey(date), &keys); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}

func (s *CacheGuardStore) SaveDaily(ctx context.Context, date string, keys []models.DailyKey) error {
	if keys == nil {
		keys = []models.DailyKey{}
	}
	return s.cache.Set(ctx, guardKey(date), keys, guardTTL)
}

func (s *CacheGuardStore) LoadResetDate(ctx context.Context) (string, error) {
	var date string
	if err := s.cache.Get(ctx, cache.GenerateKey("daily", "last_reset"), &date); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", nil
		}
		return "", err
	}
	return date, nil
}

func (s *CacheGuardStore) SaveResetDate(ctx context.Context, date string) error {
	return s.cache.Set(ctx, cache.GenerateKey("daily", "last_reset"), date, resetDateTTL)
}
