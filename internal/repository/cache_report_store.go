package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinSelect/internal/domain/models"
	domrepo "FinSelect/internal/domain/repository"
	"FinSelect/pkg/cache"
)

// CacheReportStore keeps reports in a pkg/cache Service (memory, Redis or layered).
type CacheReportStore struct {
	c   cache.Service
	ttl time.Duration
}

func NewCacheReportStore(c cache.Service, ttl time.Duration) *CacheReportStore {
	return &CacheReportStore{c: c, ttl: ttl}
}

func reportKey(id string) string { return cache.GenerateKey("report", id) }
func lockKey(key string) string  { return cache.GenerateKey("lock", key) }

func (s *CacheReportStore) Save(ctx context.Context, r *models.ModelReport) error {
	if r.ID == "" {
		return errors.New("save report: empty id")
	}
	if err := s.c.Set(ctx, reportKey(r.ID), r, s.ttl); err != nil {
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	return nil
}

func (s *CacheReportStore) Get(ctx context.Context, id string) (*models.ModelReport, error) {
	var r models.ModelReport
	if err := s.c.Get(ctx, reportKey(id), &r); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, domrepo.ErrReportNotFound
		}
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return &r, nil
}

func (s *CacheReportStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, func(), error) {
	k := lockKey(key)
	ok, err := s.c.TryLock(ctx, k, ttl)
	if err != nil || !ok {
		return false, func() {}, err
	}
	return true, func() { _ = s.c.Unlock(context.Background(), k) }, nil
}
