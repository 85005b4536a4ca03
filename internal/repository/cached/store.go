// Package cached decorates a repository.Store with an in-process cache of
// businesses. Businesses are read on every authorization check and change
// rarely, so a short TTL is enough.
package cached

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type Store struct {
	repository.Store
	cache *cache.Cache
}

func NewStore(inner repository.Store, ttl time.Duration) *Store {
	return &Store{
		Store: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *Store) Businesses() repository.BusinessRepository {
	return &businessRepository{inner: s.Store.Businesses(), cache: s.cache}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return s.Store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, &Store{Store: tx, cache: s.cache})
	})
}

type businessRepository struct {
	inner repository.BusinessRepository
	cache *cache.Cache
}

func (r *businessRepository) Create(ctx context.Context, business *model.Business) error {
	if err := r.inner.Create(ctx, business); err != nil {
		return err
	}
	r.cache.Delete(business.ID.String())
	return nil
}

func (r *businessRepository) Get(ctx context.Context, id uuid.UUID) (*model.Business, error) {
	if v, ok := r.cache.Get(id.String()); ok {
		c := *v.(*model.Business)
		return &c, nil
	}
	b, err := r.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c := *b
	r.cache.SetDefault(id.String(), &c)
	return b, nil
}
