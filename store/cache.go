package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"pyq-server/models"
)

const (
	cacheGenerationKey = "pyq:papers:gen"
	cacheListPrefix    = "pyq:papers:list:"
)

// CachedStore caches List results in Redis in front of another Store.
// Authoring writes bump a generation counter that is part of every list key,
// so stale entries are never read again and simply expire. View and attempt
// counters in cached listings may lag by up to the TTL.
// Redis failures are logged and fall through to the wrapped store.
type CachedStore struct {
	Store
	client redis.Cmdable
	ttl    time.Duration
}

func NewCachedStore(inner Store, client redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: inner, client: client, ttl: ttl}
}

func (s *CachedStore) List(ctx context.Context, f models.PaperFilter) ([]models.PaperSummary, error) {
	key, err := s.listKey(ctx, f)
	if err != nil {
		log.Printf("WARN: paper cache unavailable: %v", err)
		return s.Store.List(ctx, f)
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var list []models.PaperSummary
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
		log.Printf("WARN: discarding corrupt cache entry %s", key)
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("WARN: error reading paper cache: %v", err)
	}

	list, err := s.Store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if val, err := json.Marshal(list); err == nil {
		if err := s.client.Set(ctx, key, val, s.ttl).Err(); err != nil {
			log.Printf("WARN: error saving paper list to cache: %v", err)
		}
	}
	return list, nil
}

func (s *CachedStore) Create(ctx context.Context, p *models.Paper) (*models.Paper, error) {
	out, err := s.Store.Create(ctx, p)
	if err == nil {
		s.invalidate(ctx)
	}
	return out, err
}

func (s *CachedStore) Replace(ctx context.Context, p *models.Paper) (*models.Paper, error) {
	out, err := s.Store.Replace(ctx, p)
	if err == nil {
		s.invalidate(ctx)
	}
	return out, err
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	err := s.Store.Delete(ctx, id)
	if err == nil {
		s.invalidate(ctx)
	}
	return err
}

func (s *CachedStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		log.Printf("WARN: paper cache unreachable: %v", err)
	}
	return s.Store.Ping(ctx)
}

func (s *CachedStore) invalidate(ctx context.Context) {
	if err := s.client.Incr(ctx, cacheGenerationKey).Err(); err != nil {
		log.Printf("WARN: failed to invalidate paper cache: %v", err)
	}
}

func (s *CachedStore) listKey(ctx context.Context, f models.PaperFilter) (string, error) {
	gen, err := s.client.Get(ctx, cacheGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return ListCacheKey(gen, f), nil
}

// ListCacheKey is the Redis key of one cached listing.
func ListCacheKey(generation int64, f models.PaperFilter) string {
	return fmt.Sprintf("%s%d:%t|%s|%s|%d|%s|%s|%d", cacheListPrefix, generation,
		f.IncludeUnpublished, f.Category, f.Exam, f.Year, f.Subject, f.Search, f.Limit)
}
