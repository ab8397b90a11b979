package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the upstream lookup contract implemented by Client.
type Fetcher interface {
	GetArea(ctx context.Context, id int64) (Area, error)
	GetPosition(ctx context.Context, id int64) (Position, error)
	GetPerson(ctx context.Context, id int64) (Person, error)
}

// Service is a read-through cache over the upstream directory. Cache misses
// are collapsed per key so a burst of lookups for the same record produces a
// single upstream call; when both cache and upstream fail the lookup degrades
// to a labeled fallback record instead of an error.
type Service struct {
	fetcher Fetcher
	cache   *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// NewService constructs the directory service.
func NewService(fetcher Fetcher, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: fetcher, cache: cache, ttl: ttl, logger: logger}
}

// Area resolves an area, serving from cache when possible.
func (s *Service) Area(ctx context.Context, id int64) Area {
	var area Area
	key := fmt.Sprintf("directory:area:%d", id)
	if s.lookup(ctx, key, &area, func(ctx context.Context) (any, error) {
		return s.fetcher.GetArea(ctx, id)
	}) {
		return area
	}
	return fallbackArea(id)
}

// Position resolves a position, serving from cache when possible.
func (s *Service) Position(ctx context.Context, id int64) Position {
	var position Position
	key := fmt.Sprintf("directory:position:%d", id)
	if s.lookup(ctx, key, &position, func(ctx context.Context) (any, error) {
		return s.fetcher.GetPosition(ctx, id)
	}) {
		return position
	}
	return fallbackPosition(id)
}

// Person resolves a person, serving from cache when possible.
func (s *Service) Person(ctx context.Context, id int64) Person {
	var person Person
	key := fmt.Sprintf("directory:person:%d", id)
	if s.lookup(ctx, key, &person, func(ctx context.Context) (any, error) {
		return s.fetcher.GetPerson(ctx, id)
	}) {
		return person
	}
	return fallbackPerson(id)
}

// lookup fills dest from cache or upstream, reporting success. False means
// the caller should fall back to a default record.
func (s *Service) lookup(ctx context.Context, key string, dest any, load func(context.Context) (any, error)) bool {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			if jsonErr := json.Unmarshal(payload, dest); jsonErr == nil {
				return true
			}
		} else if err != redis.Nil {
			s.logger.Warn("directory cache read", slog.String("key", key), slog.Any("error", err))
		}
	}

	value, err, _ := s.group.Do(key, func() (any, error) {
		return load(ctx)
	})
	if err != nil {
		s.logger.Warn("directory upstream lookup", slog.String("key", key), slog.Any("error", err))
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("directory cache write", slog.String("key", key), slog.Any("error", err))
		}
	}
	return json.Unmarshal(data, dest) == nil
}
