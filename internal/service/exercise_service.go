package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/observability"
	"github.com/noah-isme/astra-go-api/internal/repository"
	"github.com/noah-isme/astra-go-api/pkg/aplus"
)

// ExerciseServiceConfig carries the page loading settings.
type ExerciseServiceConfig struct {
	// APIKey authenticates requests to the exercise service.
	APIKey string
	// CacheTTL bounds how long a fetched page may be served from cache when
	// the upstream response carries no usable Expires header.
	CacheTTL time.Duration
}

// ExerciseService loads exercise and chapter pages from the remote exercise
// service, caching the extracted result until it expires upstream.
type ExerciseService interface {
	Get(ctx context.Context, objectID uint) (models.LearningObject, error)
	// LoadPage returns the extracted page for the object, from cache when
	// fresh and via a conditional refetch when stale.
	LoadPage(ctx context.Context, objectID uint) (models.LearningObject, *ExercisePage, error)
	ListByRound(ctx context.Context, roundID uint) ([]models.LearningObject, error)
}

type exerciseService struct {
	objects   repository.LearningObjectRepository
	client    *aplus.Client
	extractor PageExtractor
	cache     *redis.Client
	cfg       ExerciseServiceConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExerciseService constructs an ExerciseService instance. The cache may be
// nil, in which case every page load hits the exercise service.
func NewExerciseService(objects repository.LearningObjectRepository, client *aplus.Client, extractor PageExtractor, cache *redis.Client, cfg ExerciseServiceConfig, logger zerolog.Logger) ExerciseService {
	return &exerciseService{
		objects:   objects,
		client:    client,
		extractor: extractor,
		cache:     cache,
		cfg:       cfg,
		logger:    logger.With().Str("component", "exercise_service").Logger(),
		now:       time.Now,
	}
}

func (s *exerciseService) Get(ctx context.Context, objectID uint) (models.LearningObject, error) {
	object, err := s.objects.GetByID(ctx, objectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LearningObject{}, ErrExerciseNotFound
		}
		return models.LearningObject{}, err
	}
	if object.Status == models.ObjectStatusHidden {
		return models.LearningObject{}, ErrExerciseNotFound
	}

	return object, nil
}

func (s *exerciseService) ListByRound(ctx context.Context, roundID uint) ([]models.LearningObject, error) {
	return s.objects.ListByRound(ctx, roundID)
}

// cachedPage is the cache representation of an extracted page. FetchedAt and
// ExpiresAt drive staleness; LastModified feeds the conditional refetch.
type cachedPage struct {
	Page      ExercisePage `json:"page"`
	FetchedAt time.Time    `json:"fetched_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func (s *exerciseService) LoadPage(ctx context.Context, objectID uint) (models.LearningObject, *ExercisePage, error) {
	object, err := s.Get(ctx, objectID)
	if err != nil {
		return models.LearningObject{}, nil, err
	}
	if object.Status == models.ObjectStatusMaintenance {
		return models.LearningObject{}, nil, ErrExerciseUnavailable
	}

	now := s.now()
	cached := s.readCache(ctx, object)
	if cached != nil && now.Before(cached.ExpiresAt) {
		observability.PageCacheEvents().WithLabelValues("hit").Inc()
		return object, &cached.Page, nil
	}

	options := aplus.RequestOptions{APIKey: s.cfg.APIKey}
	if cached != nil && cached.Page.LastModified != "" {
		options.IfModifiedSince = aplus.ParseHTTPDate(cached.Page.LastModified)
	}

	remote, err := s.client.Get(ctx, object.ServiceURL, options)
	if err != nil {
		if expires, ok := aplus.IsNotModified(err); ok && cached != nil {
			// The stale copy is still current upstream; extend its lease.
			observability.PageCacheEvents().WithLabelValues("revalidated").Inc()
			s.writeCache(ctx, object, cachedPage{
				Page:      cached.Page,
				FetchedAt: now,
				ExpiresAt: s.expiry(now, expires),
			})
			return object, &cached.Page, nil
		}
		observability.RemoteFetchFailures().WithLabelValues("page").Inc()
		return models.LearningObject{}, nil, err
	}

	page, err := s.extractor.Extract(ctx, object, remote)
	if err != nil {
		return models.LearningObject{}, nil, err
	}

	observability.PageCacheEvents().WithLabelValues("miss").Inc()
	s.writeCache(ctx, object, cachedPage{
		Page:      *page,
		FetchedAt: now,
		ExpiresAt: s.expiry(now, page.Expires),
	})

	return object, page, nil
}

// expiry derives the cache deadline from the upstream Expires header, falling
// back to the configured TTL when the header is absent or already past.
func (s *exerciseService) expiry(now, expires time.Time) time.Time {
	fallback := now.Add(s.cfg.CacheTTL)
	if expires.IsZero() || !expires.After(now) {
		return fallback
	}
	if expires.After(fallback) {
		return fallback
	}
	return expires
}

func (s *exerciseService) readCache(ctx context.Context, object models.LearningObject) *cachedPage {
	if s.cache == nil {
		return nil
	}

	raw, err := s.cache.Get(ctx, pageCacheKey(object.ID)).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read page cache")
		}
		return nil
	}

	var cached cachedPage
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil
	}

	return &cached
}

func (s *exerciseService) writeCache(ctx context.Context, object models.LearningObject, entry cachedPage) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}

	// Entries linger past their freshness deadline so a revalidation can
	// still find the stale copy.
	ttl := entry.ExpiresAt.Sub(entry.FetchedAt) + s.cfg.CacheTTL
	if err := s.cache.Set(ctx, pageCacheKey(object.ID), payload, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store page cache")
	}
}

func pageCacheKey(objectID uint) string {
	return fmt.Sprintf("page:object:%d", objectID)
}
