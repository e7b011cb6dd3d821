package services

import (
	"context"
	"fmt"
	"time"

	"cera/internal/models"
	"cera/pkg/cache"
	"cera/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CacheService interface {
	// Basic cache operations
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)

	// Lock operations
	Lock(ctx context.Context, key string, expiration time.Duration) (*cache.Lock, error)
	Unlock(ctx context.Context, lock *cache.Lock) error

	// Application-specific cache operations
	CacheIncident(ctx context.Context, incident *models.Incident, expiration time.Duration) error
	GetCachedIncident(ctx context.Context, incidentID primitive.ObjectID) (*models.Incident, error)
	InvalidateIncident(ctx context.Context, incidentID primitive.ObjectID) error

	CacheUser(ctx context.Context, user *models.User, expiration time.Duration) error
	GetCachedUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	InvalidateUser(ctx context.Context, userID primitive.ObjectID) error

	// Health
	Ping(ctx context.Context) error
}

type cacheService struct {
	redis     *cache.RedisCache
	logger    *logger.Logger
	keyPrefix string
}

func NewCacheService(redis *cache.RedisCache, logger *logger.Logger, keyPrefix string) CacheService {
	return &cacheService{
		redis:     redis,
		logger:    logger,
		keyPrefix: keyPrefix,
	}
}

func (s *cacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if err := s.redis.Get(ctx, s.buildKey(key), dest); err != nil {
		return fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	s.logger.WithField("cache_key", key).Debug("Cache hit")
	return nil
}

func (s *cacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := s.redis.Set(ctx, s.buildKey(key), value, expiration); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

func (s *cacheService) Delete(ctx context.Context, keys ...string) error {
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}

	if err := s.redis.Delete(ctx, fullKeys...); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

func (s *cacheService) Exists(ctx context.Context, key string) (bool, error) {
	return s.redis.Exists(ctx, s.buildKey(key))
}

func (s *cacheService) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return s.redis.SetNX(ctx, s.buildKey(key), value, expiration)
}

func (s *cacheService) Lock(ctx context.Context, key string, expiration time.Duration) (*cache.Lock, error) {
	return s.redis.Lock(ctx, s.buildKey(key), expiration)
}

func (s *cacheService) Unlock(ctx context.Context, lock *cache.Lock) error {
	return s.redis.Unlock(ctx, lock)
}

func (s *cacheService) CacheIncident(ctx context.Context, incident *models.Incident, expiration time.Duration) error {
	key := fmt.Sprintf("incident:%s", incident.ID.Hex())
	return s.Set(ctx, key, incident, expiration)
}

func (s *cacheService) GetCachedIncident(ctx context.Context, incidentID primitive.ObjectID) (*models.Incident, error) {
	key := fmt.Sprintf("incident:%s", incidentID.Hex())
	var incident models.Incident

	if err := s.Get(ctx, key, &incident); err != nil {
		return nil, err
	}

	return &incident, nil
}

func (s *cacheService) InvalidateIncident(ctx context.Context, incidentID primitive.ObjectID) error {
	key := fmt.Sprintf("incident:%s", incidentID.Hex())
	return s.Delete(ctx, key)
}

func (s *cacheService) CacheUser(ctx context.Context, user *models.User, expiration time.Duration) error {
	key := fmt.Sprintf("user:%s", user.ID.Hex())
	return s.Set(ctx, key, user, expiration)
}

func (s *cacheService) GetCachedUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	key := fmt.Sprintf("user:%s", userID.Hex())
	var user models.User

	if err := s.Get(ctx, key, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *cacheService) InvalidateUser(ctx context.Context, userID primitive.ObjectID) error {
	key := fmt.Sprintf("user:%s", userID.Hex())
	return s.Delete(ctx, key)
}

func (s *cacheService) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx)
}

func (s *cacheService) buildKey(key string) string {
	if s.keyPrefix != "" {
		return fmt.Sprintf("%s:%s", s.keyPrefix, key)
	}
	return key
}
