/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_player/internal/models"
	"github.com/friendsincode/grimnir_player/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultDefinitionListTTL = 30 * time.Second
	DefaultDecisionTTL       = 5 * time.Second
	DefaultCatalogTTL        = 5 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyDefinitionList = "grimnirplayer:cache:definitions"
	KeyDecision       = "grimnirplayer:cache:decision:"        // + track
	KeySequenceLength = "grimnirplayer:cache:sequence_length:" // + sequence_id
	KeyPlaylistItems  = "grimnirplayer:cache:playlist_items:"  // + playlist_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	DefinitionListTTL time.Duration
	DecisionTTL       time.Duration
	CatalogTTL        time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:         "localhost:6379",
		DefinitionListTTL: DefaultDefinitionListTTL,
		DecisionTTL:       DefaultDecisionTTL,
		CatalogTTL:        DefaultCatalogTTL,
		DisableOnError:    true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	telemetry.CacheErrorsTotal.Inc()
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Definition caching methods

// GetDefinitionList retrieves the cached list of schedule definitions.
func (c *Cache) GetDefinitionList(ctx context.Context) ([]models.ScheduleDefinition, bool) {
	var defs []models.ScheduleDefinition
	found, err := c.get(ctx, KeyDefinitionList, &defs)
	if err != nil || !found {
		telemetry.CacheMissesTotal.Inc()
		return nil, false
	}
	telemetry.CacheHitsTotal.Inc()
	c.logger.Debug().Int("count", len(defs)).Msg("definition list cache hit")
	return defs, true
}

// SetDefinitionList caches the list of schedule definitions.
func (c *Cache) SetDefinitionList(ctx context.Context, defs []models.ScheduleDefinition) error {
	c.logger.Debug().Int("count", len(defs)).Msg("caching definition list")
	return c.set(ctx, KeyDefinitionList, defs, c.config.DefinitionListTTL)
}

// InvalidateDefinitionList removes the definition list from cache.
func (c *Cache) InvalidateDefinitionList(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating definition list cache")
	return c.delete(ctx, KeyDefinitionList)
}

// Decision caching methods

// GetDecision retrieves the cached active decision for a track.
func (c *Cache) GetDecision(ctx context.Context, track models.Track) (*models.ActiveDecision, bool) {
	var decision models.ActiveDecision
	found, err := c.get(ctx, KeyDecision+string(track), &decision)
	if err != nil || !found {
		telemetry.CacheMissesTotal.Inc()
		return nil, false
	}
	telemetry.CacheHitsTotal.Inc()
	c.logger.Debug().Str("track", string(track)).Msg("decision cache hit")
	return &decision, true
}

// SetDecision caches the active decision for a track. The TTL is short;
// decisions go stale at engine tick cadence.
func (c *Cache) SetDecision(ctx context.Context, decision *models.ActiveDecision) error {
	c.logger.Debug().Str("track", string(decision.Track)).Msg("caching decision")
	return c.set(ctx, KeyDecision+string(decision.Track), decision, c.config.DecisionTTL)
}

// InvalidateDecisions removes all cached decisions.
func (c *Cache) InvalidateDecisions(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating decision caches")
	return c.deletePattern(ctx, KeyDecision+"*")
}

// Catalog caching methods

// GetSequenceLength retrieves a cached sequence length in milliseconds.
func (c *Cache) GetSequenceLength(ctx context.Context, sequenceID string) (int64, bool) {
	var lengthMs int64
	found, err := c.get(ctx, KeySequenceLength+sequenceID, &lengthMs)
	if err != nil || !found {
		telemetry.CacheMissesTotal.Inc()
		return 0, false
	}
	telemetry.CacheHitsTotal.Inc()
	c.logger.Debug().Str("sequence_id", sequenceID).Msg("sequence length cache hit")
	return lengthMs, true
}

// SetSequenceLength caches a sequence length.
func (c *Cache) SetSequenceLength(ctx context.Context, sequenceID string, lengthMs int64) error {
	c.logger.Debug().Str("sequence_id", sequenceID).Msg("caching sequence length")
	return c.set(ctx, KeySequenceLength+sequenceID, lengthMs, c.config.CatalogTTL)
}

// InvalidateSequenceLength removes a sequence length from cache.
func (c *Cache) InvalidateSequenceLength(ctx context.Context, sequenceID string) error {
	c.logger.Debug().Str("sequence_id", sequenceID).Msg("invalidating sequence length cache")
	return c.delete(ctx, KeySequenceLength+sequenceID)
}

// GetPlaylistItems retrieves cached playlist items, ordered by position.
func (c *Cache) GetPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, bool) {
	var items []models.PlaylistItem
	found, err := c.get(ctx, KeyPlaylistItems+playlistID, &items)
	if err != nil || !found {
		telemetry.CacheMissesTotal.Inc()
		return nil, false
	}
	telemetry.CacheHitsTotal.Inc()
	c.logger.Debug().Str("playlist_id", playlistID).Int("count", len(items)).Msg("playlist items cache hit")
	return items, true
}

// SetPlaylistItems caches the items of a playlist.
func (c *Cache) SetPlaylistItems(ctx context.Context, playlistID string, items []models.PlaylistItem) error {
	c.logger.Debug().Str("playlist_id", playlistID).Int("count", len(items)).Msg("caching playlist items")
	return c.set(ctx, KeyPlaylistItems+playlistID, items, c.config.CatalogTTL)
}

// InvalidatePlaylistItems removes a playlist's items from cache.
func (c *Cache) InvalidatePlaylistItems(ctx context.Context, playlistID string) error {
	c.logger.Debug().Str("playlist_id", playlistID).Msg("invalidating playlist items cache")
	return c.delete(ctx, KeyPlaylistItems+playlistID)
}

// Bulk invalidation methods

// InvalidateCatalog removes all catalog-derived caches. Importers call
// this after bulk writes.
func (c *Cache) InvalidateCatalog(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating catalog caches")

	if err := c.deletePattern(ctx, KeySequenceLength+"*"); err != nil {
		return err
	}

	return c.deletePattern(ctx, KeyPlaylistItems+"*")
}

// InvalidateSchedule removes every cache a definition change can stale:
// the definition list, derived decisions, nothing catalog-side.
func (c *Cache) InvalidateSchedule(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating schedule caches")

	if err := c.InvalidateDefinitionList(ctx); err != nil {
		return err
	}

	return c.InvalidateDecisions(ctx)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "grimnirplayer:cache:*")
}
