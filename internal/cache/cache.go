package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/therealutkarshpriyadarshi/substills/internal/metrics"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

const (
	preferencesKey  = "preferences"
	lastCaptureKey  = "capture:last"
	lastCaptureData = "capture:last:data"
)

// Cache keeps user preferences and the last screenshot in Redis
type Cache struct {
	client   *redis.Client
	defaults models.Preferences
	lastTTL  time.Duration
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, defaults: models.DefaultPreferences()}, nil
}

// WithDefaults overrides the preferences written on first use
func (c *Cache) WithDefaults(prefs models.Preferences) *Cache {
	c.defaults = prefs
	return c
}

// WithLastCaptureTTL expires the retained screenshot; zero keeps it forever
func (c *Cache) WithLastCaptureTTL(ttl time.Duration) *Cache {
	c.lastTTL = ttl
	return c
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Preference Operations

// EnsureDefaults writes the default preferences unless some are stored
// already. It reports whether it wrote them.
func (c *Cache) EnsureDefaults(ctx context.Context) (bool, error) {
	data, err := json.Marshal(c.defaults)
	if err != nil {
		return false, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	created, err := c.client.SetNX(ctx, preferencesKey, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to initialise preferences: %w", err)
	}
	return created, nil
}

// GetPreferences returns the stored preferences, the defaults on a miss
func (c *Cache) GetPreferences(ctx context.Context) (models.Preferences, error) {
	data, err := c.client.Get(ctx, preferencesKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheAccess("preferences", false)
			return c.defaults, nil
		}
		return models.Preferences{}, fmt.Errorf("failed to get preferences from cache: %w", err)
	}
	metrics.RecordCacheAccess("preferences", true)

	// start from the defaults so fields missing from older entries keep them
	prefs := c.defaults
	if err := json.Unmarshal(data, &prefs); err != nil {
		return models.Preferences{}, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	return prefs, nil
}

// SetPreferences replaces the stored preferences
func (c *Cache) SetPreferences(ctx context.Context, prefs models.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	return c.client.Set(ctx, preferencesKey, data, 0).Err()
}

// Last Capture Operations

// SetLastCapture retains capture, image bytes included
func (c *Cache) SetLastCapture(ctx context.Context, capture *models.Capture) error {
	meta, err := json.Marshal(capture)
	if err != nil {
		return fmt.Errorf("failed to marshal capture: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, lastCaptureKey, meta, c.lastTTL)
	pipe.Set(ctx, lastCaptureData, capture.Data, c.lastTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache last capture: %w", err)
	}
	return nil
}

// GetLastCapture returns the most recent capture, or nil if none is retained
func (c *Cache) GetLastCapture(ctx context.Context) (*models.Capture, error) {
	pipe := c.client.Pipeline()
	metaCmd := pipe.Get(ctx, lastCaptureKey)
	dataCmd := pipe.Get(ctx, lastCaptureData)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get last capture from cache: %w", err)
	}

	meta, err := metaCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheAccess("last_capture", false)
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get last capture from cache: %w", err)
	}
	data, err := dataCmd.Bytes()
	if err != nil {
		metrics.RecordCacheAccess("last_capture", false)
		return nil, nil
	}
	metrics.RecordCacheAccess("last_capture", true)

	var capture models.Capture
	if err := json.Unmarshal(meta, &capture); err != nil {
		return nil, fmt.Errorf("failed to unmarshal capture: %w", err)
	}
	capture.Data = data
	return &capture, nil
}

// ClearLastCapture forgets the retained screenshot
func (c *Cache) ClearLastCapture(ctx context.Context) error {
	return c.client.Del(ctx, lastCaptureKey, lastCaptureData).Err()
}

// Locking Operations

// AcquireLock attempts to acquire a lock that expires after ttl
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.SetNX(ctx, key, "locked", ttl).Result()
}

// ReleaseLock releases a lock
func (c *Cache) ReleaseLock(ctx context.Context, resource string) error {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.Del(ctx, key).Err()
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
