package ratelimiter

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pitabwire/voiceverify/config"
)

const (
	defaultRequestsPerSecond = 10
	defaultBurstSize         = 20
	defaultCleanupInterval   = 5 * time.Minute
	defaultEntryTTL          = 10 * time.Minute
	defaultMaxEntries        = 100000

	unknownKey = "unknown"
)

// Config defines in-memory token bucket limiter settings.
type Config struct {
	RequestsPerSecond int
	BurstSize         int
	CleanupInterval   time.Duration
	EntryTTL          time.Duration
	MaxEntries        int

	// TrustForwardedHeaders keys callers on X-Forwarded-For and similar headers
	// instead of the connection address. Only safe behind a proxy that overwrites them.
	TrustForwardedHeaders bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerSecond: defaultRequestsPerSecond,
		BurstSize:         defaultBurstSize,
		CleanupInterval:   defaultCleanupInterval,
		EntryTTL:          defaultEntryTTL,
		MaxEntries:        defaultMaxEntries,
	}
}

// ConfigFrom builds limiter settings from the service configuration.
func ConfigFrom(cfg config.ConfigurationRateLimit) *Config {
	result := DefaultConfig()
	if cfg == nil {
		return result
	}

	result.RequestsPerSecond = cfg.RequestsPerSecond()
	result.BurstSize = cfg.Burst()
	result.TrustForwardedHeaders = cfg.TrustForwardedHeaders()
	return result
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64
}

// KeyedLimiter applies token bucket limits independently per caller key.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*limiterEntry
	config  Config

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewKeyedLimiter creates a keyed in-memory limiter and starts its cleanup loop.
// Close must be called to stop the loop.
func NewKeyedLimiter(cfg *Config) *KeyedLimiter {
	kl := &KeyedLimiter{
		entries: make(map[string]*limiterEntry),
		config:  normalizeConfig(cfg),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go kl.cleanupLoop()
	return kl
}

// Config returns the effective settings after defaults were applied.
func (k *KeyedLimiter) Config() Config {
	return k.config
}

// Allow checks and consumes a token for the supplied key.
func (k *KeyedLimiter) Allow(key string) bool {
	ok, _ := k.Reserve(key)
	return ok
}

// Reserve consumes a token for key when one is available. Otherwise nothing is
// consumed and the wait until the next token is returned.
func (k *KeyedLimiter) Reserve(key string) (bool, time.Duration) {
	now := time.Now()

	entry := k.getOrCreateEntry(normalizeKey(key))
	entry.lastAccess.Store(now.UnixNano())

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}

	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return false, delay
	}

	return true, 0
}

// Len returns the number of tracked keys.
func (k *KeyedLimiter) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

// Close stops the cleanup goroutine and waits for it to exit.
func (k *KeyedLimiter) Close() error {
	k.stopOnce.Do(func() {
		close(k.stopCh)
	})
	<-k.doneCh
	return nil
}

func normalizeConfig(cfg *Config) Config {
	if cfg == nil {
		return *DefaultConfig()
	}

	result := *cfg
	if result.RequestsPerSecond <= 0 {
		result.RequestsPerSecond = defaultRequestsPerSecond
	}
	if result.BurstSize < result.RequestsPerSecond {
		result.BurstSize = result.RequestsPerSecond
	}
	if result.CleanupInterval <= 0 {
		result.CleanupInterval = defaultCleanupInterval
	}
	if result.EntryTTL <= 0 {
		result.EntryTTL = defaultEntryTTL
	}
	if result.MaxEntries <= 0 {
		result.MaxEntries = defaultMaxEntries
	}

	return result
}

func normalizeKey(key string) string {
	if key == "" {
		return unknownKey
	}
	return key
}

func (k *KeyedLimiter) getOrCreateEntry(key string) *limiterEntry {
	k.mu.RLock()
	entry, found := k.entries[key]
	k.mu.RUnlock()
	if found {
		return entry
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	entry, found = k.entries[key]
	if found {
		return entry
	}

	entry = &limiterEntry{
		limiter: rate.NewLimiter(rate.Limit(float64(k.config.RequestsPerSecond)), k.config.BurstSize),
	}
	entry.lastAccess.Store(time.Now().UnixNano())
	k.entries[key] = entry

	k.evictOldestLocked()
	return entry
}

func (k *KeyedLimiter) cleanupLoop() {
	defer close(k.doneCh)

	ticker := time.NewTicker(k.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			k.cleanupExpired(time.Now())
		case <-k.stopCh:
			return
		}
	}
}

func (k *KeyedLimiter) cleanupExpired(now time.Time) {
	cutoff := now.Add(-k.config.EntryTTL).UnixNano()

	k.mu.Lock()
	defer k.mu.Unlock()

	for key, entry := range k.entries {
		if entry.lastAccess.Load() < cutoff {
			delete(k.entries, key)
		}
	}
}

// evictOldestLocked drops least recently used keys until the map fits MaxEntries.
func (k *KeyedLimiter) evictOldestLocked() {
	for len(k.entries) > k.config.MaxEntries {
		oldestKey := ""
		var oldest int64
		for key, entry := range k.entries {
			last := entry.lastAccess.Load()
			if oldestKey == "" || last < oldest {
				oldest = last
				oldestKey = key
			}
		}

		if oldestKey == "" {
			return
		}
		delete(k.entries, oldestKey)
	}
}
