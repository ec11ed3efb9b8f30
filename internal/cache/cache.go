// Package cache provides an in-process LRU cache with TTL expiry and a
// loader that collapses concurrent misses.
package cache

import (
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Purge drops every entry.
	Purge()
	Size() int
}

// Loader fills a Cache on miss. Concurrent misses for the same key share a
// single load. A load that started before Invalidate is returned to its
// callers but not cached.
type Loader[T any] struct {
	cache      Cache[T]
	group      singleflight.Group
	generation atomic.Uint64
}

func NewLoader[T any](c Cache[T]) *Loader[T] {
	return &Loader[T]{cache: c}
}

// Get returns the cached value for key or calls load and caches its result.
// Errors are not cached.
func (l *Loader[T]) Get(key string, load func() (T, error)) (T, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	gen := l.generation.Load()
	flight := key + "#" + strconv.FormatUint(gen, 10)
	v, err, _ := l.group.Do(flight, func() (any, error) {
		data, err := load()
		if err != nil {
			return data, err
		}
		if l.generation.Load() == gen {
			l.cache.Set(key, data)
		}
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops every cached value.
func (l *Loader[T]) Invalidate() {
	l.generation.Add(1)
	l.cache.Purge()
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic expiry for registered caches.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := 0
			for _, c := range m.caches {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				slog.Debug("Expired cache entries removed", "count", cleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup goroutine started by StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
