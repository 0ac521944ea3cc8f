// Package cachetest provides an in-memory cache.Store for service tests.
package cachetest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a goroutine-safe fake that understands SCAN-style glob patterns.
// Setting the Fail* fields makes the matching operation error.
type Store struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	FailGet bool
	FailSet bool
	FailDel bool
	// FailPattern makes DeleteByPattern fail this many more times.
	FailPattern int

	Gets, Sets, PatternCalls int
}

func New() *Store {
	return &Store{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	if s.FailGet {
		return "", fmt.Errorf("get %s: connection refused", key)
	}
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sets++
	if s.FailSet {
		return fmt.Errorf("set %s: connection refused", key)
	}
	switch v := value.(type) {
	case []byte:
		s.data[key] = string(v)
	case string:
		s.data[key] = v
	default:
		s.data[key] = fmt.Sprint(v)
	}
	s.ttls[key] = ttl
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDel {
		return fmt.Errorf("del: connection refused")
	}
	for _, k := range keys {
		delete(s.data, k)
		delete(s.ttls, k)
	}
	return nil
}

func (s *Store) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PatternCalls++
	if s.FailPattern > 0 {
		s.FailPattern--
		return 0, fmt.Errorf("scan %s: connection refused", pattern)
	}
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			delete(s.ttls, k)
			n++
		}
	}
	return n, nil
}

// Has reports whether key is currently stored.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// TTL returns the ttl key was last written with.
func (s *Store) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key]
}

// Keys returns every stored key, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Put seeds a raw value.
func (s *Store) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}
