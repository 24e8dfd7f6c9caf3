// Package cache is the client-side store of server state. Every
// component reads and writes cached values through it, which is what
// makes optimistic rewrites and rollbacks race-free: the store owns
// the only copy and the only lock.
package cache

import (
	"context"
	"sync"
)

type Store struct {
	mu      sync.Mutex
	entries map[string]interface{}
	subs    map[string][]chan struct{}
	fetches map[string]context.CancelFunc
}

func New() *Store {
	return &Store{
		entries: make(map[string]interface{}),
		subs:    make(map[string][]chan struct{}),
		fetches: make(map[string]context.CancelFunc),
	}
}

func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *Store) Set(key string, val interface{}) {
	s.mu.Lock()
	s.entries[key] = val
	s.mu.Unlock()
	s.notify(key)
}

func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	s.notify(key)
}

// Subscribe returns a coalescing notification channel: one pending
// signal at most, set on every Set/Invalidate of the key.
func (s *Store) Subscribe(key string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[key] = append(s.subs[key], ch)
	return ch
}

func (s *Store) notify(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// BeginFetch registers a read in flight for the key and returns the
// context it must run under. Starting a new fetch, or calling
// CancelFetch, cancels the previous one so a stale response can no
// longer overwrite fresher state.
func (s *Store) BeginFetch(ctx context.Context, key string) context.Context {
	fctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.fetches[key]; ok {
		prev()
	}
	s.fetches[key] = cancel

	return fctx
}

// CancelFetch suppresses the in-flight read for the key, if any. The
// HTTP request itself keeps running; only its cache write is voided.
func (s *Store) CancelFetch(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.fetches[key]; ok {
		cancel()
		delete(s.fetches, key)
	}
}

// EndFetch reports whether the fetch begun under fctx is still the
// current one, and unregisters it. A fetch that was cancelled in the
// meantime must drop its result. The registration's cancel func is
// invoked on the way out so the derived context is released rather
// than lingering until its parent ends.
func (s *Store) EndFetch(fctx context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fctx.Err() != nil {
		return false
	}
	if cancel, ok := s.fetches[key]; ok {
		cancel()
		delete(s.fetches, key)
	}
	return true
}
