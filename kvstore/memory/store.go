// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package memory provides an in-process kvstore.Store.
//
// Versions come from a store wide revision counter so that they grow
// monotonically per key, the way etcd revisions do.
package memory

import (
	"context"
	"sync"
	"time"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/kvstore"
)

type entry struct {
	value   []byte
	version uint64
	deleted bool
}

// Store is an in-memory kvstore.Store
type Store struct {
	mu       sync.Mutex
	revision uint64
	entries  map[string]*entry
	// changed is closed and replaced on every write to wake the watchers
	changed chan struct{}
	closed  bool
	closing chan struct{}
}

var _ kvstore.Store = (*Store)(nil)

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		changed: make(chan struct{}),
		closing: make(chan struct{}),
	}
}

// Get implements kvstore.Store
func (s *Store) Get(_ context.Context, key string) (*kvstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, gerrors.ErrStoreClosed
	}

	current, ok := s.entries[key]
	if !ok || current.deleted {
		return nil, gerrors.ErrKeyNotFound
	}
	return toDocument(key, current), nil
}

// Watch implements kvstore.Store
func (s *Store) Watch(ctx context.Context, key string, sinceVersion uint64, timeout time.Duration) (*kvstore.Document, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, gerrors.ErrStoreClosed
		}
		if current, ok := s.entries[key]; ok && current.version > sinceVersion {
			doc := toDocument(key, current)
			s.mu.Unlock()
			return doc, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return nil, gerrors.ErrWatchTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closing:
			return nil, gerrors.ErrStoreClosed
		}
	}
}

// CompareAndSwap implements kvstore.Store
func (s *Store) CompareAndSwap(_ context.Context, key string, value []byte, expectedVersion uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, gerrors.ErrStoreClosed
	}

	current, ok := s.entries[key]
	if !ok || current.deleted || current.version != expectedVersion {
		return 0, gerrors.ErrVersionConflict
	}
	return s.put(key, value, false), nil
}

// Create implements kvstore.Store
func (s *Store) Create(_ context.Context, key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, gerrors.ErrStoreClosed
	}

	if current, ok := s.entries[key]; ok && !current.deleted {
		return 0, gerrors.ErrKeyExists
	}
	return s.put(key, value, false), nil
}

// Delete removes key. Watchers observe the removal as a document with a nil value.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return gerrors.ErrStoreClosed
	}

	if current, ok := s.entries[key]; !ok || current.deleted {
		return nil
	}
	s.put(key, nil, true)
	return nil
}

// Close implements kvstore.Store. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closing)
	}
	return nil
}

// put must be called with the lock held
func (s *Store) put(key string, value []byte, deleted bool) uint64 {
	s.revision++
	var stored []byte
	if !deleted {
		stored = make([]byte, len(value))
		copy(stored, value)
	}
	s.entries[key] = &entry{value: stored, version: s.revision, deleted: deleted}

	close(s.changed)
	s.changed = make(chan struct{})
	return s.revision
}

func toDocument(key string, current *entry) *kvstore.Document {
	doc := &kvstore.Document{Key: key, Version: current.version}
	if !current.deleted {
		doc.Value = make([]byte, len(current.value))
		copy(doc.Value, current.value)
	}
	return doc
}
