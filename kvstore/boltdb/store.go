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

// Package boltdb implements kvstore.Store on a local bbolt file.
//
// It serves single host deployments where every synchronizer runs in the
// same process: watches are woken by the writes of this process only.
// Each value is stored as an 8 byte big endian version followed by the
// payload. Versions come from the bucket sequence.
package boltdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/kvstore"
)

const versionSize = 8

// Store is a bbolt-backed kvstore.Store
type Store struct {
	config *Config
	db     *bolt.DB
	bucket []byte

	mu      sync.Mutex
	changed chan struct{}
	closing chan struct{}
	closed  bool
}

var _ kvstore.Store = (*Store)(nil)

// NewStore opens (or creates) the database file
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("kvstore/boltdb: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := bolt.Open(config.Path, config.FileMode, &bolt.Options{Timeout: config.LockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	bucket := []byte(config.Bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", config.Bucket, err)
	}

	return &Store{
		config:  config,
		db:      db,
		bucket:  bucket,
		changed: make(chan struct{}),
		closing: make(chan struct{}),
	}, nil
}

// Get implements kvstore.Store
func (s *Store) Get(_ context.Context, key string) (*kvstore.Document, error) {
	if s.isClosed() {
		return nil, gerrors.ErrStoreClosed
	}

	var doc *kvstore.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return gerrors.ErrKeyNotFound
		}
		var err error
		doc, err = decode(key, raw)
		return err
	})
	return doc, err
}

// Watch implements kvstore.Store
func (s *Store) Watch(ctx context.Context, key string, sinceVersion uint64, timeout time.Duration) (*kvstore.Document, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()

		doc, err := s.Get(ctx, key)
		switch {
		case err == nil && doc.Version > sinceVersion:
			return doc, nil
		case err != nil && !errors.Is(err, gerrors.ErrKeyNotFound):
			return nil, err
		}

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
	return s.update(func(bucket *bolt.Bucket) error {
		raw := bucket.Get([]byte(key))
		if raw == nil || len(raw) < versionSize || binary.BigEndian.Uint64(raw[:versionSize]) != expectedVersion {
			return gerrors.ErrVersionConflict
		}
		return nil
	}, key, value)
}

// Create implements kvstore.Store
func (s *Store) Create(_ context.Context, key string, value []byte) (uint64, error) {
	return s.update(func(bucket *bolt.Bucket) error {
		if bucket.Get([]byte(key)) != nil {
			return gerrors.ErrKeyExists
		}
		return nil
	}, key, value)
}

// Close closes the database file. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closing)
	s.mu.Unlock()
	return s.db.Close()
}

// update runs check and writes value under a fresh version in one transaction
func (s *Store) update(check func(*bolt.Bucket) error, key string, value []byte) (uint64, error) {
	if s.isClosed() {
		return 0, gerrors.ErrStoreClosed
	}

	var version uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if err := check(bucket); err != nil {
			return err
		}
		next, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		version = next
		return bucket.Put([]byte(key), encode(next, value))
	})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
	return version, nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func encode(version uint64, value []byte) []byte {
	raw := make([]byte, versionSize+len(value))
	binary.BigEndian.PutUint64(raw[:versionSize], version)
	copy(raw[versionSize:], value)
	return raw
}

func decode(key string, raw []byte) (*kvstore.Document, error) {
	if len(raw) < versionSize {
		return nil, gerrors.NewErrMalformedDocument(key, fmt.Errorf("record of %d bytes has no version", len(raw)))
	}
	// bbolt memory is only valid inside the transaction
	value := make([]byte, len(raw)-versionSize)
	copy(value, raw[versionSize:])
	return &kvstore.Document{
		Key:     key,
		Value:   value,
		Version: binary.BigEndian.Uint64(raw[:versionSize]),
	}, nil
}
