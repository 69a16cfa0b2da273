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

// Package nats implements kvstore.Store on a NATS JetStream KeyValue bucket.
//
// The document version is the entry revision, the sequence of the bucket
// stream, which grows with every write. Compare-and-swap is a KeyValue Update
// guarded by the last revision; creates use KeyValue Create.
package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/kvstore"
)

// Store is a NATS-backed kvstore.Store
type Store struct {
	config *Config
	conn   *nats.Conn
	kv     nats.KeyValue
}

var _ kvstore.Store = (*Store)(nil)

// NewStore connects to the server and opens the bucket, creating it when missing.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("kvstore/nats: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := nats.Connect(config.URL, nats.Timeout(config.ConnectTimeout))
	if err != nil {
		return nil, gerrors.NewErrStoreUnavailable(fmt.Errorf("kvstore/nats: connect: %w", err))
	}

	js, err := conn.JetStream(nats.MaxWait(config.Timeout))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore/nats: jetstream: %w", err)
	}

	kv, err := js.KeyValue(config.Bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:   config.Bucket,
			Replicas: config.Replicas,
		})
		// another node may have created the bucket in between
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			kv, err = js.KeyValue(config.Bucket)
		}
		if err != nil {
			conn.Close()
			return nil, gerrors.NewErrStoreUnavailable(fmt.Errorf("kvstore/nats: create bucket: %w", err))
		}
	}

	return &Store{config: config, conn: conn, kv: kv}, nil
}

// Get implements kvstore.Store
func (s *Store) Get(ctx context.Context, key string) (*kvstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := s.kv.Get(natsKey(key))
	switch {
	case errors.Is(err, nats.ErrKeyNotFound), errors.Is(err, nats.ErrKeyDeleted):
		return nil, gerrors.ErrKeyNotFound
	case err != nil:
		return nil, classify(ctx, err)
	}
	return toDocument(key, entry), nil
}

// Watch implements kvstore.Store
//
// The watcher first delivers the latest entry of the key, then every later
// one. The first entry past sinceVersion is returned; a delete or purge
// marker is reported as a deletion once a version is known.
func (s *Store) Watch(ctx context.Context, key string, sinceVersion uint64, timeout time.Duration) (*kvstore.Document, error) {
	watchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	watcher, err := s.kv.Watch(natsKey(key), nats.Context(watchCtx))
	if err != nil {
		if ctx.Err() == nil && watchCtx.Err() != nil {
			return nil, gerrors.ErrWatchTimeout
		}
		return nil, classify(ctx, err)
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-watchCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, gerrors.ErrWatchTimeout
		case entry, ok := <-watcher.Updates():
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if watchCtx.Err() != nil {
					return nil, gerrors.ErrWatchTimeout
				}
				return nil, gerrors.NewErrStoreUnavailable(errors.New("kvstore/nats: watcher closed"))
			}
			// nil marks the end of the initial values
			if entry == nil || entry.Revision() <= sinceVersion {
				continue
			}
			if entry.Operation() != nats.KeyValuePut {
				if sinceVersion == 0 {
					continue
				}
				return &kvstore.Document{Key: key, Version: entry.Revision()}, nil
			}
			return toDocument(key, entry), nil
		}
	}
}

// CompareAndSwap implements kvstore.Store
func (s *Store) CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if expectedVersion == 0 {
		return 0, gerrors.ErrVersionConflict
	}

	revision, err := s.kv.Update(natsKey(key), value, expectedVersion)
	switch {
	case err == nil:
		return revision, nil
	case isRevisionConflict(err), errors.Is(err, nats.ErrKeyNotFound):
		return 0, gerrors.ErrVersionConflict
	default:
		return 0, classify(ctx, err)
	}
}

// Create implements kvstore.Store
func (s *Store) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	revision, err := s.kv.Create(natsKey(key), value)
	switch {
	case err == nil:
		return revision, nil
	case isRevisionConflict(err):
		return 0, gerrors.ErrKeyExists
	default:
		return 0, classify(ctx, err)
	}
}

// Close implements kvstore.Store. Close is idempotent.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.Close()
	s.conn = nil
	return nil
}

// isRevisionConflict reports whether err is a rejected revision check
func isRevisionConflict(err error) bool {
	if errors.Is(err, nats.ErrKeyExists) {
		return true
	}
	var apiErr *nats.APIError
	return errors.As(err, &apiErr) && apiErr != nil && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, nats.ErrInvalidKey) {
		return fmt.Errorf("kvstore/nats: %w", err)
	}
	return gerrors.NewErrStoreUnavailable(err)
}

// natsKey turns a slash separated key into a dot separated subject token list
func natsKey(key string) string {
	return strings.ReplaceAll(strings.Trim(key, "/"), "/", ".")
}

func toDocument(key string, entry nats.KeyValueEntry) *kvstore.Document {
	value := entry.Value()
	if value == nil {
		value = []byte{}
	}
	return &kvstore.Document{Key: key, Value: value, Version: entry.Revision()}
}
