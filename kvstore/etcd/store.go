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

// Package etcd implements kvstore.Store on top of etcd v3.
//
// The document version is the key ModRevision. Writes are transactions
// guarded by a ModRevision comparison, creates by a CreateRevision == 0
// comparison.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/kvstore"
)

// Store is an etcd-backed kvstore.Store
type Store struct {
	config    *Config
	client    *clientv3.Client
	kv        clientv3.KV
	watcher   clientv3.Watcher
	closeFunc func(*clientv3.Client) error
}

var _ kvstore.Store = (*Store)(nil)

// NewStore connects to etcd and returns a Store scoped to the configured namespace.
func NewStore(config *Config) (*Store, error) {
	return newStore(config, clientv3.New)
}

func newStore(config *Config, clientFunc func(clientv3.Config) (*clientv3.Client, error)) (*Store, error) {
	if config == nil {
		return nil, errors.New("kvstore/etcd: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := clientFunc(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		TLS:         config.TLS,
		Username:    config.Username,
		Password:    config.Password,
		Context:     config.Context,
	})
	if err != nil {
		return nil, gerrors.NewErrStoreUnavailable(err)
	}

	ctx, cancel := context.WithTimeout(config.Context, config.DialTimeout)
	defer cancel()

	if _, err = client.Status(ctx, config.Endpoints[0]); err != nil {
		if cerr := client.Close(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}
		return nil, gerrors.NewErrStoreUnavailable(fmt.Errorf("failed to connect to etcd: %w", err))
	}

	prefix := normalizeNamespace(config.Namespace)
	return &Store{
		config:    config,
		client:    client,
		kv:        namespace.NewKV(client.KV, prefix),
		watcher:   namespace.NewWatcher(client.Watcher, prefix),
		closeFunc: func(client *clientv3.Client) error { return client.Close() },
	}, nil
}

// Get implements kvstore.Store
func (s *Store) Get(ctx context.Context, key string) (*kvstore.Document, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.kv.Get(opCtx, key)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, gerrors.ErrKeyNotFound
	}
	return toDocument(key, resp.Kvs[0]), nil
}

// Watch implements kvstore.Store
//
// The watch starts at sinceVersion+1 so that changes made before the call are
// replayed. When sinceVersion is zero the current value is read first. A
// compacted start revision falls back to a plain read.
func (s *Store) Watch(ctx context.Context, key string, sinceVersion uint64, timeout time.Duration) (*kvstore.Document, error) {
	startRevision := int64(sinceVersion) + 1
	if sinceVersion == 0 {
		opCtx, cancel := s.withTimeout(ctx)
		resp, err := s.kv.Get(opCtx, key)
		cancel()
		if err != nil {
			return nil, classify(ctx, err)
		}
		if len(resp.Kvs) > 0 {
			return toDocument(key, resp.Kvs[0]), nil
		}
		startRevision = resp.Header.Revision + 1
	}

	watchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		watchChan := s.watcher.Watch(clientv3.WithRequireLeader(watchCtx), key, clientv3.WithRev(startRevision))
		compacted := int64(0)

		for resp := range watchChan {
			if resp.CompactRevision > 0 {
				compacted = resp.CompactRevision
				break
			}
			if err := resp.Err(); err != nil {
				if watchCtx.Err() != nil {
					break
				}
				return nil, classify(ctx, err)
			}
			for _, event := range resp.Events {
				if event.Kv == nil || uint64(event.Kv.ModRevision) <= sinceVersion {
					continue
				}
				if event.Type == clientv3.EventTypeDelete {
					return &kvstore.Document{Key: key, Version: uint64(event.Kv.ModRevision)}, nil
				}
				return toDocument(key, event.Kv), nil
			}
		}

		if compacted == 0 {
			break
		}

		doc, err := s.Get(watchCtx, key)
		switch {
		case err == nil && doc.Version > sinceVersion:
			return doc, nil
		case err != nil && !errors.Is(err, gerrors.ErrKeyNotFound):
			if watchCtx.Err() != nil {
				break
			}
			return nil, err
		}
		startRevision = compacted
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, gerrors.ErrWatchTimeout
}

// CompareAndSwap implements kvstore.Store
func (s *Store) CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion uint64) (uint64, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.kv.Txn(opCtx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", int64(expectedVersion))).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		return 0, classify(ctx, err)
	}
	if !resp.Succeeded {
		return 0, gerrors.ErrVersionConflict
	}
	return uint64(resp.Header.Revision), nil
}

// Create implements kvstore.Store
func (s *Store) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.kv.Txn(opCtx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		return 0, classify(ctx, err)
	}
	if !resp.Succeeded {
		return 0, gerrors.ErrKeyExists
	}
	return uint64(resp.Header.Revision), nil
}

// Close releases the etcd client. Close is idempotent.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	client := s.client
	s.client = nil
	return s.closeFunc(client)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = s.config.Context
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

// classify maps client errors onto the store taxonomy. Cancellation of the
// caller context is returned as is.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return gerrors.NewErrStoreUnavailable(err)
}

func toDocument(key string, kv *mvccpb.KeyValue) *kvstore.Document {
	value := kv.Value
	if value == nil {
		value = []byte{}
	}
	return &kvstore.Document{Key: key, Value: value, Version: uint64(kv.ModRevision)}
}

func normalizeNamespace(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasSuffix(trimmed, "/") {
		return trimmed
	}
	return trimmed + "/"
}
