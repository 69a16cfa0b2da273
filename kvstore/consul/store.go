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

// Package consul implements kvstore.Store on the Consul KV API.
//
// The document version is the key ModifyIndex. Watches are Consul blocking
// queries and writes are check-and-set transactions.
package consul

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/kvstore"
)

// Store is a Consul-backed kvstore.Store
type Store struct {
	config *Config
	client *api.Client
	kv     *api.KV
}

var _ kvstore.Store = (*Store)(nil)

// NewStore creates a Store and checks the agent is reachable.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("kvstore/consul: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("consul store config is invalid: %w", err)
	}

	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Address
	consulConfig.Datacenter = config.Datacenter
	consulConfig.Token = config.Token

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if _, err = client.Status().Leader(); err != nil {
		return nil, gerrors.NewErrStoreUnavailable(fmt.Errorf("failed to connect to consul: %w", err))
	}

	return &Store{
		config: config,
		client: client,
		kv:     client.KV(),
	}, nil
}

// Get implements kvstore.Store
func (s *Store) Get(ctx context.Context, key string) (*kvstore.Document, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	pair, _, err := s.kv.Get(consulKey(key), s.queryOptions(opCtx))
	if err != nil {
		return nil, classify(ctx, err)
	}
	if pair == nil {
		return nil, gerrors.ErrKeyNotFound
	}
	return toDocument(key, pair), nil
}

// Watch implements kvstore.Store
//
// A blocking query returns as soon as the key index moves past the wait index
// or the wait time elapses. A missing key after a known version is reported
// as a deletion.
func (s *Store) Watch(ctx context.Context, key string, sinceVersion uint64, timeout time.Duration) (*kvstore.Document, error) {
	deadline := time.Now().Add(timeout)
	waitIndex := sinceVersion

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, gerrors.ErrWatchTimeout
		}

		options := s.queryOptions(ctx)
		options.WaitIndex = waitIndex
		options.WaitTime = remaining
		options.AllowStale = s.config.AllowStale

		pair, meta, err := s.kv.Get(consulKey(key), options)
		if err != nil {
			return nil, classify(ctx, err)
		}

		switch {
		case pair != nil && pair.ModifyIndex > sinceVersion:
			return toDocument(key, pair), nil
		case pair == nil && sinceVersion > 0 && meta.LastIndex > sinceVersion:
			return &kvstore.Document{Key: key, Version: meta.LastIndex}, nil
		}

		// the index only ever moves forward; a reset starts again from zero
		if meta.LastIndex < waitIndex {
			waitIndex = 0
		} else {
			waitIndex = meta.LastIndex
		}
	}
}

// CompareAndSwap implements kvstore.Store
func (s *Store) CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion uint64) (uint64, error) {
	if expectedVersion == 0 {
		return 0, gerrors.ErrVersionConflict
	}
	version, ok, err := s.checkAndSet(ctx, key, value, expectedVersion)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, gerrors.ErrVersionConflict
	}
	return version, nil
}

// Create implements kvstore.Store
func (s *Store) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	version, ok, err := s.checkAndSet(ctx, key, value, 0)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, gerrors.ErrKeyExists
	}
	return version, nil
}

// Close implements kvstore.Store. The HTTP client holds no session to release.
func (s *Store) Close() error {
	return nil
}

// checkAndSet writes value when the key ModifyIndex equals index. An index of
// zero only succeeds when the key does not exist.
func (s *Store) checkAndSet(ctx context.Context, key string, value []byte, index uint64) (uint64, bool, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	ops := api.KVTxnOps{
		&api.KVTxnOp{
			Verb:  api.KVCAS,
			Key:   consulKey(key),
			Value: value,
			Index: index,
		},
	}

	ok, resp, _, err := s.kv.Txn(ops, s.queryOptions(opCtx))
	if err != nil {
		return 0, false, classify(ctx, err)
	}
	if !ok || resp == nil || len(resp.Results) == 0 {
		return 0, false, nil
	}
	return resp.Results[0].ModifyIndex, true, nil
}

func (s *Store) queryOptions(ctx context.Context) *api.QueryOptions {
	options := &api.QueryOptions{Datacenter: s.config.Datacenter}
	return options.WithContext(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = s.config.Context
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return gerrors.NewErrStoreUnavailable(err)
}

// consulKey drops the leading slash Consul does not accept
func consulKey(key string) string {
	return strings.TrimPrefix(key, "/")
}

func toDocument(key string, pair *api.KVPair) *kvstore.Document {
	value := pair.Value
	if value == nil {
		value = []byte{}
	}
	return &kvstore.Document{Key: key, Value: value, Version: pair.ModifyIndex}
}
