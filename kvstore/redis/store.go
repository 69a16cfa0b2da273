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

// Package redis implements kvstore.Store on a Redis server.
//
// A document is a hash holding its value and version. Versions come from one
// counter per namespace, so they keep growing even when a key is deleted and
// created again. Writes are Lua scripts that check the version, bump the
// counter and publish the new version on the key channel; watches subscribe
// to that channel.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/kvstore"
)

const (
	valueField   = "value"
	versionField = "version"
)

// KEYS[1] document, KEYS[2] counter; ARGV[1] value, ARGV[2] channel
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local version = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'value', ARGV[1], 'version', version)
redis.call('PUBLISH', ARGV[2], version)
return version
`)

// KEYS[1] document, KEYS[2] counter; ARGV[1] value, ARGV[2] channel, ARGV[3] expected version
var compareAndSwapScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current or current ~= ARGV[3] then
	return 0
end
local version = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'value', ARGV[1], 'version', version)
redis.call('PUBLISH', ARGV[2], version)
return version
`)

// Store is a Redis-backed kvstore.Store
type Store struct {
	config *Config
	client *redis.Client
}

var _ kvstore.Store = (*Store)(nil)

// NewStore connects to the server and checks it answers.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("kvstore/redis: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Username:     config.Username,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
	})

	ctx, cancel := context.WithTimeout(config.Context, config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if cerr := client.Close(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close redis client: %w", cerr))
		}
		return nil, gerrors.NewErrStoreUnavailable(fmt.Errorf("failed to connect to redis: %w", err))
	}

	return &Store{config: config, client: client}, nil
}

// Get implements kvstore.Store
func (s *Store) Get(ctx context.Context, key string) (*kvstore.Document, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	fields, err := s.client.HMGet(opCtx, s.documentKey(key), valueField, versionField).Result()
	if err != nil {
		return nil, classify(ctx, err)
	}

	value, ok := fields[0].(string)
	if !ok {
		return nil, gerrors.ErrKeyNotFound
	}
	raw, _ := fields[1].(string)
	version, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, gerrors.NewErrMalformedDocument(key, fmt.Errorf("invalid version %q: %w", raw, err))
	}
	return &kvstore.Document{Key: key, Value: []byte(value), Version: version}, nil
}

// Watch implements kvstore.Store
//
// The subscription is confirmed before the document is read, so a write
// landing between the read and the wait is still seen. A key removed behind
// the store's back is reported as gerrors.ErrKeyNotFound.
func (s *Store) Watch(ctx context.Context, key string, sinceVersion uint64, timeout time.Duration) (*kvstore.Document, error) {
	watchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pubSub := s.client.Subscribe(watchCtx, s.channel(key))
	defer func() { _ = pubSub.Close() }()

	if _, err := pubSub.Receive(watchCtx); err != nil {
		return nil, watchErr(ctx, watchCtx, err)
	}

	messages := pubSub.Channel()
	for {
		doc, err := s.Get(watchCtx, key)
		switch {
		case errors.Is(err, gerrors.ErrKeyNotFound):
			if sinceVersion > 0 {
				return nil, err
			}
		case err != nil:
			return nil, watchErr(ctx, watchCtx, err)
		case doc.Version > sinceVersion:
			return doc, nil
		}

		if err := s.waitNewer(ctx, watchCtx, messages, sinceVersion); err != nil {
			return nil, err
		}
	}
}

// waitNewer blocks until a version past sinceVersion is published
func (s *Store) waitNewer(ctx, watchCtx context.Context, messages <-chan *redis.Message, sinceVersion uint64) error {
	for {
		select {
		case <-watchCtx.Done():
			return watchErr(ctx, watchCtx, watchCtx.Err())
		case message, ok := <-messages:
			if !ok {
				return gerrors.NewErrStoreUnavailable(errors.New("kvstore/redis: subscription closed"))
			}
			version, err := strconv.ParseUint(message.Payload, 10, 64)
			if err != nil || version > sinceVersion {
				return nil
			}
		}
	}
}

// CompareAndSwap implements kvstore.Store
func (s *Store) CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion uint64) (uint64, error) {
	if expectedVersion == 0 {
		return 0, gerrors.ErrVersionConflict
	}

	version, err := s.run(ctx, compareAndSwapScript, key, value, strconv.FormatUint(expectedVersion, 10))
	if err != nil {
		return 0, err
	}
	if version == 0 {
		return 0, gerrors.ErrVersionConflict
	}
	return version, nil
}

// Create implements kvstore.Store
func (s *Store) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	version, err := s.run(ctx, createScript, key, value)
	if err != nil {
		return 0, err
	}
	if version == 0 {
		return 0, gerrors.ErrKeyExists
	}
	return version, nil
}

// Close implements kvstore.Store
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) run(ctx context.Context, script *redis.Script, key string, value []byte, extra ...any) (uint64, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	args := append([]any{value, s.channel(key)}, extra...)
	version, err := script.Run(opCtx, s.client, []string{s.documentKey(key), s.counterKey()}, args...).Int64()
	if err != nil {
		return 0, classify(ctx, err)
	}
	return uint64(version), nil
}

// the hash tag keeps the document and the counter on one cluster slot
func (s *Store) documentKey(key string) string {
	return fmt.Sprintf("{%s}:doc:%s", s.config.Namespace, strings.TrimPrefix(key, "/"))
}

func (s *Store) counterKey() string {
	return fmt.Sprintf("{%s}:version", s.config.Namespace)
}

func (s *Store) channel(key string) string {
	return fmt.Sprintf("{%s}:changes:%s", s.config.Namespace, strings.TrimPrefix(key, "/"))
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.Timeout)
}

func watchErr(ctx, watchCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if watchCtx.Err() != nil {
		return gerrors.ErrWatchTimeout
	}
	return gerrors.NewErrStoreUnavailable(err)
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return gerrors.NewErrStoreUnavailable(err)
}
