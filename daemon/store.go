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

package daemon

import (
	"context"
	"strings"
	"time"

	"github.com/flowchartsman/retry"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/kvstore"
	"github.com/tochemey/clustermgr/kvstore/boltdb"
	"github.com/tochemey/clustermgr/kvstore/consul"
	"github.com/tochemey/clustermgr/kvstore/etcd"
	"github.com/tochemey/clustermgr/kvstore/memory"
	"github.com/tochemey/clustermgr/kvstore/nats"
	"github.com/tochemey/clustermgr/kvstore/redis"
	"github.com/tochemey/clustermgr/kvstore/zookeeper"
)

// StoreFactory connects to a store backend
type StoreFactory func(ctx context.Context, config *Config) (kvstore.Store, error)

// OpenStore connects to the configured backend, retrying with backoff until
// ConnectRetries attempts have failed.
func OpenStore(ctx context.Context, config *Config) (kvstore.Store, error) {
	dial, err := dialer(config.Backend)
	if err != nil {
		return nil, err
	}

	var store kvstore.Store
	retrier := retry.NewRetrier(config.ConnectRetries, 100*time.Millisecond, config.ConnectMaxDelay)
	err = retrier.RunContext(ctx, func(ctx context.Context) error {
		var derr error
		store, derr = dial(ctx, config)
		if derr != nil {
			config.Logger.Warnf("failed to connect to the %s store: %v", config.Backend, derr)
		}
		return derr
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func dialer(backend Backend) (StoreFactory, error) {
	switch backend {
	case BackendEtcd:
		return func(ctx context.Context, config *Config) (kvstore.Store, error) {
			return etcd.NewStore(&etcd.Config{
				Context:   ctx,
				Endpoints: config.Endpoints,
				Namespace: config.Namespace,
			})
		}, nil
	case BackendConsul:
		return func(ctx context.Context, config *Config) (kvstore.Store, error) {
			return consul.NewStore(&consul.Config{
				Context: ctx,
				Address: config.Endpoints[0],
			})
		}, nil
	case BackendZookeeper:
		return func(_ context.Context, config *Config) (kvstore.Store, error) {
			return zookeeper.NewStore(&zookeeper.Config{
				Servers: config.Endpoints,
				Logger:  config.Logger,
			})
		}, nil
	case BackendNats:
		return func(ctx context.Context, config *Config) (kvstore.Store, error) {
			return nats.NewStore(&nats.Config{
				Context: ctx,
				URL:     natsURL(config.Endpoints[0]),
			})
		}, nil
	case BackendRedis:
		return func(ctx context.Context, config *Config) (kvstore.Store, error) {
			return redis.NewStore(&redis.Config{
				Context:   ctx,
				Address:   config.Endpoints[0],
				Namespace: config.Namespace,
			})
		}, nil
	case BackendBolt:
		return func(_ context.Context, config *Config) (kvstore.Store, error) {
			return boltdb.NewStore(&boltdb.Config{Path: config.Path})
		}, nil
	case BackendMemory:
		return func(context.Context, *Config) (kvstore.Store, error) {
			return memory.NewStore(), nil
		}, nil
	default:
		return nil, gerrors.NewErrInvalidBackend(string(backend))
	}
}

// natsURL adds the nats scheme to a bare host:port endpoint
func natsURL(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "nats://" + endpoint
}
