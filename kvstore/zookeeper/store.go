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

// Package zookeeper implements kvstore.Store on a ZooKeeper ensemble.
//
// Keys map to znode paths. The document version is the znode Mzxid, which
// grows with every write across the ensemble. Compare-and-swap reads the
// stat and issues a Set guarded by the znode data version, so a concurrent
// writer makes the Set fail with zk.ErrBadVersion.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/samuel/go-zookeeper/zk"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/kvstore"
	"github.com/tochemey/clustermgr/log"
)

// Store is a ZooKeeper-backed kvstore.Store
type Store struct {
	config *Config
	conn   *zk.Conn
}

var _ kvstore.Store = (*Store)(nil)

// NewStore connects to the ensemble and waits for a session.
func NewStore(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("kvstore/zookeeper: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, events, err := zk.Connect(config.Servers, config.SessionTimeout, zk.WithLogger(&zkLogger{config.Logger}))
	if err != nil {
		return nil, gerrors.NewErrStoreUnavailable(err)
	}

	timer := time.NewTimer(config.ConnectTimeout)
	defer timer.Stop()
	for {
		select {
		case event := <-events:
			if event.State == zk.StateHasSession {
				return &Store{config: config, conn: conn}, nil
			}
		case <-timer.C:
			conn.Close()
			return nil, gerrors.NewErrStoreUnavailable(fmt.Errorf("no zookeeper session after %s", config.ConnectTimeout))
		}
	}
}

// Get implements kvstore.Store
func (s *Store) Get(ctx context.Context, key string) (*kvstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, stat, err := s.conn.Get(znodePath(key))
	if err != nil {
		if errors.Is(err, zk.ErrNoNode) {
			return nil, gerrors.ErrKeyNotFound
		}
		return nil, classify(err)
	}
	return toDocument(key, data, stat), nil
}

// Watch implements kvstore.Store
//
// ZooKeeper watches are one shot, so every trigger re-reads the znode. The
// removal of a known znode is detected through the parent Pzxid.
func (s *Store) Watch(ctx context.Context, key string, sinceVersion uint64, timeout time.Duration) (*kvstore.Document, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	zpath := znodePath(key)
	for {
		data, stat, trigger, err := s.conn.GetW(zpath)
		switch {
		case err == nil:
			if uint64(stat.Mzxid) > sinceVersion {
				return toDocument(key, data, stat), nil
			}
		case errors.Is(err, zk.ErrNoNode):
			var exists bool
			exists, _, trigger, err = s.conn.ExistsW(zpath)
			if err != nil {
				return nil, classify(err)
			}
			if exists {
				continue
			}
			if sinceVersion > 0 {
				_, parent, perr := s.conn.Get(path.Dir(zpath))
				if perr == nil && uint64(parent.Pzxid) > sinceVersion {
					return &kvstore.Document{Key: key, Version: uint64(parent.Pzxid)}, nil
				}
			}
		default:
			return nil, classify(err)
		}

		select {
		case event := <-trigger:
			if event.Err != nil {
				return nil, classify(event.Err)
			}
		case <-timer.C:
			return nil, gerrors.ErrWatchTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// CompareAndSwap implements kvstore.Store
func (s *Store) CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	zpath := znodePath(key)
	exists, stat, err := s.conn.Exists(zpath)
	if err != nil {
		return 0, classify(err)
	}
	if !exists || uint64(stat.Mzxid) != expectedVersion {
		return 0, gerrors.ErrVersionConflict
	}

	updated, err := s.conn.Set(zpath, value, stat.Version)
	if err != nil {
		if errors.Is(err, zk.ErrBadVersion) || errors.Is(err, zk.ErrNoNode) {
			return 0, gerrors.ErrVersionConflict
		}
		return 0, classify(err)
	}
	return uint64(updated.Mzxid), nil
}

// Create implements kvstore.Store
func (s *Store) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	zpath := znodePath(key)
	if err := s.createParents(zpath); err != nil {
		return 0, err
	}

	if _, err := s.conn.Create(zpath, value, 0, zk.WorldACL(zk.PermAll)); err != nil {
		if errors.Is(err, zk.ErrNodeExists) {
			return 0, gerrors.ErrKeyExists
		}
		return 0, classify(err)
	}

	_, stat, err := s.conn.Exists(zpath)
	if err != nil {
		return 0, classify(err)
	}
	return uint64(stat.Mzxid), nil
}

// Close ends the ZooKeeper session
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}

// createParents creates every missing ancestor of zpath with empty data
func (s *Store) createParents(zpath string) error {
	for _, parent := range ancestors(zpath) {
		exists, _, err := s.conn.Exists(parent)
		if err != nil {
			return classify(err)
		}
		if exists {
			continue
		}
		if _, err = s.conn.Create(parent, nil, 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return classify(err)
		}
	}
	return nil
}

// ancestors returns the parent paths of zpath from the root down, root excluded
func ancestors(zpath string) []string {
	parts := strings.Split(strings.Trim(zpath, "/"), "/")
	result := make([]string, 0, len(parts))
	for i := 1; i < len(parts); i++ {
		result = append(result, "/"+strings.Join(parts[:i], "/"))
	}
	return result
}

// znodePath keeps the leading slash ZooKeeper requires
func znodePath(key string) string {
	return "/" + strings.Trim(key, "/")
}

func classify(err error) error {
	return gerrors.NewErrStoreUnavailable(err)
}

func toDocument(key string, data []byte, stat *zk.Stat) *kvstore.Document {
	if data == nil {
		data = []byte{}
	}
	return &kvstore.Document{Key: key, Value: data, Version: uint64(stat.Mzxid)}
}

// zkLogger routes the client library output to the configured logger
type zkLogger struct {
	logger log.Logger
}

func (l *zkLogger) Printf(format string, args ...any) {
	l.logger.Debugf(format, args...)
}
