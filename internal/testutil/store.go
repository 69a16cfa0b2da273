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

package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/kvstore"
)

// StoreConformance runs the behaviour every kvstore backend must honour
// against the given store. keyPrefix keeps the keys of concurrent runs apart.
func StoreConformance(t *testing.T, store kvstore.Store, keyPrefix string) {
	t.Helper()
	ctx := context.Background()

	t.Run("get on missing key", func(t *testing.T) {
		_, err := store.Get(ctx, keyPrefix+"/missing")
		require.ErrorIs(t, err, gerrors.ErrKeyNotFound)
	})

	t.Run("create then create again", func(t *testing.T) {
		key := keyPrefix + "/create"
		version, err := store.Create(ctx, key, []byte(`{"10.0.0.1":"normal"}`))
		require.NoError(t, err)
		assert.Positive(t, version)

		_, err = store.Create(ctx, key, []byte(`{}`))
		require.ErrorIs(t, err, gerrors.ErrKeyExists)

		doc, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"10.0.0.1":"normal"}`, string(doc.Value))
		assert.Equal(t, version, doc.Version)
	})

	t.Run("compare and swap round trip", func(t *testing.T) {
		key := keyPrefix + "/cas"
		v0, err := store.Create(ctx, key, []byte(`{}`))
		require.NoError(t, err)

		v1, err := store.CompareAndSwap(ctx, key, []byte(`{"10.0.0.1":"normal"}`), v0)
		require.NoError(t, err)
		assert.Greater(t, v1, v0)

		doc, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"10.0.0.1":"normal"}`, string(doc.Value))
		assert.Equal(t, v1, doc.Version)

		// a second writer still holding v0 is rejected
		_, err = store.CompareAndSwap(ctx, key, []byte(`{"10.0.0.2":"normal"}`), v0)
		require.ErrorIs(t, err, gerrors.ErrVersionConflict)

		doc, err = store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"10.0.0.1":"normal"}`, string(doc.Value))
	})

	t.Run("compare and swap on missing key", func(t *testing.T) {
		_, err := store.CompareAndSwap(ctx, keyPrefix+"/absent", []byte(`{}`), 42)
		require.ErrorIs(t, err, gerrors.ErrVersionConflict)
	})

	t.Run("watch returns at once when already newer", func(t *testing.T) {
		key := keyPrefix + "/watch-newer"
		version, err := store.Create(ctx, key, []byte(`{}`))
		require.NoError(t, err)

		doc, err := store.Watch(ctx, key, version-1, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, version, doc.Version)
	})

	t.Run("watch observes a later write", func(t *testing.T) {
		key := keyPrefix + "/watch-later"
		version, err := store.Create(ctx, key, []byte(`{}`))
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			watched *kvstore.Document
			werr    error
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			watched, werr = store.Watch(ctx, key, version, 10*time.Second)
		}()

		time.Sleep(200 * time.Millisecond)
		next, err := store.CompareAndSwap(ctx, key, []byte(`{"10.0.0.3":"waiting to join"}`), version)
		require.NoError(t, err)

		wg.Wait()
		require.NoError(t, werr)
		require.NotNil(t, watched)
		assert.Equal(t, next, watched.Version)
		assert.Equal(t, `{"10.0.0.3":"waiting to join"}`, string(watched.Value))
	})

	t.Run("watch times out", func(t *testing.T) {
		key := keyPrefix + "/watch-timeout"
		version, err := store.Create(ctx, key, []byte(`{}`))
		require.NoError(t, err)

		_, err = store.Watch(ctx, key, version, 300*time.Millisecond)
		require.ErrorIs(t, err, gerrors.ErrWatchTimeout)
	})

	t.Run("watch honours cancellation", func(t *testing.T) {
		key := keyPrefix + "/watch-cancel"
		version, err := store.Create(ctx, key, []byte(`{}`))
		require.NoError(t, err)

		cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err = store.Watch(cctx, key, version, time.Minute)
		require.Error(t, err)
	})
}

// FlakyStore wraps a Store and fails every n-th call with a transient error.
// It simulates an unreliable backend in convergence tests.
type FlakyStore struct {
	kvstore.Store
	every    int64
	calls    *atomic.Int64
	failures *atomic.Int64
}

var _ kvstore.Store = (*FlakyStore)(nil)

// NewFlakyStore creates a FlakyStore failing one call out of every
func NewFlakyStore(store kvstore.Store, every int) *FlakyStore {
	return &FlakyStore{
		Store:    store,
		every:    int64(every),
		calls:    atomic.NewInt64(0),
		failures: atomic.NewInt64(0),
	}
}

// Failures returns the number of injected failures
func (f *FlakyStore) Failures() int64 {
	return f.failures.Load()
}

func (f *FlakyStore) fail(op string) error {
	if f.every <= 0 || f.calls.Inc()%f.every != 0 {
		return nil
	}
	f.failures.Inc()
	return gerrors.NewErrStoreUnavailable(fmt.Errorf("injected %s failure", op))
}

// Get implements kvstore.Store
func (f *FlakyStore) Get(ctx context.Context, key string) (*kvstore.Document, error) {
	if err := f.fail("get"); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, key)
}

// Watch implements kvstore.Store
func (f *FlakyStore) Watch(ctx context.Context, key string, since uint64, timeout time.Duration) (*kvstore.Document, error) {
	if err := f.fail("watch"); err != nil {
		return nil, err
	}
	return f.Store.Watch(ctx, key, since, timeout)
}

// CompareAndSwap implements kvstore.Store
func (f *FlakyStore) CompareAndSwap(ctx context.Context, key string, value []byte, version uint64) (uint64, error) {
	if err := f.fail("compare-and-swap"); err != nil {
		return 0, err
	}
	return f.Store.CompareAndSwap(ctx, key, value, version)
}

// Create implements kvstore.Store
func (f *FlakyStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := f.fail("create"); err != nil {
		return 0, err
	}
	return f.Store.Create(ctx, key, value)
}
