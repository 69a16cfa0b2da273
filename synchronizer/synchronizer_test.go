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

package synchronizer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/clustermgr/cluster"
	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/internal/testutil"
	"github.com/tochemey/clustermgr/kvstore"
	"github.com/tochemey/clustermgr/kvstore/memory"
	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/plugin"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const viewKey = "/clustermgr/test/clustering/memcached"

func newTestSynchronizer(t *testing.T, store kvstore.Store, nodeID string, syncPlugin plugin.SyncPlugin) *Synchronizer {
	t.Helper()
	synchronizer, err := New(&Config{
		NodeID:        nodeID,
		Plugin:        syncPlugin,
		Store:         store,
		Key:           viewKey,
		SettleDelay:   50 * time.Millisecond,
		WatchTimeout:  200 * time.Millisecond,
		RetryInterval: 20 * time.Millisecond,
		Logger:        log.DiscardLogger,
	})
	require.NoError(t, err)
	return synchronizer
}

func readView(t *testing.T, store kvstore.Store) cluster.View {
	t.Helper()
	doc, err := store.Get(context.Background(), viewKey)
	if err != nil {
		return cluster.View{}
	}
	view, _ := cluster.DecodeView(doc.Value)
	return view
}

func allNormal(nodes ...string) cluster.View {
	view := make(cluster.View, len(nodes))
	for _, node := range nodes {
		view[node] = cluster.Normal
	}
	return view
}

func nodeIDs(count int) []string {
	nodes := make([]string, count)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("10.0.0.%d", i+1)
	}
	return nodes
}

func startNodes(t *testing.T, store kvstore.Store, nodes []string) []*Synchronizer {
	t.Helper()
	synchronizers := make([]*Synchronizer, 0, len(nodes))
	for _, node := range nodes {
		synchronizer := newTestSynchronizer(t, store, node, newScriptedPlugin("memcached"))
		require.NoError(t, synchronizer.Start(context.Background()))
		synchronizers = append(synchronizers, synchronizer)
	}
	t.Cleanup(func() {
		for _, synchronizer := range synchronizers {
			synchronizer.Terminate()
		}
	})
	return synchronizers
}

func TestConvergence(t *testing.T) {
	t.Run("three nodes join", func(t *testing.T) {
		store := memory.NewStore()
		defer store.Close()

		nodes := nodeIDs(3)
		startNodes(t, store, nodes)

		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(allNormal(nodes...), readView(t, store))
		}, 10*time.Second, 20*time.Millisecond)
	})

	t.Run("three nodes join over a flaky store", func(t *testing.T) {
		backend := memory.NewStore()
		defer backend.Close()
		store := testutil.NewFlakyStore(backend, 7)

		nodes := nodeIDs(3)
		startNodes(t, store, nodes)

		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(allNormal(nodes...), readView(t, backend))
		}, 20*time.Second, 20*time.Millisecond)
		assert.Positive(t, store.Failures())
	})

	t.Run("nodes join one after the other", func(t *testing.T) {
		store := memory.NewStore()
		defer store.Close()

		nodes := nodeIDs(3)
		for i := range nodes {
			startNodes(t, store, nodes[i:i+1])
			require.Eventually(t, func() bool {
				return assert.ObjectsAreEqual(allNormal(nodes[:i+1]...), readView(t, store))
			}, 10*time.Second, 20*time.Millisecond)
		}
	})
}

func TestLeaveCluster(t *testing.T) {
	t.Run("two of four nodes leave", func(t *testing.T) {
		store := memory.NewStore()
		defer store.Close()

		nodes := nodeIDs(4)
		synchronizers := startNodes(t, store, nodes)
		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(allNormal(nodes...), readView(t, store))
		}, 10*time.Second, 20*time.Millisecond)

		ctx := context.Background()
		require.NoError(t, synchronizers[2].LeaveCluster(ctx))
		require.NoError(t, synchronizers[3].LeaveCluster(ctx))

		for _, leaver := range synchronizers[2:] {
			select {
			case <-leaver.Done():
			case <-time.After(20 * time.Second):
				t.Fatalf("%s did not leave, view=%s", leaver, readView(t, store))
			}
		}

		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(allNormal(nodes[:2]...), readView(t, store))
		}, 10*time.Second, 20*time.Millisecond)
	})

	t.Run("fast path writes waiting to leave", func(t *testing.T) {
		store := memory.NewStore()
		defer store.Close()

		nodes := nodeIDs(1)
		synchronizer := newTestSynchronizer(t, store, nodes[0], newScriptedPlugin("memcached"))
		_, err := store.Create(context.Background(), viewKey, []byte(`{"10.0.0.1":"normal","10.0.0.9":"normal"}`))
		require.NoError(t, err)

		require.NoError(t, synchronizer.Start(context.Background()))
		defer synchronizer.Terminate()

		require.NoError(t, synchronizer.LeaveCluster(context.Background()))
		require.ErrorIs(t, synchronizer.LeaveCluster(context.Background()), gerrors.ErrAlreadyLeaving)
		assert.False(t, synchronizer.leaveRequested.Load())
	})

	t.Run("leave requested while joining", func(t *testing.T) {
		store := memory.NewStore()
		defer store.Close()

		startNodes(t, store, []string{"10.0.0.9"})
		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(allNormal("10.0.0.9"), readView(t, store))
		}, 5*time.Second, 20*time.Millisecond)

		joiner := startNodes(t, store, []string{"10.0.0.1"})[0]
		require.NoError(t, joiner.LeaveCluster(context.Background()))

		select {
		case <-joiner.Done():
		case <-time.After(10 * time.Second):
			t.Fatalf("joiner did not stop, view=%s", readView(t, store))
		}
		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(allNormal("10.0.0.9"), readView(t, store))
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("requires a started synchronizer", func(t *testing.T) {
		synchronizer := newTestSynchronizer(t, memory.NewStore(), "10.0.0.1", newScriptedPlugin("memcached"))
		require.ErrorIs(t, synchronizer.LeaveCluster(context.Background()), gerrors.ErrNotStarted)
	})
}

func TestSynchronizerLifecycle(t *testing.T) {
	t.Run("start twice", func(t *testing.T) {
		store := memory.NewStore()
		defer store.Close()
		synchronizer := newTestSynchronizer(t, store, "10.0.0.1", newScriptedPlugin("memcached"))
		require.NoError(t, synchronizer.Start(context.Background()))
		require.ErrorIs(t, synchronizer.Start(context.Background()), gerrors.ErrAlreadyStarted)
		synchronizer.Terminate()
		synchronizer.Terminate()

		select {
		case <-synchronizer.Done():
		default:
			t.Fatal("done is not closed")
		}
	})

	t.Run("terminate without start", func(t *testing.T) {
		synchronizer := newTestSynchronizer(t, memory.NewStore(), "10.0.0.1", newScriptedPlugin("memcached"))
		synchronizer.Terminate()
	})

	t.Run("recreates a deleted view", func(t *testing.T) {
		store := memory.NewStore()
		defer store.Close()
		startNodes(t, store, nodeIDs(1))
		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(allNormal("10.0.0.1"), readView(t, store))
		}, 5*time.Second, 20*time.Millisecond)

		require.NoError(t, store.Delete(context.Background(), viewKey))
		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(allNormal("10.0.0.1"), readView(t, store))
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("overwrites a malformed view", func(t *testing.T) {
		store := memory.NewStore()
		defer store.Close()
		_, err := store.Create(context.Background(), viewKey, []byte("not json"))
		require.NoError(t, err)

		startNodes(t, store, nodeIDs(1))
		require.Eventually(t, func() bool {
			return assert.ObjectsAreEqual(allNormal("10.0.0.1"), readView(t, store))
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("panics are escalated", func(t *testing.T) {
		store := memory.NewStore()
		defer store.Close()

		fatal := make(chan error, 1)
		synchronizer, err := New(&Config{
			NodeID:       "10.0.0.1",
			Plugin:       newScriptedPlugin("memcached"),
			Store:        store,
			Key:          viewKey,
			WatchTimeout: 100 * time.Millisecond,
			Logger:       log.DiscardLogger,
			OnFatal:      func(err error) { fatal <- err },
		})
		require.NoError(t, err)
		// a stopped FSM panics on use
		synchronizer.fsm.Quit()
		require.NoError(t, synchronizer.Start(context.Background()))
		defer synchronizer.Terminate()

		select {
		case err := <-fatal:
			var panicErr *gerrors.PanicError
			require.ErrorAs(t, err, &panicErr)
			assert.NotEmpty(t, panicErr.Stack())
		case <-time.After(5 * time.Second):
			t.Fatal("OnFatal was not called")
		}
		<-synchronizer.Done()
	})
}

func TestConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config := &Config{NodeID: "10.0.0.1", Plugin: newScriptedPlugin("memcached"), Store: memory.NewStore(), Site: "dc1"}
		config.Sanitize()
		require.NoError(t, config.Validate())
		assert.Equal(t, "/clustermgr/dc1/clustering/memcached", config.Key)
		assert.Equal(t, DefaultSettleDelay, config.SettleDelay)
		assert.Equal(t, DefaultAlarmDelay, config.AlarmDelay)
		assert.Equal(t, DefaultWatchTimeout, config.WatchTimeout)
		assert.Equal(t, DefaultRetryInterval, config.RetryInterval)
		assert.NotNil(t, config.Logger)
		assert.NotNil(t, config.Raiser)
		assert.NotNil(t, config.OnFatal)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := New(&Config{NodeID: "not a node id"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid synchronizer config")
		assert.Contains(t, err.Error(), "the [plugin] is required")
		assert.Contains(t, err.Error(), "the [store] is required")

		_, err = New(nil)
		require.Error(t, err)
	})

	t.Run("key", func(t *testing.T) {
		synchronizer := newTestSynchronizer(t, memory.NewStore(), "10.0.0.1", newScriptedPlugin("memcached"))
		assert.Equal(t, viewKey, synchronizer.Key())
		assert.Equal(t, "synchronizer(plugin=memcached, node=10.0.0.1)", synchronizer.String())
	})
}
