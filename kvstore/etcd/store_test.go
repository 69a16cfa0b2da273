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

package etcd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testcontainer "github.com/testcontainers/testcontainers-go/modules/etcd"
	clientv3 "go.etcd.io/etcd/client/v3"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/internal/testutil"
)

var etcdEndpoints []string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := testcontainer.Run(ctx, "gcr.io/etcd-development/etcd:v3.5.14")
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	endpoints, err := container.ClientEndpoints(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		_ = testcontainers.TerminateContainer(container)
		os.Exit(1)
	}
	etcdEndpoints = endpoints

	code := m.Run()
	_ = testcontainers.TerminateContainer(container)
	os.Exit(code)
}

func newTestStore(t *testing.T, ns string) *Store {
	t.Helper()
	store, err := NewStore(&Config{
		Endpoints: etcdEndpoints,
		Namespace: ns,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStore(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		store, err := NewStore(nil)
		require.Error(t, err)
		require.Nil(t, store)
	})

	t.Run("invalid config", func(t *testing.T) {
		store, err := NewStore(&Config{})
		require.Error(t, err)
		require.Nil(t, store)
	})

	t.Run("client creation failure", func(t *testing.T) {
		store, err := newStore(&Config{Endpoints: etcdEndpoints}, func(clientv3.Config) (*clientv3.Client, error) {
			return nil, errors.New("dial failure")
		})
		require.ErrorIs(t, err, gerrors.ErrStoreUnavailable)
		require.Nil(t, store)
	})

	t.Run("defaults", func(t *testing.T) {
		config := &Config{Endpoints: etcdEndpoints, Namespace: " "}
		store, err := NewStore(config)
		require.NoError(t, err)
		assert.Equal(t, defaultNamespace, config.Namespace)
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())
	})
}

func TestStore(t *testing.T) {
	store := newTestStore(t, "conformance")
	testutil.StoreConformance(t, store, "/clustermgr/dc1")
}

func TestWatchDeletedKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "delete")

	version, err := store.Create(ctx, "/view", []byte(`{}`))
	require.NoError(t, err)

	_, err = store.kv.Delete(ctx, "/view")
	require.NoError(t, err)

	doc, err := store.Watch(ctx, "/view", version, 5*time.Second)
	require.NoError(t, err)
	assert.Nil(t, doc.Value)
	assert.Greater(t, doc.Version, version)
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	first := newTestStore(t, "site-a")
	second := newTestStore(t, "site-b")

	_, err := first.Create(ctx, "/view", []byte(`{"10.0.0.1":"normal"}`))
	require.NoError(t, err)

	_, err = second.Get(ctx, "/view")
	require.ErrorIs(t, err, gerrors.ErrKeyNotFound)
}

func TestConfig(t *testing.T) {
	config := &Config{}
	config.Sanitize()
	require.NotNil(t, config.Context)
	assert.Equal(t, defaultNamespace, config.Namespace)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 5*time.Second, config.Timeout)
	require.Error(t, config.Validate())

	config.Endpoints = []string{"http://127.0.0.1:2379"}
	require.NoError(t, config.Validate())
	assert.Equal(t, "clustermgr/", normalizeNamespace(config.Namespace))
	assert.Equal(t, "x/", normalizeNamespace("x/"))
}
