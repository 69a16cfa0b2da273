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

package consul

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/consul"

	"github.com/tochemey/clustermgr/internal/testutil"
)

func startConsulAgent(t *testing.T) *consul.ConsulContainer {
	t.Helper()
	container, err := consul.Run(t.Context(), "hashicorp/consul:1.15")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})
	return container
}

func TestStore(t *testing.T) {
	agent := startConsulAgent(t)
	endpoint, err := agent.ApiEndpoint(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, endpoint)

	store, err := NewStore(&Config{Address: endpoint})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	testutil.StoreConformance(t, store, "/clustermgr/dc1")

	t.Run("deleted key is reported", func(t *testing.T) {
		ctx := context.Background()
		version, err := store.Create(ctx, "/clustermgr/dc1/clustering/deleted", []byte(`{}`))
		require.NoError(t, err)

		_, err = store.kv.Delete("clustermgr/dc1/clustering/deleted", nil)
		require.NoError(t, err)

		doc, err := store.Watch(ctx, "/clustermgr/dc1/clustering/deleted", version, 5*time.Second)
		require.NoError(t, err)
		assert.Nil(t, doc.Value)
		assert.Greater(t, doc.Version, version)
	})
}

func TestNewStore(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		store, err := NewStore(nil)
		require.Error(t, err)
		require.Nil(t, store)
	})

	t.Run("invalid address", func(t *testing.T) {
		store, err := NewStore(&Config{Address: "not an address"})
		require.Error(t, err)
		require.Nil(t, store)
	})
}

func TestConfig(t *testing.T) {
	config := &Config{}
	config.Sanitize()
	require.NotNil(t, config.Context)
	assert.Equal(t, "127.0.0.1:8500", config.Address)
	assert.Equal(t, 10*time.Second, config.Timeout)
	require.NoError(t, config.Validate())

	config.Address = "http://localhost:8500"
	require.NoError(t, config.Validate())
}

func TestConsulKey(t *testing.T) {
	assert.Equal(t, "clustermgr/dc1/clustering/memcached", consulKey("/clustermgr/dc1/clustering/memcached"))
	assert.Equal(t, "already/relative", consulKey("already/relative"))
}
