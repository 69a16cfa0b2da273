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
	"strings"
	"time"

	"github.com/tochemey/clustermgr/internal/validation"
	"github.com/tochemey/clustermgr/kvstore"
	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/plugin"
)

// Backend names a store implementation
type Backend string

const (
	BackendEtcd      Backend = "etcd"
	BackendConsul    Backend = "consul"
	BackendZookeeper Backend = "zookeeper"
	BackendNats      Backend = "nats"
	BackendRedis     Backend = "redis"
	BackendBolt      Backend = "bolt"
	BackendMemory    Backend = "memory"
)

// Backends lists the supported backends
var Backends = []Backend{BackendEtcd, BackendConsul, BackendZookeeper, BackendNats, BackendRedis, BackendBolt, BackendMemory}

const (
	defaultConnectRetries  = 5
	defaultConnectMaxDelay = 5 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Config defines the settings of a Daemon
type Config struct {
	// NodeID identifies this node in every view and queue. Required.
	NodeID string
	// Site scopes the keys of the deployment
	Site string
	// Prefix is the top level key. Defaults to kvstore.DefaultPrefix.
	Prefix string

	// Backend selects the store. Required.
	Backend Backend
	// Endpoints lists the store servers of the network backends. The consul,
	// nats and redis backends use the first one.
	Endpoints []string
	// Path is the database file of the bolt backend
	Path string
	// Namespace prefixes the etcd and redis keys
	Namespace string

	// SyncPlugins and QueuePlugins name the plugins to run
	SyncPlugins  []string
	QueuePlugins []string
	// PluginSettings holds the settings of each plugin by name
	PluginSettings map[string]map[string]string
	// Registry resolves the plugin names. Required.
	Registry *plugin.Registry

	// Synchronizer timings, zero means the synchronizer default
	SettleDelay   time.Duration
	AlarmDelay    time.Duration
	WatchTimeout  time.Duration
	RetryInterval time.Duration

	// ConnectRetries bounds the attempts to reach the store at start
	ConnectRetries int
	// ConnectMaxDelay caps the backoff between attempts
	ConnectMaxDelay time.Duration
	// ShutdownTimeout bounds Shutdown
	ShutdownTimeout time.Duration

	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	c.Backend = Backend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if c.Prefix == "" {
		c.Prefix = kvstore.DefaultPrefix
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = defaultConnectRetries
	}
	if c.ConnectMaxDelay <= 0 {
		c.ConnectMaxDelay = defaultConnectMaxDelay
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger
	}
	if c.PluginSettings == nil {
		c.PluginSettings = make(map[string]map[string]string)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	allowed := make([]string, 0, len(Backends))
	for _, backend := range Backends {
		allowed = append(allowed, string(backend))
	}

	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewNodeIDValidator(c.NodeID)).
		AddValidator(validation.NewOneOfValidator("backend", string(c.Backend), allowed...)).
		AddAssertion(c.Registry != nil, "the [registry] is required").
		AddAssertion(len(c.SyncPlugins)+len(c.QueuePlugins) > 0, "at least one plugin is required")
	switch c.Backend {
	case BackendEtcd, BackendConsul, BackendZookeeper, BackendNats, BackendRedis:
		chain.AddValidator(validation.NewEndpointsValidator(c.Endpoints))
	case BackendBolt:
		chain.AddValidator(validation.NewEmptyStringValidator("path", c.Path))
	}
	return chain.Validate()
}

// PluginOptions returns the options handed to the named plugin
func (c *Config) PluginOptions(name string) plugin.Options {
	return plugin.Options{
		NodeID:   c.NodeID,
		Site:     c.Site,
		Logger:   c.Logger,
		Settings: c.PluginSettings[name],
	}
}
