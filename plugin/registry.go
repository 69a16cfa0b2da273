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

package plugin

import (
	"sort"
	"sync"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/log"
)

// Options carries what a plugin constructor needs
type Options struct {
	// NodeID identifies this node in the views
	NodeID string
	// Site is the deployment the node belongs to
	Site string
	// Logger is the logger handed to the plugin
	Logger log.Logger
	// Settings holds plugin specific key/value settings
	Settings map[string]string
}

// Setting returns the named setting or fallback when unset
func (o Options) Setting(name, fallback string) string {
	if value, ok := o.Settings[name]; ok && value != "" {
		return value
	}
	return fallback
}

// SyncFactory builds a SyncPlugin
type SyncFactory func(Options) (SyncPlugin, error)

// QueueFactory builds a QueuePlugin
type QueueFactory func(Options) (QueuePlugin, error)

// Registry maps plugin names to their constructors
type Registry struct {
	mu    sync.RWMutex
	sync  map[string]SyncFactory
	queue map[string]QueueFactory
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		sync:  make(map[string]SyncFactory),
		queue: make(map[string]QueueFactory),
	}
}

// RegisterSync adds a sync plugin constructor
func (r *Registry) RegisterSync(name string, factory SyncFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sync[name]; ok {
		return gerrors.NewErrPluginAlreadyRegistered(name)
	}
	r.sync[name] = factory
	return nil
}

// RegisterQueue adds a queue plugin constructor
func (r *Registry) RegisterQueue(name string, factory QueueFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queue[name]; ok {
		return gerrors.NewErrPluginAlreadyRegistered(name)
	}
	r.queue[name] = factory
	return nil
}

// SyncPlugins builds the named sync plugins in order
func (r *Registry) SyncPlugins(names []string, options Options) ([]SyncPlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]SyncPlugin, 0, len(names))
	for _, name := range names {
		factory, ok := r.sync[name]
		if !ok {
			return nil, gerrors.NewErrPluginNotRegistered(name)
		}
		plugin, err := factory(options)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, plugin)
	}
	return plugins, nil
}

// QueuePlugins builds the named queue plugins in order
func (r *Registry) QueuePlugins(names []string, options Options) ([]QueuePlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]QueuePlugin, 0, len(names))
	for _, name := range names {
		factory, ok := r.queue[name]
		if !ok {
			return nil, gerrors.NewErrPluginNotRegistered(name)
		}
		plugin, err := factory(options)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, plugin)
	}
	return plugins, nil
}

// SyncNames returns the registered sync plugin names, sorted
func (r *Registry) SyncNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sync))
	for name := range r.sync {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QueueNames returns the registered queue plugin names, sorted
func (r *Registry) QueueNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queue))
	for name := range r.queue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
