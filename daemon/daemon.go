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

// Package daemon runs the synchronizers of one node against a shared store.
//
// A Daemon owns the process wide resources: the logger, the store connection,
// the alarm scheduler and every synchronizer built from the configured
// plugins. A synchronizer whose loop dies hands its error to Fatal, the caller
// is then expected to Shutdown.
package daemon

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/clustermgr/alarm"
	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/internal/metric"
	"github.com/tochemey/clustermgr/kvstore"
	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/queue"
	"github.com/tochemey/clustermgr/synchronizer"
)

type worker interface {
	Key() string
	Start(ctx context.Context) error
	Terminate()
}

// Daemon drives the sync and queue plugins of a node
type Daemon struct {
	config       *Config
	storeFactory StoreFactory
	logger       log.Logger

	mu        sync.Mutex
	started   bool
	store     kvstore.Store
	scheduler *alarm.Scheduler
	syncs     map[string]*synchronizer.Synchronizer
	queues    map[string]*queue.Synchronizer
	workers   []worker
	fatal     chan error
}

// Option customizes a Daemon
type Option func(*Daemon)

// WithStoreFactory replaces OpenStore
func WithStoreFactory(factory StoreFactory) Option {
	return func(d *Daemon) {
		d.storeFactory = factory
	}
}

// New validates the configuration and returns a Daemon that is not started.
func New(config *Config, opts ...Option) (*Daemon, error) {
	if config == nil {
		return nil, fmt.Errorf("invalid daemon config: config is nil")
	}
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daemon config: %w", err)
	}

	d := &Daemon{
		config:       config,
		storeFactory: OpenStore,
		logger:       config.Logger.With("node", config.NodeID),
		syncs:        make(map[string]*synchronizer.Synchronizer),
		queues:       make(map[string]*queue.Synchronizer),
		fatal:        make(chan error, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start connects to the store, builds the plugins and starts one
// synchronizer per plugin. On failure everything already started is released.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return gerrors.ErrAlreadyStarted
	}

	store, err := d.storeFactory(ctx, d.config)
	if err != nil {
		return fmt.Errorf("failed to open the %s store: %w", d.config.Backend, err)
	}
	d.store = store

	d.scheduler = alarm.NewScheduler(d.logger)
	d.scheduler.Start(ctx)

	if err := d.build(); err != nil {
		return d.abort(ctx, err)
	}

	for _, w := range d.workers {
		if err := w.Start(ctx); err != nil {
			return d.abort(ctx, fmt.Errorf("failed to start %s: %w", w.Key(), err))
		}
	}

	d.started = true
	d.logger.Infof("daemon started with %d sync and %d queue plugins on %s",
		len(d.syncs), len(d.queues), d.config.Backend)
	return nil
}

func (d *Daemon) build() error {
	raiser := alarm.NewLogRaiser(d.logger)
	provider := metric.New()
	syncMetric, err := metric.NewSyncMetric(provider.Meter())
	if err != nil {
		return err
	}
	queueMetric, err := metric.NewQueueMetric(provider.Meter())
	if err != nil {
		return err
	}

	for _, name := range d.config.SyncPlugins {
		plugins, err := d.config.Registry.SyncPlugins([]string{name}, d.config.PluginOptions(name))
		if err != nil {
			return err
		}
		s, err := synchronizer.New(&synchronizer.Config{
			NodeID:        d.config.NodeID,
			Plugin:        plugins[0],
			Store:         d.store,
			Prefix:        d.config.Prefix,
			Site:          d.config.Site,
			SettleDelay:   d.config.SettleDelay,
			AlarmDelay:    d.config.AlarmDelay,
			WatchTimeout:  d.config.WatchTimeout,
			RetryInterval: d.config.RetryInterval,
			Logger:        d.logger,
			Metric:        syncMetric,
			Scheduler:     d.scheduler,
			Raiser:        raiser,
			OnFatal:       d.onFatal(name),
		})
		if err != nil {
			return err
		}
		d.syncs[name] = s
		d.workers = append(d.workers, s)
	}

	for _, name := range d.config.QueuePlugins {
		plugins, err := d.config.Registry.QueuePlugins([]string{name}, d.config.PluginOptions(name))
		if err != nil {
			return err
		}
		q, err := queue.New(&queue.Config{
			NodeID:        d.config.NodeID,
			Plugin:        plugins[0],
			Store:         d.store,
			Prefix:        d.config.Prefix,
			Site:          d.config.Site,
			WatchTimeout:  d.config.WatchTimeout,
			RetryInterval: d.config.RetryInterval,
			Logger:        d.logger,
			Metric:        queueMetric,
			Raiser:        raiser,
			OnFatal:       d.onFatal(name),
		})
		if err != nil {
			return err
		}
		d.queues[name] = q
		d.workers = append(d.workers, q)
	}
	return nil
}

// onFatal never blocks: the first fatal error wins and the rest are logged.
func (d *Daemon) onFatal(name string) func(error) {
	return func(err error) {
		err = fmt.Errorf("plugin %s failed: %w", name, err)
		select {
		case d.fatal <- err:
		default:
			d.logger.Error(err)
		}
	}
}

func (d *Daemon) abort(ctx context.Context, cause error) error {
	return multierr.Append(cause, d.release(ctx))
}

// release terminates the workers concurrently then frees the scheduler and the store.
func (d *Daemon) release(ctx context.Context) error {
	eg, _ := errgroup.WithContext(ctx)
	for _, w := range d.workers {
		eg.Go(func() error {
			w.Terminate()
			return nil
		})
	}
	err := eg.Wait()

	if d.scheduler != nil && d.scheduler.Started() {
		d.scheduler.Stop(ctx)
	}
	if d.store != nil {
		err = multierr.Append(err, d.store.Close())
	}

	d.workers = nil
	d.syncs = make(map[string]*synchronizer.Synchronizer)
	d.queues = make(map[string]*queue.Synchronizer)
	d.scheduler = nil
	d.store = nil
	return err
}

// Shutdown stops every synchronizer then releases the scheduler, the store and the logger.
// Calling Shutdown on a stopped daemon is a no-op.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.ShutdownTimeout)
	defer cancel()

	d.logger.Info("shutting down daemon")
	err := d.release(ctx)
	d.started = false

	if flusher, ok := d.config.Logger.(interface{ Flush() error }); ok {
		err = multierr.Append(err, flusher.Flush())
	}
	if err != nil {
		d.logger.Errorf("daemon shutdown: %v", err)
		return err
	}
	d.logger.Info("daemon stopped")
	return nil
}

// Fatal delivers the first error that killed a synchronizer loop
func (d *Daemon) Fatal() <-chan error {
	return d.fatal
}

// Running reports whether the daemon is started
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Store returns the store connection, nil when the daemon is not started
func (d *Daemon) Store() kvstore.Store {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store
}

// Synchronizer returns the synchronizer of the named sync plugin
func (d *Daemon) Synchronizer(name string) (*synchronizer.Synchronizer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.syncs[name]
	return s, ok
}

// Queue returns the synchronizer of the named queue plugin
func (d *Daemon) Queue(name string) (*queue.Synchronizer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[name]
	return q, ok
}

// LeaveCluster asks every sync plugin to leave the cluster
func (d *Daemon) LeaveCluster(ctx context.Context) error {
	d.mu.Lock()
	syncs := make([]*synchronizer.Synchronizer, 0, len(d.syncs))
	for _, s := range d.syncs {
		syncs = append(syncs, s)
	}
	d.mu.Unlock()

	var err error
	for _, s := range syncs {
		err = multierr.Append(err, s.LeaveCluster(ctx))
	}
	return err
}
