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

// Package synchronizer runs the membership state machine of one node for one
// replicated resource. Every node watches the shared view, computes the
// cluster state, decides its own next step and writes it back with an
// optimistic compare-and-swap.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/clustermgr/alarm"
	"github.com/tochemey/clustermgr/cluster"
	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/internal/metric"
	"github.com/tochemey/clustermgr/kvstore"
	"github.com/tochemey/clustermgr/log"
)

// Synchronizer keeps one node of one resource in step with the shared view
type Synchronizer struct {
	config *Config
	logger log.Logger
	metric *metric.SyncMetric
	fsm    *FSM

	scheduler    *alarm.Scheduler
	ownScheduler bool

	started        *atomic.Bool
	leaving        *atomic.Bool
	leaveRequested *atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Synchronizer
func New(config *Config) (*Synchronizer, error) {
	if config == nil {
		return nil, configErr(errors.New("config is nil"))
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, configErr(err)
	}

	syncMetric := config.Metric
	if syncMetric == nil {
		var err error
		if syncMetric, err = metric.NewSyncMetric(metric.New().Meter()); err != nil {
			return nil, err
		}
	}

	logger := config.Logger.With("plugin", config.Plugin.Key(), "node", config.NodeID)
	scheduler := config.Scheduler
	ownScheduler := scheduler == nil
	if ownScheduler {
		scheduler = alarm.NewScheduler(logger)
	}

	clusteringAlarm := alarm.NewDelayed(scheduler, config.Raiser, ClusteringAlarm, config.AlarmDelay)
	return &Synchronizer{
		config:         config,
		logger:         logger,
		metric:         syncMetric,
		fsm:            NewFSM(config.NodeID, config.Plugin, config.SettleDelay, clusteringAlarm, syncMetric, logger),
		scheduler:      scheduler,
		ownScheduler:   ownScheduler,
		started:        atomic.NewBool(false),
		leaving:        atomic.NewBool(false),
		leaveRequested: atomic.NewBool(false),
		done:           make(chan struct{}),
	}, nil
}

// Key returns the key of the view
func (s *Synchronizer) Key() string {
	return s.config.Key
}

// Done is closed once the loop exited, either after Terminate or once the
// node removed itself from the view.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

// Start runs the loop on its own goroutine
func (s *Synchronizer) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return gerrors.ErrAlreadyStarted
	}

	if s.ownScheduler {
		s.scheduler.Start(ctx)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Infof("starting synchronizer on key=(%s)", s.config.Key)
	go s.run(loopCtx)
	return nil
}

// Terminate stops the loop and waits for it to exit. Terminate is idempotent.
func (s *Synchronizer) Terminate() {
	if !s.started.Load() {
		return
	}

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	cancel()
	<-s.done

	if s.ownScheduler {
		s.scheduler.Stop(context.Background())
	}
}

// LeaveCluster asks for this node to leave the cluster. When the cluster is
// stable the request is written right away, otherwise the loop writes it as
// soon as the cluster becomes stable. A node asked to leave never joins again.
func (s *Synchronizer) LeaveCluster(ctx context.Context) error {
	if !s.started.Load() {
		return gerrors.ErrNotStarted
	}
	if !s.leaving.CompareAndSwap(false, true) {
		return gerrors.ErrAlreadyLeaving
	}

	written, err := s.requestLeave(ctx)
	if ctx.Err() != nil {
		s.leaveRequested.Store(true)
		return ctx.Err()
	}
	if err != nil {
		s.logger.Debugf("leave request deferred to the loop: %v", err)
	}
	if !written {
		s.leaveRequested.Store(true)
		return nil
	}

	s.logger.Infof("node is waiting to leave, key=(%s)", s.config.Key)
	return nil
}

func (s *Synchronizer) requestLeave(ctx context.Context) (bool, error) {
	doc, err := s.config.Store.Get(ctx, s.config.Key)
	if err != nil {
		return false, err
	}

	view, err := cluster.DecodeView(doc.Value)
	if err != nil {
		return false, err
	}

	if cluster.CalculateState(view) != cluster.Stable || view.StateOf(s.config.NodeID) != cluster.Normal {
		return false, nil
	}

	if err := s.write(ctx, view.With(s.config.NodeID, cluster.WaitingToLeave), doc.Version); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.done)
	defer s.fsm.Quit()
	defer func() {
		if r := recover(); r != nil {
			err := gerrors.NewPanicError(r, debug.Stack())
			s.logger.Errorf("synchronizer loop panicked: %v\n%s", err, err.Stack())
			s.config.OnFatal(err)
		}
	}()

	var cursor uint64
	fresh := true
	for ctx.Err() == nil {
		doc, err := s.read(ctx, fresh, cursor)
		switch {
		case errors.Is(err, gerrors.ErrWatchTimeout):
			continue
		case errors.Is(err, gerrors.ErrKeyNotFound):
			doc = &kvstore.Document{Key: s.config.Key}
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			s.failed(ctx, "read", err)
			fresh = true
			continue
		}

		fresh = false
		cursor = doc.Version
		// a deleted key is recreated from scratch
		version := doc.Version
		if !doc.Exists() {
			version = 0
		}

		view, err := cluster.DecodeView(doc.Value)
		if err != nil {
			s.logger.Warnf("view is malformed, starting from an empty one: %v", err)
		}

		finished, err := s.step(ctx, view, version)
		if finished {
			s.logger.Infof("node left the cluster, key=(%s)", s.config.Key)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.failed(ctx, "write", err)
			fresh = true
		}
	}
}

// read loads the view. The first read and the reads following a failure are
// plain reads; the others wait for a version newer than cursor.
func (s *Synchronizer) read(ctx context.Context, fresh bool, cursor uint64) (*kvstore.Document, error) {
	if fresh {
		return s.config.Store.Get(ctx, s.config.Key)
	}
	return s.config.Store.Watch(ctx, s.config.Key, cursor, s.config.WatchTimeout)
}

// step runs one decision on the view read at version. It returns true once
// this node removed itself.
func (s *Synchronizer) step(ctx context.Context, view cluster.View, version uint64) (bool, error) {
	local := view.StateOf(s.config.NodeID)
	state := cluster.CalculateState(view)
	s.logger.Debugf("observed node=(%s) cluster=(%s) view=%s", local, state, view)

	var outcome Outcome
	switch {
	case s.leaving.Load() && local == cluster.NotInCluster:
		// never join again once asked to leave
		return true, nil
	case s.leaveRequested.Load() && local.InLeaveWing():
		s.leaveRequested.Store(false)
		outcome = s.fsm.Next(ctx, local, state, view)
	case s.leaveRequested.Load() && state == cluster.Stable && local == cluster.Normal:
		outcome = setLocal(cluster.WaitingToLeave)
	default:
		outcome = s.fsm.Next(ctx, local, state, view)
	}

	next, changed := outcome.Apply(view, s.config.NodeID)
	if !changed {
		return outcome.Kind == Remove, nil
	}

	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	err := s.write(ctx, next, version)
	switch {
	case kvstore.IsConflict(err):
		s.logger.Debugf("view changed under us at version=(%d), reading again", version)
		s.metric.RecordConflict(ctx, s.config.Plugin.Key())
		return false, nil
	case err != nil:
		return false, err
	}

	s.metric.RecordTransition(ctx, s.config.Plugin.Key(), outcome.localState(local, s.config.NodeID).String())
	return outcome.Kind == Remove, nil
}

func (s *Synchronizer) write(ctx context.Context, view cluster.View, version uint64) error {
	raw, err := view.Encode()
	if err != nil {
		return err
	}
	_, err = kvstore.Write(ctx, s.config.Store, s.config.Key, raw, version)
	return err
}

// failed logs a store failure and pauses before the next attempt
func (s *Synchronizer) failed(ctx context.Context, op string, err error) {
	if kvstore.IsTransient(err) {
		s.metric.RecordStoreError(ctx, s.config.Plugin.Key())
		s.logger.Warnf("failed to %s the view, retrying in %s: %v", op, s.config.RetryInterval, err)
	} else {
		s.logger.Errorf("failed to %s the view, retrying in %s: %v", op, s.config.RetryInterval, err)
	}
	pause(ctx, s.config.RetryInterval)
}

func pause(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// String implements fmt.Stringer
func (s *Synchronizer) String() string {
	return fmt.Sprintf("synchronizer(plugin=%s, node=%s)", s.config.Plugin.Key(), s.config.NodeID)
}
