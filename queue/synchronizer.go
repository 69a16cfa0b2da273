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

// Package queue serializes disruptive node operations across a fleet with a
// shared first-in first-out queue. The node at the front of the queue runs
// its operation and removes itself. Every node watches the front and evicts
// it when it does not finish in time.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/clustermgr/alarm"
	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/internal/metric"
	"github.com/tochemey/clustermgr/kvstore"
	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/plugin"
)

// Synchronizer runs the queue of one plugin on one node
type Synchronizer struct {
	config *Config
	logger log.Logger
	metric *metric.QueueMetric
	fsm    *FSM
	alarm  *alarm.Toggle

	started *atomic.Bool
	workers sync.WaitGroup

	// turns counts the promotions whose AtFrontOfQueue has not started yet.
	// atFront is set while the goroutine draining them runs.
	frontMu sync.Mutex
	turns   int
	atFront bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// enforce compilation error
var _ plugin.QueueHandle = (*Synchronizer)(nil)

// New creates a Synchronizer
func New(config *Config) (*Synchronizer, error) {
	if config == nil {
		return nil, configErr(errors.New("config is nil"))
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, configErr(err)
	}

	queueMetric := config.Metric
	if queueMetric == nil {
		var err error
		if queueMetric, err = metric.NewQueueMetric(metric.New().Meter()); err != nil {
			return nil, err
		}
	}

	return &Synchronizer{
		config:  config,
		logger:  config.Logger.With("plugin", config.Plugin.Key(), "node", config.NodeID),
		metric:  queueMetric,
		fsm:     NewFSM(config.NodeID, config.WaitForThisNode, config.WaitForOtherNode),
		alarm:   alarm.NewToggle(config.Raiser, ErrorsAlarm),
		started: atomic.NewBool(false),
		done:    make(chan struct{}),
	}, nil
}

// Key returns the key of the queue document
func (s *Synchronizer) Key() string {
	return s.config.Key
}

// Done is closed once the loop exited
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

// Start runs the loop on its own goroutine
func (s *Synchronizer) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return gerrors.ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Infof("starting queue synchronizer on key=(%s)", s.config.Key)
	s.workers.Add(1)
	go s.run(loopCtx)
	return nil
}

// Terminate stops the loop and waits for it and for a running AtFrontOfQueue
// to return. Terminate is idempotent.
func (s *Synchronizer) Terminate() {
	if !s.started.Load() {
		return
	}

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	cancel()
	s.workers.Wait()
}

// AddToQueue appends this node to the queue
func (s *Synchronizer) AddToQueue(ctx context.Context) error {
	return s.update(ctx, "add", func(doc *Document) (bool, error) {
		return doc.Add(s.config.NodeID), nil
	})
}

// RemoveFromQueue takes this node off the front of the queue
func (s *Synchronizer) RemoveFromQueue(ctx context.Context, success bool) error {
	return s.update(ctx, "remove", func(doc *Document) (bool, error) {
		if !doc.IsHead(s.config.NodeID) {
			return false, gerrors.ErrNotAtFrontOfQueue
		}
		return doc.Remove(s.config.NodeID, success), nil
	})
}

// SetForce sets whether a failure lets the queue advance
func (s *Synchronizer) SetForce(ctx context.Context, force bool) error {
	return s.update(ctx, "force", func(doc *Document) (bool, error) {
		return doc.SetForce(force), nil
	})
}

// Read returns the current queue document
func (s *Synchronizer) Read(ctx context.Context) (*Document, error) {
	doc, _, err := s.read(ctx)
	return doc, err
}

// update applies mutate to a fresh read of the document until the write
// goes through, the context is done or a non transient error occurs.
func (s *Synchronizer) update(ctx context.Context, op string, mutate func(*Document) (bool, error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, version, err := s.read(ctx)
		if err != nil {
			if !kvstore.IsTransient(err) {
				return fmt.Errorf("failed to %s queue entry: %w", op, err)
			}
			s.logger.Warnf("failed to read the queue, retrying in %s: %v", s.config.RetryInterval, err)
			pause(ctx, s.config.RetryInterval)
			continue
		}

		changed, err := mutate(doc)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		err = s.write(ctx, doc, version)
		switch {
		case err == nil:
			s.metric.RecordOperation(ctx, s.config.Plugin.Key(), op)
			s.logger.Debugf("queue %s done: %s", op, describe(doc))
			return nil
		case kvstore.IsConflict(err):
			s.metric.RecordConflict(ctx, s.config.Plugin.Key())
		case kvstore.IsTransient(err):
			s.logger.Warnf("failed to write the queue, retrying in %s: %v", s.config.RetryInterval, err)
			pause(ctx, s.config.RetryInterval)
		default:
			return fmt.Errorf("failed to %s queue entry: %w", op, err)
		}
	}
}

// read returns the document and the version to write it back with
func (s *Synchronizer) read(ctx context.Context) (*Document, uint64, error) {
	raw, err := s.config.Store.Get(ctx, s.config.Key)
	switch {
	case errors.Is(err, gerrors.ErrKeyNotFound):
		return NewDocument(), 0, nil
	case err != nil:
		return nil, 0, err
	}
	return s.decode(raw), raw.Version, nil
}

func (s *Synchronizer) decode(raw *kvstore.Document) *Document {
	doc, err := DecodeDocument(raw.Value)
	if err != nil {
		s.logger.Warnf("queue document is malformed, starting from an empty one: %v", err)
	}
	return doc
}

func (s *Synchronizer) write(ctx context.Context, doc *Document, version uint64) error {
	raw, err := doc.Encode()
	if err != nil {
		return err
	}
	_, err = kvstore.Write(ctx, s.config.Store, s.config.Key, raw, version)
	return err
}

type watchResult struct {
	doc *kvstore.Document
	err error
}

// frontTimer watches one turn of a node at the front of the queue
type frontTimer struct {
	target Entry
	timer  *time.Timer
}

// sameTurn reports whether head is still the turn the timer watches. The
// promotion of a queued head keeps the turn; a head that was processing and
// shows up queued again has re-queued itself and starts a new one.
func (t *frontTimer) sameTurn(head Entry) bool {
	if t == nil || t.target.ID != head.ID {
		return false
	}
	return !(t.target.Status == StatusProcessing && head.Status == StatusQueued)
}

func (t *frontTimer) C() <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.timer.C
}

func (t *frontTimer) stop() {
	if t != nil {
		t.timer.Stop()
	}
}

func (s *Synchronizer) run(ctx context.Context) {
	defer s.workers.Done()
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			err := gerrors.NewPanicError(r, debug.Stack())
			s.logger.Errorf("queue loop panicked: %v\n%s", err, err.Stack())
			s.config.OnFatal(err)
		}
	}()

	var (
		cursor uint64
		fresh  = true
		timer  *frontTimer
	)
	defer func() { timer.stop() }()

	for ctx.Err() == nil {
		result, expired := s.race(ctx, fresh, cursor, timer)
		if expired {
			s.evict(ctx, timer.target.ID)
			timer = nil
			continue
		}

		doc, err := result.doc, result.err
		switch {
		case errors.Is(err, gerrors.ErrWatchTimeout):
			continue
		case errors.Is(err, gerrors.ErrKeyNotFound):
			doc = &kvstore.Document{Key: s.config.Key}
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			s.logger.Warnf("failed to read the queue, retrying in %s: %v", s.config.RetryInterval, err)
			pause(ctx, s.config.RetryInterval)
			fresh = true
			continue
		}

		fresh = false
		cursor = doc.Version
		version := doc.Version
		if !doc.Exists() {
			version = 0
		}

		queueDoc := s.decode(doc)
		local := CalculateLocalState(queueDoc, s.config.NodeID)
		global := CalculateGlobalState(queueDoc)
		decision := s.fsm.Next(local, global, queueDoc)
		s.logger.Debugf("observed local=(%s) global=(%s) queue=%s", local, global, describe(queueDoc))

		s.alarm.Set(decision.Alarm, fmt.Sprintf("queue %s holds errored nodes: %v", s.config.Plugin.Key(), queueDoc.Errored))
		timer = s.schedule(timer, decision)

		if decision.Promote {
			promoted, err := s.promote(ctx, queueDoc, version)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warnf("failed to promote this node, retrying in %s: %v", s.config.RetryInterval, err)
				pause(ctx, s.config.RetryInterval)
				fresh = true
			}
			if promoted {
				// every promotion of this node is a new turn
				timer.stop()
				timer = s.arm(decision.Target, decision.Wait)
			}
		}
	}
}

// race waits for a newer document or for the front timer, whichever comes
// first. The losing watch is cancelled and its result discarded.
func (s *Synchronizer) race(ctx context.Context, fresh bool, cursor uint64, timer *frontTimer) (watchResult, bool) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan watchResult, 1)
	go func() {
		var result watchResult
		if fresh {
			result.doc, result.err = s.config.Store.Get(watchCtx, s.config.Key)
		} else {
			result.doc, result.err = s.config.Store.Watch(watchCtx, s.config.Key, cursor, s.config.WatchTimeout)
		}
		results <- result
	}()

	select {
	case result := <-results:
		return result, false
	case <-timer.C():
		cancel()
		<-results
		return watchResult{}, true
	case <-ctx.Done():
		<-results
		return watchResult{err: ctx.Err()}, false
	}
}

// schedule keeps, replaces or stops the front timer. The timer of a turn is
// kept while the head status moves from queued to processing.
func (s *Synchronizer) schedule(timer *frontTimer, decision Decision) *frontTimer {
	if decision.Timer == TimerCancel {
		timer.stop()
		return nil
	}
	if timer.sameTurn(decision.Target) {
		timer.target = decision.Target
		return timer
	}
	timer.stop()
	return s.arm(decision.Target, decision.Wait)
}

func (s *Synchronizer) arm(target Entry, wait time.Duration) *frontTimer {
	s.logger.Debugf("watching %s at the front of the queue for %s", target.ID, wait)
	return &frontTimer{target: target, timer: time.NewTimer(wait)}
}

// promote marks this node as processing and queues a turn of the plugin once
// the write went through. It reports whether this node was promoted.
func (s *Synchronizer) promote(ctx context.Context, doc *Document, version uint64) (bool, error) {
	next := doc.Clone()
	if !next.Promote(s.config.NodeID) {
		return false, nil
	}

	err := s.write(ctx, next, version)
	switch {
	case kvstore.IsConflict(err):
		s.metric.RecordConflict(ctx, s.config.Plugin.Key())
		return false, nil
	case err != nil:
		return false, err
	}

	s.metric.RecordOperation(ctx, s.config.Plugin.Key(), "promote")
	s.logger.Info("this node is at the front of the queue")
	s.runAtFront(ctx)
	return true, nil
}

// runAtFront queues one call of AtFrontOfQueue. Calls run one after the other
// on a tracked goroutine, so a turn won while the previous call is still
// returning runs as soon as that call is done.
func (s *Synchronizer) runAtFront(ctx context.Context) {
	s.frontMu.Lock()
	defer s.frontMu.Unlock()

	s.turns++
	if s.atFront {
		return
	}
	s.atFront = true

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		for s.nextTurn(ctx) {
			s.atFrontOfQueue(ctx)
		}
	}()
}

// nextTurn takes one pending turn, or clears atFront when none is left or
// the loop is stopping
func (s *Synchronizer) nextTurn(ctx context.Context) bool {
	s.frontMu.Lock()
	defer s.frontMu.Unlock()

	if s.turns == 0 || ctx.Err() != nil {
		s.turns = 0
		s.atFront = false
		return false
	}
	s.turns--
	return true
}

func (s *Synchronizer) atFrontOfQueue(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("AtFrontOfQueue panicked: %v\n%s", r, debug.Stack())
		}
	}()
	s.config.Plugin.AtFrontOfQueue(ctx, s)
}

// evict marks the head as unresponsive when it is still target
func (s *Synchronizer) evict(ctx context.Context, target string) {
	s.logger.Warnf("node %s did not leave the front of the queue in time, evicting it", target)
	evicted := false
	err := s.update(ctx, "evict", func(doc *Document) (bool, error) {
		evicted = doc.MarkUnresponsive(target)
		return evicted, nil
	})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Errorf("failed to evict %s: %v", target, err)
		}
		return
	}
	if evicted {
		s.metric.RecordEviction(ctx, s.config.Plugin.Key())
	}
}

func pause(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func describe(doc *Document) string {
	return fmt.Sprintf("{force: %t, queued: %v, errored: %v, completed: %v}", doc.Force, doc.Queued, doc.Errored, doc.Completed)
}
