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

package alarm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/log"
)

const defaultStopTimeout = 5 * time.Second

// Scheduler runs the delayed alarms of a process on a quartz scheduler
type Scheduler struct {
	// helps lock concurrent access
	mu sync.Mutex
	// underlying Scheduler
	quartzScheduler quartz.Scheduler
	// states whether the quartzScheduler has started or not
	started *atomic.Bool
	logger  log.Logger
	// define the shutdown timeout
	stopTimeout time.Duration
}

// NewScheduler creates an instance of Scheduler
func NewScheduler(logger log.Logger) *Scheduler {
	if logger == nil {
		logger = log.DefaultLogger
	}
	// create an instance of quartz scheduler with logger off
	quartzScheduler, _ := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	return &Scheduler{
		quartzScheduler: quartzScheduler,
		started:         atomic.NewBool(false),
		logger:          logger,
		stopTimeout:     defaultStopTimeout,
	}
}

// Start starts the scheduler
func (x *Scheduler) Start(ctx context.Context) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.started.Load() {
		return
	}
	x.quartzScheduler.Start(ctx)
	x.started.Store(x.quartzScheduler.IsStarted())
	x.logger.Debug("alarm scheduler started")
}

// Stop drops the pending alarms and stops the scheduler
func (x *Scheduler) Stop(ctx context.Context) {
	if !x.started.Load() {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	_ = x.quartzScheduler.Clear()
	x.quartzScheduler.Stop()
	x.started.Store(x.quartzScheduler.IsStarted())

	ctx, cancel := context.WithTimeout(ctx, x.stopTimeout)
	defer cancel()
	x.quartzScheduler.Wait(ctx)
	x.logger.Debug("alarm scheduler stopped")
}

// Started reports whether the scheduler is running
func (x *Scheduler) Started() bool {
	return x.started.Load()
}

// scheduleOnce runs fn once after delay and returns the job key
func (x *Scheduler) scheduleOnce(fn func(), delay time.Duration) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.started.Load() {
		return "", gerrors.ErrNotStarted
	}

	job := job.NewFunctionJob[bool](
		func(context.Context) (bool, error) {
			fn()
			return true, nil
		},
	)

	key := uuid.NewString()
	detail := quartz.NewJobDetail(job, quartz.NewJobKey(key))
	if err := x.quartzScheduler.ScheduleJob(detail, quartz.NewRunOnceTrigger(delay)); err != nil {
		return "", err
	}
	return key, nil
}

// cancel removes a pending job. A job that already ran is ignored.
func (x *Scheduler) cancel(key string) {
	if !x.started.Load() {
		return
	}
	_ = x.quartzScheduler.DeleteJob(quartz.NewJobKey(key))
}
