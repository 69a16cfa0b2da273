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

package metric

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetric holds the instruments of a cluster synchronizer
type SyncMetric struct {
	// number of local state transitions written to the store
	transitions metric.Int64Counter
	// number of hooks that returned Retry or Fatal
	hookFailures metric.Int64Counter
	// number of rejected compare-and-swap writes
	conflicts metric.Int64Counter
	// number of transient store failures
	storeErrors metric.Int64Counter
	// hook latency in milliseconds
	hookDuration metric.Int64Histogram
}

// NewSyncMetric creates the synchronizer instruments
func NewSyncMetric(meter metric.Meter) (*SyncMetric, error) {
	syncMetric := new(SyncMetric)
	var err error
	if syncMetric.transitions, err = meter.Int64Counter(
		"clustermgr_sync_transitions",
		metric.WithDescription("Total number of node state transitions written"),
	); err != nil {
		return nil, fmt.Errorf("failed to create transitions instrument, %w", err)
	}

	if syncMetric.hookFailures, err = meter.Int64Counter(
		"clustermgr_sync_hook_failures",
		metric.WithDescription("Total number of plugin hooks that did not succeed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create hookFailures instrument, %w", err)
	}

	if syncMetric.conflicts, err = meter.Int64Counter(
		"clustermgr_sync_cas_conflicts",
		metric.WithDescription("Total number of rejected compare-and-swap writes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create conflicts instrument, %w", err)
	}

	if syncMetric.storeErrors, err = meter.Int64Counter(
		"clustermgr_sync_store_errors",
		metric.WithDescription("Total number of transient store failures"),
	); err != nil {
		return nil, fmt.Errorf("failed to create storeErrors instrument, %w", err)
	}

	if syncMetric.hookDuration, err = meter.Int64Histogram(
		"clustermgr_sync_hook_duration",
		metric.WithDescription("The latency of plugin hooks in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create hookDuration instrument, %w", err)
	}
	return syncMetric, nil
}

// RecordTransition counts a written local state
func (x *SyncMetric) RecordTransition(ctx context.Context, plugin, state string) {
	x.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plugin", plugin),
		attribute.String("state", state)))
}

// RecordHook records the latency and outcome of a hook call
func (x *SyncMetric) RecordHook(ctx context.Context, plugin, hook string, millis int64, ok bool) {
	attrs := metric.WithAttributes(
		attribute.String("plugin", plugin),
		attribute.String("hook", hook))
	x.hookDuration.Record(ctx, millis, attrs)
	if !ok {
		x.hookFailures.Add(ctx, 1, attrs)
	}
}

// RecordConflict counts a rejected write
func (x *SyncMetric) RecordConflict(ctx context.Context, plugin string) {
	x.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("plugin", plugin)))
}

// RecordStoreError counts a transient store failure
func (x *SyncMetric) RecordStoreError(ctx context.Context, plugin string) {
	x.storeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("plugin", plugin)))
}

// Transitions returns the transitions counter
func (x *SyncMetric) Transitions() metric.Int64Counter {
	return x.transitions
}

// HookFailures returns the hook failures counter
func (x *SyncMetric) HookFailures() metric.Int64Counter {
	return x.hookFailures
}

// Conflicts returns the conflicts counter
func (x *SyncMetric) Conflicts() metric.Int64Counter {
	return x.conflicts
}

// StoreErrors returns the store errors counter
func (x *SyncMetric) StoreErrors() metric.Int64Counter {
	return x.storeErrors
}

// HookDuration returns the hook latency histogram
func (x *SyncMetric) HookDuration() metric.Int64Histogram {
	return x.hookDuration
}
