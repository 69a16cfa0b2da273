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

// QueueMetric holds the instruments of a queue synchronizer
type QueueMetric struct {
	evictions  metric.Int64Counter
	operations metric.Int64Counter
	conflicts  metric.Int64Counter
}

// NewQueueMetric creates the queue instruments
func NewQueueMetric(meter metric.Meter) (*QueueMetric, error) {
	queueMetric := new(QueueMetric)
	var err error
	if queueMetric.evictions, err = meter.Int64Counter(
		"clustermgr_queue_evictions",
		metric.WithDescription("Total number of unresponsive nodes evicted from the queue"),
	); err != nil {
		return nil, fmt.Errorf("failed to create evictions instrument, %w", err)
	}

	if queueMetric.operations, err = meter.Int64Counter(
		"clustermgr_queue_operations",
		metric.WithDescription("Total number of queue operations applied"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operations instrument, %w", err)
	}

	if queueMetric.conflicts, err = meter.Int64Counter(
		"clustermgr_queue_cas_conflicts",
		metric.WithDescription("Total number of rejected queue writes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create conflicts instrument, %w", err)
	}
	return queueMetric, nil
}

// RecordEviction counts an unresponsive node eviction
func (x *QueueMetric) RecordEviction(ctx context.Context, plugin string) {
	x.evictions.Add(ctx, 1, metric.WithAttributes(attribute.String("plugin", plugin)))
}

// RecordOperation counts an applied queue operation such as add or remove
func (x *QueueMetric) RecordOperation(ctx context.Context, plugin, operation string) {
	x.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plugin", plugin),
		attribute.String("operation", operation)))
}

// RecordConflict counts a rejected queue write
func (x *QueueMetric) RecordConflict(ctx context.Context, plugin string) {
	x.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("plugin", plugin)))
}

// Evictions returns the evictions counter
func (x *QueueMetric) Evictions() metric.Int64Counter {
	return x.evictions
}

// Operations returns the operations counter
func (x *QueueMetric) Operations() metric.Int64Counter {
	return x.operations
}

// Conflicts returns the conflicts counter
func (x *QueueMetric) Conflicts() metric.Int64Counter {
	return x.conflicts
}
