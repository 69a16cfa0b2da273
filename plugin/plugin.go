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

// Package plugin defines the contracts between the synchronizers and the
// resource specific code they drive.
package plugin

import (
	"context"
	"time"

	"github.com/tochemey/clustermgr/cluster"
)

// Result is the outcome of a hook call
type Result int

const (
	// OK lets the state machine perform the transition
	OK Result = iota
	// Retry keeps the node in its current state until the next change of the view
	Retry
	// Fatal moves the node to the error state, an operator has to step in
	Fatal
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Retry:
		return "retry"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// SyncPlugin is driven by a cluster synchronizer. Each hook receives the view
// that triggered it and may block as long as it needs.
type SyncPlugin interface {
	// Key names the resource. It selects the stored view.
	Key() string
	// OnJoiningCluster is called when this node joins, including the
	// bootstrap of an empty cluster.
	OnJoiningCluster(ctx context.Context, view cluster.View) Result
	// OnClusterChanging is called on existing members when the membership changes.
	OnClusterChanging(ctx context.Context, view cluster.View) Result
	// OnNewClusterConfigReady is called once every node applied the new configuration.
	OnNewClusterConfigReady(ctx context.Context, view cluster.View) Result
	// OnStableCluster is called on every change observed while the cluster is stable.
	OnStableCluster(ctx context.Context, view cluster.View) Result
	// OnLeavingCluster is called right before this node removes itself.
	OnLeavingCluster(ctx context.Context, view cluster.View) Result
}

// QueueHandle lets a queue plugin report the end of its turn
type QueueHandle interface {
	// RemoveFromQueue takes this node off the front of the queue.
	RemoveFromQueue(ctx context.Context, success bool) error
}

// QueuePlugin is driven by a queue synchronizer
type QueuePlugin interface {
	// Key names the queue. It selects the stored document.
	Key() string
	// AtFrontOfQueue is called once when this node reaches the front of the
	// queue. It runs on its own goroutine and must eventually call
	// handle.RemoveFromQueue.
	AtFrontOfQueue(ctx context.Context, handle QueueHandle)
	// WaitForThisNode bounds the turn of this node. Zero means the default.
	WaitForThisNode() time.Duration
	// WaitForOtherNode bounds the turn of another node. Zero means the default.
	WaitForOtherNode() time.Duration
}
