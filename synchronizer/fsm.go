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

package synchronizer

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/clustermgr/alarm"
	"github.com/tochemey/clustermgr/cluster"
	"github.com/tochemey/clustermgr/internal/metric"
	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/plugin"
)

// OutcomeKind tells how a decision changes the view
type OutcomeKind int

const (
	// NoChange leaves the view untouched
	NoChange OutcomeKind = iota
	// SetLocal sets the state of this node
	SetLocal
	// ReplaceView rewrites the whole view
	ReplaceView
	// Remove deletes this node from the view
	Remove
)

func (k OutcomeKind) String() string {
	switch k {
	case NoChange:
		return "no change"
	case SetLocal:
		return "set local"
	case ReplaceView:
		return "replace view"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Outcome is the decision taken by the FSM for one observed view
type Outcome struct {
	Kind OutcomeKind
	// State is set for SetLocal
	State cluster.NodeState
	// View is set for ReplaceView
	View cluster.View
}

func noChange() Outcome { return Outcome{Kind: NoChange} }

func setLocal(state cluster.NodeState) Outcome { return Outcome{Kind: SetLocal, State: state} }

func replaceView(view cluster.View) Outcome { return Outcome{Kind: ReplaceView, View: view} }

func remove() Outcome { return Outcome{Kind: Remove} }

// Apply returns the view to write for nodeID and whether a write is needed
func (o Outcome) Apply(view cluster.View, nodeID string) (cluster.View, bool) {
	switch o.Kind {
	case SetLocal:
		if view.StateOf(nodeID) == o.State {
			return view, false
		}
		return view.With(nodeID, o.State), true
	case ReplaceView:
		return o.View.Clone(), true
	case Remove:
		if view.StateOf(nodeID) == cluster.NotInCluster {
			return view, false
		}
		return view.Without(nodeID), true
	default:
		return view, false
	}
}

// localState returns the state of nodeID once the outcome is applied
func (o Outcome) localState(local cluster.NodeState, nodeID string) cluster.NodeState {
	switch o.Kind {
	case SetLocal:
		return o.State
	case ReplaceView:
		return o.View.StateOf(nodeID)
	case Remove:
		return cluster.NotInCluster
	default:
		return local
	}
}

type hookFunc func(context.Context, cluster.View) plugin.Result

// FSM decides the next local state of a node from the view it observed.
//
// Next is deterministic for a given (local, cluster state, view) and hook
// results. It may block: hooks run on the caller goroutine and the sweep
// waits for the settle delay.
type FSM struct {
	nodeID      string
	plugin      plugin.SyncPlugin
	logger      log.Logger
	metric      *metric.SyncMetric
	settleDelay time.Duration
	alarm       *alarm.Delayed
	running     *atomic.Bool
}

// NewFSM creates a running FSM
func NewFSM(nodeID string, syncPlugin plugin.SyncPlugin, settleDelay time.Duration, clusteringAlarm *alarm.Delayed, syncMetric *metric.SyncMetric, logger log.Logger) *FSM {
	return &FSM{
		nodeID:      nodeID,
		plugin:      syncPlugin,
		logger:      logger,
		metric:      syncMetric,
		settleDelay: settleDelay,
		alarm:       clusteringAlarm,
		running:     atomic.NewBool(true),
	}
}

// Next returns the outcome for the observed view. It panics when the FSM was stopped.
func (f *FSM) Next(ctx context.Context, local cluster.NodeState, state cluster.State, view cluster.View) Outcome {
	if !f.running.Load() {
		panic(fmt.Sprintf("fsm of plugin %s used after Quit", f.plugin.Key()))
	}

	outcome := f.decide(ctx, local, state, view)
	f.updateAlarm(outcome, local, state)
	return outcome
}

// Quit stops the FSM and cancels the clustering alarm
func (f *FSM) Quit() {
	if f.running.CompareAndSwap(true, false) && f.alarm != nil {
		f.alarm.Disarm()
	}
}

// Running reports whether Next may be called
func (f *FSM) Running() bool {
	return f.running.Load()
}

func (f *FSM) decide(ctx context.Context, local cluster.NodeState, state cluster.State, view cluster.View) Outcome {
	switch local {
	case cluster.NotInCluster:
		switch state {
		case cluster.Empty:
			return f.hook(ctx, "on_joining_cluster", f.plugin.OnJoiningCluster, view, cluster.Normal)
		case cluster.Stable, cluster.JoinPending:
			return setLocal(cluster.WaitingToJoin)
		default:
			return noChange()
		}
	case cluster.Error:
		return noChange()
	}

	switch state {
	case cluster.Stable, cluster.StableWithErrors:
		if local == cluster.Normal {
			return f.hook(ctx, "on_stable_cluster", f.plugin.OnStableCluster, view, cluster.Normal)
		}
	case cluster.JoinPending:
		switch local {
		case cluster.WaitingToJoin:
			return f.sweep(ctx, view)
		case cluster.Normal:
			return noChange()
		}
	case cluster.LeavePending:
		switch local {
		case cluster.WaitingToLeave:
			return f.sweep(ctx, view)
		case cluster.Normal:
			return noChange()
		}
	case cluster.StartedJoining:
		switch local {
		case cluster.Joining:
			return setLocal(cluster.JoiningAcknowledgedChange)
		case cluster.Normal:
			return setLocal(cluster.NormalAcknowledgedChange)
		case cluster.JoiningAcknowledgedChange, cluster.NormalAcknowledgedChange:
			return noChange()
		}
	case cluster.JoiningConfigChanging:
		switch local {
		case cluster.JoiningAcknowledgedChange:
			return f.hook(ctx, "on_joining_cluster", f.plugin.OnJoiningCluster, view, cluster.JoiningConfigChanged)
		case cluster.NormalAcknowledgedChange:
			return f.hook(ctx, "on_cluster_changing", f.plugin.OnClusterChanging, view, cluster.NormalConfigChanged)
		case cluster.JoiningConfigChanged, cluster.NormalConfigChanged:
			return noChange()
		}
	case cluster.JoiningResyncing:
		switch local {
		case cluster.JoiningConfigChanged, cluster.NormalConfigChanged:
			return f.hook(ctx, "on_new_cluster_config_ready", f.plugin.OnNewClusterConfigReady, view, cluster.Normal)
		case cluster.Normal:
			return noChange()
		}
	case cluster.StartedLeaving:
		switch local {
		case cluster.Leaving:
			return setLocal(cluster.LeavingAcknowledgedChange)
		case cluster.Normal:
			return setLocal(cluster.NormalAcknowledgedChange)
		case cluster.LeavingAcknowledgedChange, cluster.NormalAcknowledgedChange:
			return noChange()
		}
	case cluster.LeavingConfigChanging:
		switch local {
		case cluster.LeavingAcknowledgedChange:
			return f.hook(ctx, "on_cluster_changing", f.plugin.OnClusterChanging, view, cluster.LeavingConfigChanged)
		case cluster.NormalAcknowledgedChange:
			return f.hook(ctx, "on_cluster_changing", f.plugin.OnClusterChanging, view, cluster.NormalConfigChanged)
		case cluster.LeavingConfigChanged, cluster.NormalConfigChanged:
			return noChange()
		}
	case cluster.LeavingResyncing:
		switch local {
		case cluster.LeavingConfigChanged:
			return f.hook(ctx, "on_new_cluster_config_ready", f.plugin.OnNewClusterConfigReady, view, cluster.Finished)
		case cluster.NormalConfigChanged:
			return f.hook(ctx, "on_new_cluster_config_ready", f.plugin.OnNewClusterConfigReady, view, cluster.Normal)
		case cluster.Normal, cluster.Finished:
			return noChange()
		}
	case cluster.FinishedLeaving:
		switch local {
		case cluster.Finished:
			if f.call(ctx, "on_leaving_cluster", f.plugin.OnLeavingCluster, view) == plugin.OK {
				return remove()
			}
			return noChange()
		case cluster.Normal:
			return noChange()
		}
	}

	f.logger.Warnf("invalid transition: node=(%s) state=(%s) cluster=(%s) view=%s", f.nodeID, local, state, view)
	return noChange()
}

// hook calls a plugin hook and maps its result onto an outcome
func (f *FSM) hook(ctx context.Context, name string, fn hookFunc, view cluster.View, next cluster.NodeState) Outcome {
	switch f.call(ctx, name, fn, view) {
	case plugin.OK:
		return setLocal(next)
	case plugin.Fatal:
		f.logger.Errorf("hook %s failed fatally, node=(%s) needs operator attention, view=%s", name, f.nodeID, view)
		return setLocal(cluster.Error)
	default:
		return noChange()
	}
}

// call runs a hook. A panicking hook counts as Retry.
func (f *FSM) call(ctx context.Context, name string, fn hookFunc, view cluster.View) (result plugin.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			f.logger.Errorf("hook %s panicked: %v\n%s", name, r, debug.Stack())
			result = plugin.Retry
		}
		if result == plugin.Retry {
			f.logger.Warnf("hook %s asked for a retry, view=%s", name, view)
		}
		if f.metric != nil {
			f.metric.RecordHook(ctx, f.plugin.Key(), name, time.Since(start).Milliseconds(), result == plugin.OK)
		}
	}()
	return fn(ctx, view.Clone())
}

// sweep moves every waiting node into the operation after the settle delay
func (f *FSM) sweep(ctx context.Context, view cluster.View) Outcome {
	timer := time.NewTimer(f.settleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return noChange()
	case <-timer.C:
	}
	f.logger.Infof("sweeping waiting nodes into the cluster operation, view=%s", view)
	return replaceView(view.Sweep())
}

func (f *FSM) updateAlarm(outcome Outcome, local cluster.NodeState, state cluster.State) {
	if f.alarm == nil {
		return
	}
	local = outcome.localState(local, f.nodeID)
	if local == cluster.Normal || outcome.Kind == Remove {
		f.alarm.Disarm()
		return
	}
	message := fmt.Sprintf("plugin %s: node %s is %s while the cluster is %s", f.plugin.Key(), f.nodeID, local, state)
	if err := f.alarm.Arm(message); err != nil {
		f.logger.Debugf("failed to arm alarm %s: %v", ClusteringAlarm, err)
	}
}
