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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/clustermgr/alarm"
	"github.com/tochemey/clustermgr/cluster"
	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/plugin"
)

const self = "10.0.0.1"

func newTestFSM(syncPlugin plugin.SyncPlugin, clusteringAlarm *alarm.Delayed) *FSM {
	return NewFSM(self, syncPlugin, 10*time.Millisecond, clusteringAlarm, nil, log.DiscardLogger)
}

func TestFSMTransitions(t *testing.T) {
	testCases := []struct {
		name     string
		view     cluster.View
		expected Outcome
		hook     string
	}{
		{
			name:     "bootstrap an empty cluster",
			view:     cluster.View{},
			expected: setLocal(cluster.Normal),
			hook:     "on_joining_cluster",
		},
		{
			name:     "bootstrap over errored nodes",
			view:     cluster.View{"10.0.0.2": cluster.Error},
			expected: setLocal(cluster.Normal),
			hook:     "on_joining_cluster",
		},
		{
			name:     "ask to join a stable cluster",
			view:     cluster.View{"10.0.0.2": cluster.Normal},
			expected: setLocal(cluster.WaitingToJoin),
		},
		{
			name:     "ask to join a pending join",
			view:     cluster.View{"10.0.0.2": cluster.Normal, "10.0.0.3": cluster.WaitingToJoin},
			expected: setLocal(cluster.WaitingToJoin),
		},
		{
			name:     "wait while another operation runs",
			view:     cluster.View{"10.0.0.2": cluster.Normal, "10.0.0.3": cluster.Joining},
			expected: noChange(),
		},
		{
			name:     "stable member",
			view:     cluster.View{self: cluster.Normal, "10.0.0.2": cluster.Normal},
			expected: setLocal(cluster.Normal),
			hook:     "on_stable_cluster",
		},
		{
			name:     "stable with errors",
			view:     cluster.View{self: cluster.Normal, "10.0.0.2": cluster.Error},
			expected: setLocal(cluster.Normal),
			hook:     "on_stable_cluster",
		},
		{
			name:     "member acknowledges a join",
			view:     cluster.View{self: cluster.Normal, "10.0.0.2": cluster.Joining},
			expected: setLocal(cluster.NormalAcknowledgedChange),
		},
		{
			name:     "joiner acknowledges a join",
			view:     cluster.View{self: cluster.Joining, "10.0.0.2": cluster.Normal},
			expected: setLocal(cluster.JoiningAcknowledgedChange),
		},
		{
			name:     "joiner applies the configuration",
			view:     cluster.View{self: cluster.JoiningAcknowledgedChange, "10.0.0.2": cluster.NormalAcknowledgedChange},
			expected: setLocal(cluster.JoiningConfigChanged),
			hook:     "on_joining_cluster",
		},
		{
			name:     "member applies the configuration of a join",
			view:     cluster.View{self: cluster.NormalAcknowledgedChange, "10.0.0.2": cluster.JoiningAcknowledgedChange},
			expected: setLocal(cluster.NormalConfigChanged),
			hook:     "on_cluster_changing",
		},
		{
			name:     "joiner resyncs",
			view:     cluster.View{self: cluster.JoiningConfigChanged, "10.0.0.2": cluster.NormalConfigChanged},
			expected: setLocal(cluster.Normal),
			hook:     "on_new_cluster_config_ready",
		},
		{
			name:     "member resyncs after a join",
			view:     cluster.View{self: cluster.NormalConfigChanged, "10.0.0.2": cluster.JoiningConfigChanged},
			expected: setLocal(cluster.Normal),
			hook:     "on_new_cluster_config_ready",
		},
		{
			name:     "leaver acknowledges",
			view:     cluster.View{self: cluster.Leaving, "10.0.0.2": cluster.Normal},
			expected: setLocal(cluster.LeavingAcknowledgedChange),
		},
		{
			name:     "member acknowledges a leave",
			view:     cluster.View{self: cluster.Normal, "10.0.0.2": cluster.Leaving},
			expected: setLocal(cluster.NormalAcknowledgedChange),
		},
		{
			name:     "leaver applies the configuration",
			view:     cluster.View{self: cluster.LeavingAcknowledgedChange, "10.0.0.2": cluster.NormalAcknowledgedChange},
			expected: setLocal(cluster.LeavingConfigChanged),
			hook:     "on_cluster_changing",
		},
		{
			name:     "member applies the configuration of a leave",
			view:     cluster.View{self: cluster.NormalAcknowledgedChange, "10.0.0.2": cluster.LeavingAcknowledgedChange},
			expected: setLocal(cluster.NormalConfigChanged),
			hook:     "on_cluster_changing",
		},
		{
			name:     "leaver finishes",
			view:     cluster.View{self: cluster.LeavingConfigChanged, "10.0.0.2": cluster.NormalConfigChanged},
			expected: setLocal(cluster.Finished),
			hook:     "on_new_cluster_config_ready",
		},
		{
			name:     "member resyncs after a leave",
			view:     cluster.View{self: cluster.NormalConfigChanged, "10.0.0.2": cluster.LeavingConfigChanged},
			expected: setLocal(cluster.Normal),
			hook:     "on_new_cluster_config_ready",
		},
		{
			name:     "finished node removes itself",
			view:     cluster.View{self: cluster.Finished, "10.0.0.2": cluster.Normal},
			expected: remove(),
			hook:     "on_leaving_cluster",
		},
		{
			name:     "member waits for the leaver",
			view:     cluster.View{self: cluster.Normal, "10.0.0.2": cluster.Finished},
			expected: noChange(),
		},
		{
			name:     "acknowledged member waits",
			view:     cluster.View{self: cluster.NormalAcknowledgedChange, "10.0.0.2": cluster.Joining},
			expected: noChange(),
		},
		{
			name:     "errored node stays put",
			view:     cluster.View{self: cluster.Error, "10.0.0.2": cluster.Normal},
			expected: noChange(),
		},
		{
			name:     "invalid cluster",
			view:     cluster.View{self: cluster.Joining, "10.0.0.2": cluster.Leaving},
			expected: noChange(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			syncPlugin := newScriptedPlugin("memcached")
			fsm := newTestFSM(syncPlugin, nil)
			local := tc.view.StateOf(self)
			outcome := fsm.Next(context.Background(), local, cluster.CalculateState(tc.view), tc.view)
			assert.Equal(t, tc.expected, outcome)
			if tc.hook == "" {
				assert.Empty(t, syncPlugin.called())
			} else {
				assert.Equal(t, []string{tc.hook}, syncPlugin.called())
			}
		})
	}
}

func TestFSMHookResults(t *testing.T) {
	view := cluster.View{self: cluster.NormalAcknowledgedChange, "10.0.0.2": cluster.JoiningAcknowledgedChange}
	state := cluster.CalculateState(view)
	require.Equal(t, cluster.JoiningConfigChanging, state)

	t.Run("retry keeps the state", func(t *testing.T) {
		syncPlugin := newScriptedPlugin("memcached")
		syncPlugin.answer("on_cluster_changing", plugin.Retry)
		outcome := newTestFSM(syncPlugin, nil).Next(context.Background(), cluster.NormalAcknowledgedChange, state, view)
		assert.Equal(t, noChange(), outcome)
	})

	t.Run("fatal moves to error", func(t *testing.T) {
		syncPlugin := newScriptedPlugin("memcached")
		syncPlugin.answer("on_cluster_changing", plugin.Fatal)
		outcome := newTestFSM(syncPlugin, nil).Next(context.Background(), cluster.NormalAcknowledgedChange, state, view)
		assert.Equal(t, setLocal(cluster.Error), outcome)
	})

	t.Run("panicking hook counts as retry", func(t *testing.T) {
		syncPlugin := newScriptedPlugin("memcached")
		syncPlugin.panicOn("on_cluster_changing")
		fsm := newTestFSM(syncPlugin, nil)
		var outcome Outcome
		require.NotPanics(t, func() {
			outcome = fsm.Next(context.Background(), cluster.NormalAcknowledgedChange, state, view)
		})
		assert.Equal(t, noChange(), outcome)
	})

	t.Run("failed leave keeps the entry", func(t *testing.T) {
		leaving := cluster.View{self: cluster.Finished, "10.0.0.2": cluster.Normal}
		syncPlugin := newScriptedPlugin("memcached")
		syncPlugin.answer("on_leaving_cluster", plugin.Retry)
		outcome := newTestFSM(syncPlugin, nil).Next(context.Background(), cluster.Finished, cluster.FinishedLeaving, leaving)
		assert.Equal(t, noChange(), outcome)
	})
}

func TestFSMDeterminism(t *testing.T) {
	views := []cluster.View{
		{},
		{self: cluster.Normal, "10.0.0.2": cluster.Joining},
		{self: cluster.JoiningAcknowledgedChange, "10.0.0.2": cluster.NormalAcknowledgedChange, "10.0.0.3": cluster.JoiningConfigChanged},
		{self: cluster.LeavingConfigChanged, "10.0.0.2": cluster.NormalConfigChanged, "10.0.0.3": cluster.Normal},
		{self: cluster.Finished, "10.0.0.2": cluster.Normal},
		{"10.0.0.2": cluster.Normal, "10.0.0.3": cluster.Leaving},
	}

	for _, view := range views {
		local := view.StateOf(self)
		state := cluster.CalculateState(view)
		first := newTestFSM(newScriptedPlugin("memcached"), nil).Next(context.Background(), local, state, view)
		for range 10 {
			again := newTestFSM(newScriptedPlugin("memcached"), nil).Next(context.Background(), local, state, view.Clone())
			require.Equal(t, first, again, "view=%s", view)
		}
	}
}

func TestFSMSweep(t *testing.T) {
	t.Run("only waiting nodes move", func(t *testing.T) {
		view := cluster.View{
			self:       cluster.WaitingToJoin,
			"10.0.0.2": cluster.Normal,
			"10.0.0.3": cluster.WaitingToJoin,
			"10.0.0.4": cluster.Error,
		}
		outcome := newTestFSM(newScriptedPlugin("memcached"), nil).Next(context.Background(), cluster.WaitingToJoin, cluster.JoinPending, view)
		require.Equal(t, ReplaceView, outcome.Kind)
		assert.Equal(t, cluster.View{
			self:       cluster.Joining,
			"10.0.0.2": cluster.Normal,
			"10.0.0.3": cluster.Joining,
			"10.0.0.4": cluster.Error,
		}, outcome.View)
		assert.Equal(t, cluster.WaitingToJoin, view[self])
	})

	t.Run("leavers move", func(t *testing.T) {
		view := cluster.View{self: cluster.WaitingToLeave, "10.0.0.2": cluster.Normal}
		outcome := newTestFSM(newScriptedPlugin("memcached"), nil).Next(context.Background(), cluster.WaitingToLeave, cluster.LeavePending, view)
		require.Equal(t, ReplaceView, outcome.Kind)
		assert.Equal(t, cluster.View{self: cluster.Leaving, "10.0.0.2": cluster.Normal}, outcome.View)
	})

	t.Run("cancelled while settling", func(t *testing.T) {
		fsm := NewFSM(self, newScriptedPlugin("memcached"), time.Hour, nil, nil, log.DiscardLogger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		view := cluster.View{self: cluster.WaitingToJoin, "10.0.0.2": cluster.Normal}
		assert.Equal(t, noChange(), fsm.Next(ctx, cluster.WaitingToJoin, cluster.JoinPending, view))
	})
}

func TestFSMQuit(t *testing.T) {
	fsm := newTestFSM(newScriptedPlugin("memcached"), nil)
	require.True(t, fsm.Running())
	fsm.Quit()
	fsm.Quit()
	assert.False(t, fsm.Running())
	assert.Panics(t, func() {
		fsm.Next(context.Background(), cluster.NotInCluster, cluster.Empty, cluster.View{})
	})
}

type countingRaiser struct {
	mu     sync.Mutex
	raised int
	clears int
}

func (r *countingRaiser) Raise(string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raised++
}

func (r *countingRaiser) Clear(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *countingRaiser) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raised, r.clears
}

func TestFSMAlarm(t *testing.T) {
	ctx := context.Background()
	scheduler := alarm.NewScheduler(log.DiscardLogger)
	scheduler.Start(ctx)
	defer scheduler.Stop(ctx)

	raiser := new(countingRaiser)
	clusteringAlarm := alarm.NewDelayed(scheduler, raiser, ClusteringAlarm, 100*time.Millisecond)
	fsm := newTestFSM(newScriptedPlugin("memcached"), clusteringAlarm)

	joining := cluster.View{self: cluster.Joining, "10.0.0.2": cluster.Normal}
	fsm.Next(ctx, cluster.Joining, cluster.StartedJoining, joining)
	require.True(t, clusteringAlarm.Armed())
	require.Eventually(t, clusteringAlarm.Raised, 2*time.Second, 10*time.Millisecond)

	resync := cluster.View{self: cluster.JoiningConfigChanged, "10.0.0.2": cluster.NormalConfigChanged}
	fsm.Next(ctx, cluster.JoiningConfigChanged, cluster.JoiningResyncing, resync)
	assert.False(t, clusteringAlarm.Armed())

	raised, cleared := raiser.counts()
	assert.Equal(t, 1, raised)
	assert.Equal(t, 1, cleared)

	fsm.Next(ctx, cluster.Joining, cluster.StartedJoining, joining)
	require.True(t, clusteringAlarm.Armed())
	fsm.Quit()
	assert.False(t, clusteringAlarm.Armed())
}

func TestOutcomeApply(t *testing.T) {
	view := cluster.View{self: cluster.Normal, "10.0.0.2": cluster.Normal}

	next, changed := setLocal(cluster.Normal).Apply(view, self)
	assert.False(t, changed)
	assert.Equal(t, view, next)

	next, changed = setLocal(cluster.WaitingToLeave).Apply(view, self)
	assert.True(t, changed)
	assert.Equal(t, cluster.WaitingToLeave, next[self])
	assert.Equal(t, cluster.Normal, view[self])

	next, changed = remove().Apply(view, self)
	assert.True(t, changed)
	assert.NotContains(t, next, self)

	_, changed = remove().Apply(cluster.View{}, self)
	assert.False(t, changed)

	_, changed = noChange().Apply(view, self)
	assert.False(t, changed)

	assert.Equal(t, "replace view", ReplaceView.String())
	assert.Equal(t, "unknown", OutcomeKind(9).String())
}
