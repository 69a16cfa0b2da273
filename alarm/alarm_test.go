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
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/clustermgr/errors"
	"github.com/tochemey/clustermgr/log"
)

type recordingRaiser struct {
	mu     sync.Mutex
	raised []string
	clears []string
}

func (r *recordingRaiser) Raise(name, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raised = append(r.raised, name+": "+message)
}

func (r *recordingRaiser) Clear(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears = append(r.clears, name)
}

func (r *recordingRaiser) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.raised), len(r.clears)
}

func newStartedScheduler(t *testing.T) *Scheduler {
	t.Helper()
	ctx := context.Background()
	scheduler := NewScheduler(log.DiscardLogger)
	scheduler.Start(ctx)
	require.True(t, scheduler.Started())
	t.Cleanup(func() { scheduler.Stop(ctx) })
	return scheduler
}

func TestDelayed(t *testing.T) {
	t.Run("raises after the delay", func(t *testing.T) {
		raiser := new(recordingRaiser)
		alarm := NewDelayed(newStartedScheduler(t), raiser, "too-long-clustering", 100*time.Millisecond)

		require.NoError(t, alarm.Arm("memcached is JOINING_ACK"))
		assert.True(t, alarm.Armed())
		assert.False(t, alarm.Raised())

		require.Eventually(t, alarm.Raised, 2*time.Second, 10*time.Millisecond)
		raised, cleared := raiser.counts()
		assert.Equal(t, 1, raised)
		assert.Zero(t, cleared)
		assert.Equal(t, "too-long-clustering: memcached is JOINING_ACK", raiser.raised[0])

		alarm.Disarm()
		assert.False(t, alarm.Armed())
		_, cleared = raiser.counts()
		assert.Equal(t, 1, cleared)
	})

	t.Run("re-arming keeps the deadline", func(t *testing.T) {
		raiser := new(recordingRaiser)
		alarm := NewDelayed(newStartedScheduler(t), raiser, "too-long-clustering", 300*time.Millisecond)

		start := time.Now()
		require.NoError(t, alarm.Arm("first"))
		time.Sleep(150 * time.Millisecond)
		require.NoError(t, alarm.Arm("second"))

		require.Eventually(t, alarm.Raised, 2*time.Second, 10*time.Millisecond)
		assert.Less(t, time.Since(start), 440*time.Millisecond)
		assert.Equal(t, []string{"too-long-clustering: second"}, raiser.raised)
	})

	t.Run("disarm before the deadline", func(t *testing.T) {
		raiser := new(recordingRaiser)
		alarm := NewDelayed(newStartedScheduler(t), raiser, "too-long-clustering", 100*time.Millisecond)

		require.NoError(t, alarm.Arm("joining"))
		alarm.Disarm()
		alarm.Disarm()

		time.Sleep(250 * time.Millisecond)
		raised, cleared := raiser.counts()
		assert.Zero(t, raised)
		assert.Zero(t, cleared)
	})

	t.Run("arm requires a started scheduler", func(t *testing.T) {
		alarm := NewDelayed(NewScheduler(log.DiscardLogger), new(recordingRaiser), "x", time.Second)
		require.ErrorIs(t, alarm.Arm("x"), gerrors.ErrNotStarted)
		assert.False(t, alarm.Armed())
	})
}

func TestToggle(t *testing.T) {
	raiser := new(recordingRaiser)
	toggle := NewToggle(raiser, "queue-errors")

	toggle.Set(false, "")
	toggle.Set(true, "node 10.0.0.1 failed")
	toggle.Set(true, "node 10.0.0.1 failed")
	assert.True(t, toggle.On())
	toggle.Set(false, "")
	assert.False(t, toggle.On())

	raised, cleared := raiser.counts()
	assert.Equal(t, 1, raised)
	assert.Equal(t, 1, cleared)
}

func TestLogRaiser(t *testing.T) {
	buffer := new(bytes.Buffer)
	raiser := NewLogRaiser(log.NewZap(log.InfoLevel, buffer))

	raiser.Clear("queue-errors")
	assert.Empty(t, buffer.String())

	raiser.Raise("queue-errors", "node 10.0.0.1 failed")
	assert.Contains(t, buffer.String(), "alarm raised: node 10.0.0.1 failed")
	assert.Contains(t, buffer.String(), `"alarm":"queue-errors"`)
	assert.Equal(t, map[string]string{"queue-errors": "node 10.0.0.1 failed"}, raiser.Active())

	buffer.Reset()
	raiser.Clear("queue-errors")
	assert.Contains(t, buffer.String(), "alarm cleared")
	assert.Empty(t, raiser.Active())
}
