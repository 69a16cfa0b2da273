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
	"sync"
	"time"
)

// Delayed raises an alarm once it stayed armed for a whole delay.
//
// Arming an armed alarm keeps the original deadline and only refreshes the
// message. Disarming clears a raised alarm.
type Delayed struct {
	mu        sync.Mutex
	name      string
	delay     time.Duration
	scheduler *Scheduler
	raiser    Raiser

	jobKey  string
	armed   bool
	raised  bool
	message string
	// generation discards jobs that fire after a Disarm
	generation uint64
}

// NewDelayed creates a disarmed Delayed alarm
func NewDelayed(scheduler *Scheduler, raiser Raiser, name string, delay time.Duration) *Delayed {
	return &Delayed{
		name:      name,
		delay:     delay,
		scheduler: scheduler,
		raiser:    raiser,
	}
}

// Arm starts the countdown unless it is already running
func (x *Delayed) Arm(message string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.message = message
	if x.armed {
		return nil
	}

	generation := x.generation
	key, err := x.scheduler.scheduleOnce(func() { x.fire(generation) }, x.delay)
	if err != nil {
		return err
	}
	x.jobKey = key
	x.armed = true
	return nil
}

// Disarm stops the countdown and clears the alarm when it was raised
func (x *Delayed) Disarm() {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.armed {
		return
	}

	x.scheduler.cancel(x.jobKey)
	x.generation++
	x.jobKey = ""
	x.armed = false
	if x.raised {
		x.raised = false
		x.raiser.Clear(x.name)
	}
}

// Armed reports whether the countdown is running or the alarm is raised
func (x *Delayed) Armed() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.armed
}

// Raised reports whether the alarm fired
func (x *Delayed) Raised() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.raised
}

func (x *Delayed) fire(generation uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.armed || x.raised || generation != x.generation {
		return
	}
	x.raised = true
	x.raiser.Raise(x.name, x.message)
}
