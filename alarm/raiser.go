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

// Package alarm raises operator alarms, either immediately or after a delay.
package alarm

import (
	"sync"

	"github.com/tochemey/clustermgr/log"
)

// Raiser receives alarms. Raise and Clear are called for a given name in
// alternation, Raise first.
type Raiser interface {
	Raise(name, message string)
	Clear(name string)
}

// LogRaiser reports alarms through a logger
type LogRaiser struct {
	mu     sync.Mutex
	logger log.Logger
	active map[string]string
}

// enforce compilation error
var _ Raiser = (*LogRaiser)(nil)

// NewLogRaiser creates a LogRaiser. A nil logger falls back to log.DefaultLogger.
func NewLogRaiser(logger log.Logger) *LogRaiser {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &LogRaiser{
		logger: logger,
		active: make(map[string]string),
	}
}

// Raise logs the alarm at error level
func (x *LogRaiser) Raise(name, message string) {
	x.mu.Lock()
	x.active[name] = message
	x.mu.Unlock()
	x.logger.With("alarm", name).Errorf("alarm raised: %s", message)
}

// Clear logs the end of an alarm that was raised
func (x *LogRaiser) Clear(name string) {
	x.mu.Lock()
	_, ok := x.active[name]
	delete(x.active, name)
	x.mu.Unlock()
	if ok {
		x.logger.With("alarm", name).Info("alarm cleared")
	}
}

// Active returns the alarms currently raised and their message
func (x *LogRaiser) Active() map[string]string {
	x.mu.Lock()
	defer x.mu.Unlock()
	active := make(map[string]string, len(x.active))
	for name, message := range x.active {
		active[name] = message
	}
	return active
}

// Toggle is an alarm that follows a condition. It raises when the condition
// becomes true and clears when it becomes false.
type Toggle struct {
	mu     sync.Mutex
	name   string
	raiser Raiser
	on     bool
}

// NewToggle creates a Toggle
func NewToggle(raiser Raiser, name string) *Toggle {
	return &Toggle{name: name, raiser: raiser}
}

// Set updates the condition
func (x *Toggle) Set(on bool, message string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	switch {
	case on && !x.on:
		x.raiser.Raise(x.name, message)
	case !on && x.on:
		x.raiser.Clear(x.name)
	}
	x.on = on
}

// On reports whether the alarm is raised
func (x *Toggle) On() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.on
}
