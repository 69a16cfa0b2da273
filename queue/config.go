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

package queue

import (
	"errors"
	"time"

	"github.com/tochemey/clustermgr/alarm"
	"github.com/tochemey/clustermgr/internal/metric"
	"github.com/tochemey/clustermgr/internal/validation"
	"github.com/tochemey/clustermgr/kvstore"
	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/plugin"
)

const (
	// DefaultWait bounds the turn of a node at the front of the queue
	DefaultWait = 480 * time.Second
	// DefaultWatchTimeout bounds a single watch so that cancellation is observed
	DefaultWatchTimeout = 10 * time.Second
	// DefaultRetryInterval is the pause after a transient store failure
	DefaultRetryInterval = 30 * time.Second

	// ErrorsAlarm names the alarm raised while the queue holds errored nodes
	ErrorsAlarm = "queue-errors"
)

// Config defines the settings of a queue Synchronizer
type Config struct {
	// NodeID identifies this node in the queue. Required.
	NodeID string
	// Plugin is driven when this node reaches the front. Required.
	Plugin plugin.QueuePlugin
	// Store holds the queue document. Required.
	Store kvstore.Store
	// Prefix and Site build the document key, see kvstore.ConfigurationKey.
	Prefix string
	Site   string
	// Key overrides the document key built from Prefix, Site and the plugin key.
	Key string

	// WaitForThisNode and WaitForOtherNode default to the plugin values, then to DefaultWait.
	WaitForThisNode  time.Duration
	WaitForOtherNode time.Duration
	WatchTimeout     time.Duration
	RetryInterval    time.Duration

	Logger log.Logger
	Metric *metric.QueueMetric
	// Raiser receives the queue-errors alarm. Defaults to a LogRaiser.
	Raiser alarm.Raiser
	// OnFatal is called when the loop panics. Defaults to logging the error.
	OnFatal func(error)
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if c.Prefix == "" {
		c.Prefix = kvstore.DefaultPrefix
	}
	if c.Plugin != nil {
		if c.Key == "" {
			c.Key = kvstore.ConfigurationKey(c.Prefix, c.Site, c.Plugin.Key())
		}
		if c.WaitForThisNode <= 0 {
			c.WaitForThisNode = c.Plugin.WaitForThisNode()
		}
		if c.WaitForOtherNode <= 0 {
			c.WaitForOtherNode = c.Plugin.WaitForOtherNode()
		}
	}
	if c.WaitForThisNode <= 0 {
		c.WaitForThisNode = DefaultWait
	}
	if c.WaitForOtherNode <= 0 {
		c.WaitForOtherNode = DefaultWait
	}
	if c.WatchTimeout <= 0 {
		c.WatchTimeout = DefaultWatchTimeout
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger
	}
	if c.Raiser == nil {
		c.Raiser = alarm.NewLogRaiser(c.Logger)
	}
	if c.OnFatal == nil {
		logger := c.Logger
		c.OnFatal = func(err error) {
			logger.Errorf("queue synchronizer stopped: %v", err)
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.New(validation.AllErrors()).
		AddValidator(validation.NewNodeIDValidator(c.NodeID)).
		AddAssertion(c.Plugin != nil, "the [plugin] is required").
		AddAssertion(c.Store != nil, "the [store] is required").
		AddValidator(validation.NewEmptyStringValidator("key", c.Key)).
		AddValidator(validation.NewPositiveDurationValidator("waitForThisNode", c.WaitForThisNode)).
		AddValidator(validation.NewPositiveDurationValidator("waitForOtherNode", c.WaitForOtherNode)).
		AddValidator(validation.NewPositiveDurationValidator("watchTimeout", c.WatchTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("retryInterval", c.RetryInterval)).
		Validate()
}

func configErr(err error) error {
	return errors.Join(errors.New("invalid queue config"), err)
}
