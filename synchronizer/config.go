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
	// DefaultSettleDelay is the pause before joiners or leavers are swept in
	DefaultSettleDelay = 10 * time.Second
	// DefaultAlarmDelay is how long a node may stay out of NORMAL before the alarm fires
	DefaultAlarmDelay = 15 * time.Minute
	// DefaultWatchTimeout bounds a single watch so that cancellation is observed
	DefaultWatchTimeout = 10 * time.Second
	// DefaultRetryInterval is the pause after a transient store failure
	DefaultRetryInterval = 30 * time.Second

	// ClusteringAlarm names the alarm raised when a node stays out of NORMAL for too long
	ClusteringAlarm = "too-long-clustering"
)

// Config defines the settings of a Synchronizer
type Config struct {
	// NodeID identifies this node in the view. Required.
	NodeID string
	// Plugin is the resource driven by the synchronizer. Required.
	Plugin plugin.SyncPlugin
	// Store holds the view. Required.
	Store kvstore.Store
	// Prefix and Site build the view key, see kvstore.ClusteringKey.
	Prefix string
	Site   string
	// Key overrides the view key built from Prefix, Site and the plugin key.
	Key string

	SettleDelay   time.Duration
	AlarmDelay    time.Duration
	WatchTimeout  time.Duration
	RetryInterval time.Duration

	// Logger defaults to log.DefaultLogger
	Logger log.Logger
	// Metric defaults to instruments built on the global meter provider
	Metric *metric.SyncMetric
	// Scheduler runs the clustering alarm. When nil the synchronizer runs its own.
	Scheduler *alarm.Scheduler
	// Raiser receives the clustering alarm. Defaults to a LogRaiser.
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
	if c.Key == "" && c.Plugin != nil {
		c.Key = kvstore.ClusteringKey(c.Prefix, c.Site, c.Plugin.Key())
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.AlarmDelay <= 0 {
		c.AlarmDelay = DefaultAlarmDelay
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
			logger.Errorf("synchronizer stopped: %v", err)
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
		AddValidator(validation.NewPositiveDurationValidator("settleDelay", c.SettleDelay)).
		AddValidator(validation.NewPositiveDurationValidator("alarmDelay", c.AlarmDelay)).
		AddValidator(validation.NewPositiveDurationValidator("watchTimeout", c.WatchTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("retryInterval", c.RetryInterval)).
		Validate()
}

func configErr(err error) error {
	return errors.Join(errors.New("invalid synchronizer config"), err)
}
