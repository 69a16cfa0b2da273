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

package zookeeper

import (
	"time"

	"github.com/tochemey/clustermgr/internal/validation"
	"github.com/tochemey/clustermgr/log"
)

// Config defines the ZooKeeper backend settings
type Config struct {
	// Servers lists the ensemble members as host:port.
	Servers []string
	// SessionTimeout is the ZooKeeper session timeout. Defaults to 10s.
	SessionTimeout time.Duration
	// ConnectTimeout bounds the wait for the first session. Defaults to 10s.
	ConnectTimeout time.Duration
	// Logger receives the client library messages at debug level.
	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 10 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEndpointsValidator(c.Servers)).
		AddValidator(validation.NewPositiveDurationValidator("SessionTimeout", c.SessionTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("ConnectTimeout", c.ConnectTimeout)).
		Validate()
}
