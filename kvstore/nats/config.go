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

package nats

import (
	"context"
	"strings"
	"time"

	"github.com/tochemey/clustermgr/internal/validation"
)

const defaultBucket = "clustermgr"

// Config defines the NATS JetStream KeyValue backend settings
type Config struct {
	// Context is the base context of the watches. Defaults to context.Background().
	Context context.Context
	// URL is the NATS server URL (e.g. nats://127.0.0.1:4222). Required.
	URL string
	// Bucket is the KeyValue bucket holding the documents. Defaults to "clustermgr".
	Bucket string
	// Replicas is the number of bucket replicas in a JetStream cluster. Defaults to 1.
	Replicas int
	// Timeout bounds every non blocking request. Defaults to 5s.
	Timeout time.Duration
	// ConnectTimeout bounds the connection to the server. Defaults to 5s.
	ConnectTimeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if c.Context == nil {
		c.Context = context.Background()
	}
	if strings.TrimSpace(c.Bucket) == "" {
		c.Bucket = defaultBucket
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("URL", c.URL)).
		AddValidator(validation.NewEmptyStringValidator("Bucket", c.Bucket)).
		AddValidator(validation.NewPositiveDurationValidator("Timeout", c.Timeout)).
		AddValidator(validation.NewPositiveDurationValidator("ConnectTimeout", c.ConnectTimeout)).
		Validate()
}
