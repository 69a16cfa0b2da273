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

package etcd

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/tochemey/clustermgr/internal/validation"
)

const defaultNamespace = "clustermgr"

// Config defines the etcd backend settings
type Config struct {
	// Context is the base context of the client. Defaults to context.Background().
	Context context.Context
	// Endpoints lists the etcd client URLs.
	Endpoints []string
	// Namespace prefixes every key. Defaults to "clustermgr".
	Namespace string
	// Username and Password enable etcd authentication when set.
	Username string
	Password string
	// TLS enables secure connections when set.
	TLS *tls.Config
	// DialTimeout bounds the initial connection. Defaults to 5s.
	DialTimeout time.Duration
	// Timeout bounds every non blocking operation. Defaults to 5s.
	Timeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if c.Context == nil {
		c.Context = context.Background()
	}
	if strings.TrimSpace(c.Namespace) == "" {
		c.Namespace = defaultNamespace
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(len(c.Endpoints) > 0, "Endpoints must not be empty").
		AddValidator(validation.NewEmptyStringValidator("Namespace", c.Namespace)).
		AddValidator(validation.NewPositiveDurationValidator("DialTimeout", c.DialTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("Timeout", c.Timeout)).
		Validate()
}
