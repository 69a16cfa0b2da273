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

package consul

import (
	"context"
	"strings"
	"time"

	"github.com/tochemey/clustermgr/internal/validation"
)

// Config defines the Consul backend settings
type Config struct {
	// Context is the base context of the requests. Defaults to context.Background().
	Context context.Context
	// Address is the Consul agent address. Defaults to "127.0.0.1:8500".
	Address string
	// Datacenter selects the Consul datacenter. Empty means the agent default.
	Datacenter string
	// Token is the ACL token used for requests.
	Token string
	// Timeout bounds every non blocking request. Defaults to 10s.
	Timeout time.Duration
	// AllowStale lets blocking reads be served by followers.
	AllowStale bool
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets defaults for empty fields.
func (config *Config) Sanitize() {
	if config.Context == nil {
		config.Context = context.Background()
	}
	if strings.TrimSpace(config.Address) == "" {
		config.Address = "127.0.0.1:8500"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
}

// Validate checks the configuration.
func (config *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewTCPAddressValidator(stripScheme(config.Address))).
		AddValidator(validation.NewPositiveDurationValidator("Timeout", config.Timeout)).
		Validate()
}

func stripScheme(address string) string {
	for _, scheme := range []string{"http://", "https://"} {
		address = strings.TrimPrefix(address, scheme)
	}
	return address
}
