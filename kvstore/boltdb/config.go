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

package boltdb

import (
	"os"
	"strings"
	"time"

	"github.com/tochemey/clustermgr/internal/validation"
)

const defaultBucket = "clustermgr"

// Config defines the bbolt backend settings
type Config struct {
	// Path is the database file.
	Path string
	// Bucket holds the documents. Defaults to "clustermgr".
	Bucket string
	// FileMode is used when the file is created. Defaults to 0600.
	FileMode os.FileMode
	// LockTimeout bounds the wait for the file lock. Defaults to 1s.
	LockTimeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Bucket) == "" {
		c.Bucket = defaultBucket
	}
	if c.FileMode == 0 {
		c.FileMode = 0o600
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Path", c.Path)).
		AddValidator(validation.NewEmptyStringValidator("Bucket", c.Bucket)).
		Validate()
}
