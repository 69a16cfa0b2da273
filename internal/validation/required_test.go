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

package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmptyStringValidator(t *testing.T) {
	assert.NoError(t, NewEmptyStringValidator("prefix", "clustermgr").Validate())
	assert.EqualError(t, NewEmptyStringValidator("prefix", "").Validate(), "the [prefix] is required")
	assert.EqualError(t, NewEmptyStringValidator("prefix", "\t").Validate(), "the [prefix] is required")
}

func TestPositiveDurationValidator(t *testing.T) {
	assert.NoError(t, NewPositiveDurationValidator("retryInterval", time.Second).Validate())
	assert.EqualError(t, NewPositiveDurationValidator("retryInterval", 0).Validate(),
		"the [retryInterval] must be greater than zero, got 0s")
	assert.Error(t, NewPositiveDurationValidator("retryInterval", -time.Second).Validate())
}

func TestOneOfValidator(t *testing.T) {
	assert.NoError(t, NewOneOfValidator("backend", "etcd", "etcd", "consul").Validate())
	assert.EqualError(t, NewOneOfValidator("backend", "redis", "etcd", "consul").Validate(),
		`the [backend] must be one of [etcd, consul], got "redis"`)
}

func TestNodeIDValidator(t *testing.T) {
	t.Run("with happy path", func(t *testing.T) {
		assert.NoError(t, NewNodeIDValidator("10.0.0.1").Validate())
		assert.NoError(t, NewNodeIDValidator("10.0.0.1:11211").Validate())
		assert.NoError(t, NewNodeIDValidator("10.0.0.1+cassandra").Validate())
	})
	t.Run("with empty id", func(t *testing.T) {
		assert.EqualError(t, NewNodeIDValidator("").Validate(), "the [nodeID] is required")
	})
	t.Run("with invalid length", func(t *testing.T) {
		long := make([]byte, 300)
		for i := range long {
			long[i] = 'a'
		}
		assert.Error(t, NewNodeIDValidator(string(long)).Validate())
	})
	t.Run("with invalid characters", func(t *testing.T) {
		assert.Error(t, NewNodeIDValidator("$omeN@me").Validate())
		assert.Error(t, NewNodeIDValidator("-leading").Validate())
	})
}
