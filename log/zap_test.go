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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapLevels(t *testing.T) {
	t.Run("unknown level falls back to debug", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(Level(42), buffer)
		require.Equal(t, DebugLevel, logger.LogLevel())

		logger.Debug("test debug")
		entry := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "test debug", entry["msg"])
		assert.Equal(t, "debug", entry["level"])
	})

	t.Run("info level filters debug", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		require.Equal(t, InfoLevel, logger.LogLevel())
		assert.False(t, logger.Enabled(DebugLevel))
		assert.True(t, logger.Enabled(ErrorLevel))

		logger.Debugf("ignored %d", 1)
		assert.Empty(t, buffer.String())

		logger.Infof("node %s joined", "10.0.0.1")
		entry := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "node 10.0.0.1 joined", entry["msg"])
	})

	t.Run("warn and error", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(WarningLevel, buffer)
		require.Equal(t, WarningLevel, logger.LogLevel())

		logger.Warn("slow store")
		entry := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "warn", entry["level"])

		buffer.Reset()
		logger.Errorf("hook %s failed", "on_stable_cluster")
		entry = decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "error", entry["level"])
		assert.Equal(t, "hook on_stable_cluster failed", entry["msg"])
	})

	t.Run("panic", func(t *testing.T) {
		logger := NewZap(PanicLevel, new(bytes.Buffer))
		require.Equal(t, PanicLevel, logger.LogLevel())
		assert.Panics(t, func() { logger.Panic("boom") })
		assert.Panics(t, func() { logger.Panicf("boom %d", 1) })
	})

	t.Run("error and fatal level resolution", func(t *testing.T) {
		assert.Equal(t, ErrorLevel, NewZap(ErrorLevel, new(bytes.Buffer)).LogLevel())
		assert.Equal(t, FatalLevel, NewZap(FatalLevel, new(bytes.Buffer)).LogLevel())
	})
}

func TestZapWith(t *testing.T) {
	t.Run("adds structured fields", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.With("plugin", "memcached", "node", "10.0.0.1", "retry", 30*time.Second, "err", errors.New("boom")).Info("started")

		entry := decodeEntry(t, buffer.Bytes())
		assert.Equal(t, "started", entry["msg"])
		assert.Equal(t, "memcached", entry["plugin"])
		assert.Equal(t, "10.0.0.1", entry["node"])
		assert.Equal(t, "30s", entry["retry"])
		assert.Equal(t, "boom", entry["err"])
	})

	t.Run("returns the same logger without fields", func(t *testing.T) {
		logger := NewZap(InfoLevel, new(bytes.Buffer))
		assert.Equal(t, logger, logger.With())
		assert.Equal(t, logger, logger.With(42, "ignored"))
	})

	t.Run("orphan value is recorded under underscore", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.With("count", 3, "orphan").Info("msg")
		entry := decodeEntry(t, buffer.Bytes())
		assert.Contains(t, entry, "count")
		assert.Contains(t, entry, "_")
	})

	t.Run("keeps level and outputs", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(WarningLevel, buffer)
		child := logger.With("k", true)
		assert.Equal(t, WarningLevel, child.LogLevel())
		assert.Equal(t, logger.LogOutput(), child.LogOutput())
	})
}

func TestZapFlush(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "clustermgr.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	logger := NewZap(InfoLevel, file, os.Stdout)
	logger.Info("flushed")
	require.NoError(t, logger.Flush())

	content, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Contains(t, string(content), "flushed")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "info", InfoLevel.String())
	assert.Equal(t, "warn", WarningLevel.String())
	assert.Equal(t, "debug", DebugLevel.String())
	assert.Equal(t, "invalid", InvalidLevel.String())
	assert.Equal(t, "invalid", Level(-1).String())

	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarningLevel, ParseLevel("warning"))
	assert.Equal(t, WarningLevel, ParseLevel(" warn "))
	assert.Equal(t, InvalidLevel, ParseLevel("verbose"))
}

func TestDiscardLogger(t *testing.T) {
	logger := DiscardLogger
	logger.Debug("x")
	logger.Debugf("%s", "x")
	logger.Info("x")
	logger.Infof("%s", "x")
	logger.Warn("x")
	logger.Warnf("%s", "x")
	logger.Error("x")
	logger.Errorf("%s", "x")

	assert.Equal(t, InfoLevel, logger.LogLevel())
	assert.False(t, logger.Enabled(ErrorLevel))
	assert.True(t, logger.Enabled(PanicLevel))
	assert.Equal(t, DiscardLogger, logger.With("k", "v"))
	assert.Len(t, logger.LogOutput(), 1)
	assert.Panics(t, func() { logger.Panic("boom") })
	assert.Panics(t, func() { logger.Panicf("boom %s", "now") })
}

func decodeEntry(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	entry := make(map[string]any)
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
	return entry
}
