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

// Package plugins holds the table of the plugins compiled into clustermgr.
package plugins

import (
	"github.com/tochemey/clustermgr/plugin"
	"github.com/tochemey/clustermgr/plugins/command"
	"github.com/tochemey/clustermgr/plugins/settingsfile"
)

// NewRegistry returns a registry holding every built-in plugin
func NewRegistry() (*plugin.Registry, error) {
	registry := plugin.NewRegistry()
	for _, name := range []string{"memcached", "settingsfile"} {
		if err := registry.RegisterSync(name, settingsfile.New); err != nil {
			return nil, err
		}
	}
	for _, name := range []string{"restart", "command"} {
		if err := registry.RegisterQueue(name, command.New); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
