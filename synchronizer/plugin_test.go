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
	"context"
	"sync"

	"github.com/tochemey/clustermgr/cluster"
	"github.com/tochemey/clustermgr/plugin"
)

// scriptedPlugin records the hooks it receives and answers with the
// configured results, OK by default.
type scriptedPlugin struct {
	mu      sync.Mutex
	key     string
	results map[string]plugin.Result
	panics  map[string]bool
	calls   []string
}

func newScriptedPlugin(key string) *scriptedPlugin {
	return &scriptedPlugin{
		key:     key,
		results: make(map[string]plugin.Result),
		panics:  make(map[string]bool),
	}
}

func (p *scriptedPlugin) answer(hook string, result plugin.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[hook] = result
}

func (p *scriptedPlugin) panicOn(hook string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panics[hook] = true
}

func (p *scriptedPlugin) called() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *scriptedPlugin) record(hook string) plugin.Result {
	p.mu.Lock()
	p.calls = append(p.calls, hook)
	result, shouldPanic := p.results[hook], p.panics[hook]
	p.mu.Unlock()
	if shouldPanic {
		panic(hook + " exploded")
	}
	return result
}

func (p *scriptedPlugin) Key() string { return p.key }

func (p *scriptedPlugin) OnJoiningCluster(context.Context, cluster.View) plugin.Result {
	return p.record("on_joining_cluster")
}

func (p *scriptedPlugin) OnClusterChanging(context.Context, cluster.View) plugin.Result {
	return p.record("on_cluster_changing")
}

func (p *scriptedPlugin) OnNewClusterConfigReady(context.Context, cluster.View) plugin.Result {
	return p.record("on_new_cluster_config_ready")
}

func (p *scriptedPlugin) OnStableCluster(context.Context, cluster.View) plugin.Result {
	return p.record("on_stable_cluster")
}

func (p *scriptedPlugin) OnLeavingCluster(context.Context, cluster.View) plugin.Result {
	return p.record("on_leaving_cluster")
}
