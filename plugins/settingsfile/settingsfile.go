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

// Package settingsfile renders the member list of a cluster into a settings
// file read by the managed service, memcached style:
//
//	servers=10.0.0.1,10.0.0.2
//	new_servers=10.0.0.1,10.0.0.2,10.0.0.3
//
// servers lists the nodes serving the current configuration and new_servers
// the nodes of the configuration being rolled out.
package settingsfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tochemey/clustermgr/cluster"
	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/plugin"
)

const defaultKey = "memcached"

var (
	// nodes serving the configuration in place
	currentMembers = []cluster.NodeState{
		cluster.Normal,
		cluster.NormalAcknowledgedChange,
		cluster.NormalConfigChanged,
		cluster.Leaving,
		cluster.LeavingAcknowledgedChange,
		cluster.LeavingConfigChanged,
	}
	// nodes of the configuration being rolled out
	nextMembers = []cluster.NodeState{
		cluster.Normal,
		cluster.NormalAcknowledgedChange,
		cluster.NormalConfigChanged,
		cluster.Joining,
		cluster.JoiningAcknowledgedChange,
		cluster.JoiningConfigChanged,
	}
)

// Plugin writes the settings file on every hook
type Plugin struct {
	key    string
	path   string
	nodeID string
	logger log.Logger
}

var _ plugin.SyncPlugin = (*Plugin)(nil)

// New creates a Plugin. The "key" setting names the resource and "path" the
// settings file, /etc/clustermgr/<key>.settings by default.
func New(options plugin.Options) (plugin.SyncPlugin, error) {
	key := options.Setting("key", defaultKey)
	path := options.Setting("path", filepath.Join("/etc/clustermgr", key+".settings"))
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("settings file path=(%s) must be absolute", path)
	}

	logger := options.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Plugin{
		key:    key,
		path:   path,
		nodeID: options.NodeID,
		logger: logger,
	}, nil
}

// Key implements plugin.SyncPlugin
func (p *Plugin) Key() string {
	return p.key
}

// Path returns the settings file location
func (p *Plugin) Path() string {
	return p.path
}

// OnJoiningCluster implements plugin.SyncPlugin
func (p *Plugin) OnJoiningCluster(ctx context.Context, view cluster.View) plugin.Result {
	servers := view.NodesIn(currentMembers...)
	if len(servers) == 0 {
		// bootstrapping node
		servers = []string{p.nodeID}
	}
	return p.render(ctx, servers, view.NodesIn(nextMembers...))
}

// OnClusterChanging implements plugin.SyncPlugin
func (p *Plugin) OnClusterChanging(ctx context.Context, view cluster.View) plugin.Result {
	return p.render(ctx, view.NodesIn(currentMembers...), view.NodesIn(nextMembers...))
}

// OnNewClusterConfigReady implements plugin.SyncPlugin
func (p *Plugin) OnNewClusterConfigReady(ctx context.Context, view cluster.View) plugin.Result {
	return p.render(ctx, view.NodesIn(nextMembers...), nil)
}

// OnStableCluster implements plugin.SyncPlugin
func (p *Plugin) OnStableCluster(ctx context.Context, view cluster.View) plugin.Result {
	return p.render(ctx, view.NodesIn(cluster.Normal), nil)
}

// OnLeavingCluster implements plugin.SyncPlugin
func (p *Plugin) OnLeavingCluster(ctx context.Context, _ cluster.View) plugin.Result {
	return p.render(ctx, nil, nil)
}

func (p *Plugin) render(ctx context.Context, servers, newServers []string) plugin.Result {
	if ctx.Err() != nil {
		return plugin.Retry
	}

	content := fmt.Sprintf("servers=%s\nnew_servers=%s\n", strings.Join(servers, ","), strings.Join(newServers, ","))
	if err := writeFile(p.path, []byte(content)); err != nil {
		p.logger.Errorf("failed to write settings file=(%s): %v", p.path, err)
		return plugin.Retry
	}
	p.logger.Debugf("settings file=(%s) written: %q", p.path, content)
	return plugin.OK
}

// writeFile replaces path atomically
func writeFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
