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

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/pflag"

	"github.com/tochemey/clustermgr/daemon"
	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/plugin"
)

// settings holds the command line configuration. Every field can be set
// from the environment, the flags take precedence.
type settings struct {
	NodeID         string        `env:"CLUSTERMGR_NODE_ID"`
	Site           string        `env:"CLUSTERMGR_SITE"`
	Prefix         string        `env:"CLUSTERMGR_PREFIX"`
	Backend        string        `env:"CLUSTERMGR_BACKEND"`
	Endpoints      []string      `env:"CLUSTERMGR_ENDPOINTS" envSeparator:","`
	Path           string        `env:"CLUSTERMGR_BOLT_PATH"`
	Namespace      string        `env:"CLUSTERMGR_NAMESPACE"`
	SyncPlugins    []string      `env:"CLUSTERMGR_SYNC_PLUGINS" envSeparator:","`
	QueuePlugins   []string      `env:"CLUSTERMGR_QUEUE_PLUGINS" envSeparator:","`
	PluginSettings []string      `env:"CLUSTERMGR_PLUGIN_SETTINGS" envSeparator:","`
	LogLevel       string        `env:"CLUSTERMGR_LOG_LEVEL"`
	SettleDelay    time.Duration `env:"CLUSTERMGR_SETTLE_DELAY"`
	AlarmDelay     time.Duration `env:"CLUSTERMGR_ALARM_DELAY"`
	WatchTimeout   time.Duration `env:"CLUSTERMGR_WATCH_TIMEOUT"`
	RetryInterval  time.Duration `env:"CLUSTERMGR_RETRY_INTERVAL"`
}

func defaultSettings() *settings {
	return &settings{
		Site:     "default",
		Backend:  string(daemon.BackendEtcd),
		LogLevel: "info",
	}
}

// loadSettings reads the environment on top of the defaults
func loadSettings() (*settings, error) {
	s := defaultSettings()
	if err := env.ParseWithOptions(s, env.Options{UseFieldNameByDefault: false}); err != nil {
		return nil, err
	}
	return s, nil
}

// bindStore registers the flags shared by every command that reaches the store
func (s *settings) bindStore(flags *pflag.FlagSet) {
	flags.StringVar(&s.NodeID, "node-id", s.NodeID, "identifier of this node in the cluster")
	flags.StringVar(&s.Site, "site", s.Site, "site scoping the stored keys")
	flags.StringVar(&s.Prefix, "prefix", s.Prefix, "top level key")
	flags.StringVar(&s.Backend, "backend", s.Backend, "store backend: etcd, consul, zookeeper, nats, redis, bolt or memory")
	flags.StringSliceVar(&s.Endpoints, "endpoints", s.Endpoints, "store servers")
	flags.StringVar(&s.Path, "bolt-path", s.Path, "database file of the bolt backend")
	flags.StringVar(&s.Namespace, "namespace", s.Namespace, "namespace of the etcd and redis keys")
	flags.StringArrayVar(&s.PluginSettings, "plugin-setting", s.PluginSettings, "plugin setting as name.key=value, repeatable")
	flags.StringVar(&s.LogLevel, "log-level", s.LogLevel, "debug, info, warn or error")
}

// bindRun registers the flags of the run command
func (s *settings) bindRun(flags *pflag.FlagSet) {
	flags.StringSliceVar(&s.SyncPlugins, "sync-plugins", s.SyncPlugins, "sync plugins to run")
	flags.StringSliceVar(&s.QueuePlugins, "queue-plugins", s.QueuePlugins, "queue plugins to run")
	flags.DurationVar(&s.SettleDelay, "settle-delay", s.SettleDelay, "pause before waiting nodes are swept into a join or leave")
	flags.DurationVar(&s.AlarmDelay, "alarm-delay", s.AlarmDelay, "time out of NORMAL before the clustering alarm is raised")
	flags.DurationVar(&s.WatchTimeout, "watch-timeout", s.WatchTimeout, "bound of a single watch")
	flags.DurationVar(&s.RetryInterval, "retry-interval", s.RetryInterval, "pause after a store failure")
}

func (s *settings) logger() (log.Logger, error) {
	level := log.ParseLevel(s.LogLevel)
	if level == log.InvalidLevel {
		return nil, fmt.Errorf("invalid log level %q", s.LogLevel)
	}
	return log.New(level), nil
}

// pluginSettings groups the name.key=value pairs by plugin name
func (s *settings) pluginSettings() (map[string]map[string]string, error) {
	grouped := make(map[string]map[string]string)
	for _, raw := range s.PluginSettings {
		pair, value, ok := strings.Cut(raw, "=")
		name, key, dotted := strings.Cut(pair, ".")
		if !ok || !dotted || name == "" || key == "" {
			return nil, fmt.Errorf("invalid plugin setting %q, expected name.key=value", raw)
		}
		if grouped[name] == nil {
			grouped[name] = make(map[string]string)
		}
		grouped[name][key] = value
	}
	return grouped, nil
}

// daemonConfig builds the daemon configuration
func (s *settings) daemonConfig(registry *plugin.Registry) (*daemon.Config, error) {
	logger, err := s.logger()
	if err != nil {
		return nil, err
	}
	pluginSettings, err := s.pluginSettings()
	if err != nil {
		return nil, err
	}
	return &daemon.Config{
		NodeID:         s.NodeID,
		Site:           s.Site,
		Prefix:         s.Prefix,
		Backend:        daemon.Backend(s.Backend),
		Endpoints:      s.Endpoints,
		Path:           s.Path,
		Namespace:      s.Namespace,
		SyncPlugins:    s.SyncPlugins,
		QueuePlugins:   s.QueuePlugins,
		PluginSettings: pluginSettings,
		Registry:       registry,
		SettleDelay:    s.SettleDelay,
		AlarmDelay:     s.AlarmDelay,
		WatchTimeout:   s.WatchTimeout,
		RetryInterval:  s.RetryInterval,
		Logger:         logger,
	}, nil
}
