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
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tochemey/clustermgr/daemon"
	"github.com/tochemey/clustermgr/plugins"
)

func newRunCommand(s *settings) *cobra.Command {
	var leaveOnExit bool
	var leaveTimeout time.Duration

	command := &cobra.Command{
		Use:   "run",
		Short: "Run the configured plugins until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := plugins.NewRegistry()
			if err != nil {
				return err
			}
			config, err := s.daemonConfig(registry)
			if err != nil {
				return err
			}
			d, err := daemon.New(config)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := d.Start(ctx); err != nil {
				return errors.Wrap(err, "failed to start the daemon")
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigs)

			var fatal error
			select {
			case sig := <-sigs:
				config.Logger.Infof("received %s", sig)
				if leaveOnExit {
					leave(ctx, d, config, leaveTimeout)
				}
			case fatal = <-d.Fatal():
				config.Logger.Errorf("stopping after a fatal error: %v", fatal)
			}

			if err := d.Shutdown(context.Background()); err != nil {
				return err
			}
			return fatal
		},
	}

	s.bindRun(command.Flags())
	command.Flags().BoolVar(&leaveOnExit, "leave-on-exit", false, "leave the clusters before stopping")
	command.Flags().DurationVar(&leaveTimeout, "leave-timeout", 2*time.Minute, "bound of the leave on exit")
	return command
}

// leave asks every sync plugin to leave and waits for them to be out of the cluster
func leave(ctx context.Context, d *daemon.Daemon, config *daemon.Config, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.LeaveCluster(ctx); err != nil {
		config.Logger.Warnf("failed to leave the cluster: %v", err)
		return
	}
	for _, name := range config.SyncPlugins {
		s, ok := d.Synchronizer(name)
		if !ok {
			continue
		}
		select {
		case <-s.Done():
		case <-ctx.Done():
			config.Logger.Warnf("%s did not leave the cluster within %s", name, timeout)
			return
		}
	}
}
