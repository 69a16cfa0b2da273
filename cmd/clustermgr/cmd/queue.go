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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/tochemey/clustermgr/daemon"
	"github.com/tochemey/clustermgr/plugins"
	"github.com/tochemey/clustermgr/queue"
)

func newQueueCommand(s *settings) *cobra.Command {
	var name string

	command := &cobra.Command{
		Use:   "queue",
		Short: "Operate on a queue",
	}
	command.PersistentFlags().StringVar(&name, "plugin", "restart", "queue plugin owning the queue")

	command.AddCommand(
		&cobra.Command{
			Use:   "add",
			Short: "Append this node to the queue",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withQueue(cmd.Context(), s, name, func(ctx context.Context, q *queue.Synchronizer) error {
					return q.AddToQueue(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "remove [success]",
			Short: "Take this node off the front of the queue",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				success := true
				if len(args) == 1 {
					parsed, err := strconv.ParseBool(args[0])
					if err != nil {
						return err
					}
					success = parsed
				}
				return withQueue(cmd.Context(), s, name, func(ctx context.Context, q *queue.Synchronizer) error {
					return q.RemoveFromQueue(ctx, success)
				})
			},
		},
		&cobra.Command{
			Use:   "force <true|false>",
			Short: "Set whether a failure lets the queue advance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				force, err := strconv.ParseBool(args[0])
				if err != nil {
					return err
				}
				return withQueue(cmd.Context(), s, name, func(ctx context.Context, q *queue.Synchronizer) error {
					return q.SetForce(ctx, force)
				})
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the queue document",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withQueue(cmd.Context(), s, name, func(ctx context.Context, q *queue.Synchronizer) error {
					doc, err := q.Read(ctx)
					if err != nil {
						return err
					}
					out, err := json.MarshalIndent(doc, "", "  ")
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
					return err
				})
			},
		},
	)
	return command
}

// withQueue connects to the store and runs a single operation on the named
// queue without starting its loop.
func withQueue(ctx context.Context, s *settings, name string, op func(context.Context, *queue.Synchronizer) error) (err error) {
	registry, err := plugins.NewRegistry()
	if err != nil {
		return err
	}
	config, err := s.daemonConfig(registry)
	if err != nil {
		return err
	}
	config.QueuePlugins = []string{name}
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return err
	}

	queuePlugins, err := registry.QueuePlugins([]string{name}, config.PluginOptions(name))
	if err != nil {
		return err
	}

	store, err := daemon.OpenStore(ctx, config)
	if err != nil {
		return errors.Wrapf(err, "failed to open the %s store", config.Backend)
	}
	defer func() {
		err = multierr.Append(err, store.Close())
	}()

	q, err := queue.New(&queue.Config{
		NodeID:        config.NodeID,
		Plugin:        queuePlugins[0],
		Store:         store,
		Prefix:        config.Prefix,
		Site:          config.Site,
		RetryInterval: config.RetryInterval,
		Logger:        config.Logger,
	})
	if err != nil {
		return err
	}
	return op(ctx, q)
}
