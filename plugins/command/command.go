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

// Package command runs an operator command when this node reaches the front
// of a queue, typically a service restart, and reports its exit status back
// to the queue.
package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tochemey/clustermgr/log"
	"github.com/tochemey/clustermgr/plugin"
)

const (
	defaultKey     = "restart"
	defaultTimeout = 5 * time.Minute
	// bounds the report of the command outcome
	removeTimeout = 30 * time.Second
)

// Plugin runs a command at the front of the queue
type Plugin struct {
	key              string
	argv             []string
	timeout          time.Duration
	waitForThisNode  time.Duration
	waitForOtherNode time.Duration
	logger           log.Logger
}

var _ plugin.QueuePlugin = (*Plugin)(nil)

// New creates a Plugin from the settings:
//
//	command              the command line, required
//	key                  the queue name, "restart" by default
//	timeout              bounds the command, 5m by default
//	wait_for_this_node   the turn of this node
//	wait_for_other_node  the turn of the other nodes
func New(options plugin.Options) (plugin.QueuePlugin, error) {
	argv := strings.Fields(options.Setting("command", ""))
	if len(argv) == 0 {
		return nil, errors.New("the [command] setting is required")
	}

	timeout, err := duration(options, "timeout", defaultTimeout)
	if err != nil {
		return nil, err
	}
	waitForThisNode, err := duration(options, "wait_for_this_node", 0)
	if err != nil {
		return nil, err
	}
	waitForOtherNode, err := duration(options, "wait_for_other_node", 0)
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Plugin{
		key:              options.Setting("key", defaultKey),
		argv:             argv,
		timeout:          timeout,
		waitForThisNode:  waitForThisNode,
		waitForOtherNode: waitForOtherNode,
		logger:           logger,
	}, nil
}

// Key implements plugin.QueuePlugin
func (p *Plugin) Key() string {
	return p.key
}

// WaitForThisNode implements plugin.QueuePlugin
func (p *Plugin) WaitForThisNode() time.Duration {
	return p.waitForThisNode
}

// WaitForOtherNode implements plugin.QueuePlugin
func (p *Plugin) WaitForOtherNode() time.Duration {
	return p.waitForOtherNode
}

// AtFrontOfQueue runs the command and removes this node from the queue with
// the command outcome
func (p *Plugin) AtFrontOfQueue(ctx context.Context, handle plugin.QueueHandle) {
	err := p.run(ctx)
	if ctx.Err() != nil {
		// stopping, the other nodes evict this one when it does not come back
		return
	}

	success := err == nil
	if !success {
		p.logger.Errorf("command %q failed: %v", strings.Join(p.argv, " "), err)
	}

	removeCtx, cancel := context.WithTimeout(ctx, removeTimeout)
	defer cancel()
	if err := handle.RemoveFromQueue(removeCtx, success); err != nil {
		p.logger.Errorf("failed to leave the front of queue %s: %v", p.key, err)
	}
}

func (p *Plugin) run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logger.Infof("running %q", strings.Join(p.argv, " "))
	output, err := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...).CombinedOutput()
	if len(output) > 0 {
		p.logger.Debugf("command output: %s", strings.TrimSpace(string(output)))
	}
	return err
}

func duration(options plugin.Options, name string, fallback time.Duration) (time.Duration, error) {
	value := options.Setting(name, "")
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid [%s] setting: %w", name, err)
	}
	return parsed, nil
}
