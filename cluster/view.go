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

package cluster

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	gerrors "github.com/tochemey/clustermgr/errors"
)

// View maps node identifiers to their membership state. It is stored as a
// flat JSON object.
type View map[string]NodeState

// DecodeView parses a stored view. A nil or empty payload is an empty view.
// A malformed payload also yields an empty view, together with an error
// wrapping gerrors.ErrMalformedDocument so the caller can log it.
func DecodeView(raw []byte) (View, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return View{}, nil
	}

	var view View
	if err := json.Unmarshal(raw, &view); err != nil {
		return View{}, fmt.Errorf("cluster view: %w: %w", gerrors.ErrMalformedDocument, err)
	}
	if view == nil {
		view = View{}
	}
	return view, nil
}

// Encode returns the JSON form of the view
func (v View) Encode() ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]NodeState(v))
}

// StateOf returns the state of id, NotInCluster when absent
func (v View) StateOf(id string) NodeState {
	state, ok := v[id]
	if !ok {
		return NotInCluster
	}
	return state
}

// Clone returns a copy of the view
func (v View) Clone() View {
	clone := make(View, len(v))
	for id, state := range v {
		clone[id] = state
	}
	return clone
}

// With returns a copy of the view where id has the given state
func (v View) With(id string, state NodeState) View {
	clone := v.Clone()
	clone[id] = state
	return clone
}

// Without returns a copy of the view without id
func (v View) Without(id string) View {
	clone := v.Clone()
	delete(clone, id)
	return clone
}

// Sweep returns a copy of the view where every node waiting to join becomes
// joining and every node waiting to leave becomes leaving. No other entry changes.
func (v View) Sweep() View {
	clone := v.Clone()
	for id, state := range clone {
		switch state {
		case WaitingToJoin:
			clone[id] = Joining
		case WaitingToLeave:
			clone[id] = Leaving
		}
	}
	return clone
}

// Nodes returns the sorted node identifiers
func (v View) Nodes() []string {
	nodes := make([]string, 0, len(v))
	for id := range v {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// NodesIn returns the sorted identifiers of the nodes in one of the given states
func (v View) NodesIn(states ...NodeState) []string {
	nodes := make([]string, 0, len(v))
	for _, id := range v.Nodes() {
		for _, state := range states {
			if v[id] == state {
				nodes = append(nodes, id)
				break
			}
		}
	}
	return nodes
}

// String renders the view with sorted keys for logging
func (v View) String() string {
	var builder strings.Builder
	builder.WriteString("{")
	for i, id := range v.Nodes() {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s: %s", id, v[id])
	}
	builder.WriteString("}")
	return builder.String()
}
