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
	mapset "github.com/deckarep/golang-set/v2"
)

// rule classifies a set of node states: every state must be allowed and each
// required group must be hit by at least one state.
type rule struct {
	state       State
	allowed     mapset.Set[NodeState]
	required    []mapset.Set[NodeState]
	allowErrors bool
}

func (r rule) matches(present, withoutErrors mapset.Set[NodeState]) bool {
	candidate := present
	if r.allowErrors {
		candidate = withoutErrors
	}
	if !candidate.IsSubset(r.allowed) {
		return false
	}
	for _, group := range r.required {
		if candidate.Intersect(group).IsEmpty() {
			return false
		}
	}
	return true
}

func states(values ...NodeState) mapset.Set[NodeState] {
	return mapset.NewThreadUnsafeSet(values...)
}

// rules are evaluated in order, the first match wins
var rules = []rule{
	{
		state:    Stable,
		allowed:  states(Normal),
		required: []mapset.Set[NodeState]{states(Normal)},
	},
	{
		state:       StableWithErrors,
		allowed:     states(Normal),
		required:    []mapset.Set[NodeState]{states(Normal)},
		allowErrors: true,
	},
	{
		state:       JoinPending,
		allowed:     states(Normal, WaitingToJoin),
		required:    []mapset.Set[NodeState]{states(WaitingToJoin)},
		allowErrors: true,
	},
	{
		state:   StartedJoining,
		allowed: states(Normal, NormalAcknowledgedChange, Joining, JoiningAcknowledgedChange),
		required: []mapset.Set[NodeState]{
			states(Joining, JoiningAcknowledgedChange),
			states(Joining, Normal),
		},
		allowErrors: true,
	},
	{
		state:   JoiningConfigChanging,
		allowed: states(NormalAcknowledgedChange, JoiningAcknowledgedChange, NormalConfigChanged, JoiningConfigChanged),
		required: []mapset.Set[NodeState]{
			states(JoiningAcknowledgedChange, JoiningConfigChanged),
			states(NormalAcknowledgedChange, JoiningAcknowledgedChange),
		},
		allowErrors: true,
	},
	{
		state:       JoiningResyncing,
		allowed:     states(Normal, NormalConfigChanged, JoiningConfigChanged),
		required:    []mapset.Set[NodeState]{states(NormalConfigChanged, JoiningConfigChanged)},
		allowErrors: true,
	},
	{
		state:       LeavePending,
		allowed:     states(Normal, WaitingToLeave),
		required:    []mapset.Set[NodeState]{states(WaitingToLeave)},
		allowErrors: true,
	},
	{
		state:   StartedLeaving,
		allowed: states(Normal, NormalAcknowledgedChange, Leaving, LeavingAcknowledgedChange),
		required: []mapset.Set[NodeState]{
			states(Leaving, LeavingAcknowledgedChange),
			states(Leaving, Normal),
		},
		allowErrors: true,
	},
	{
		state:   LeavingConfigChanging,
		allowed: states(NormalAcknowledgedChange, LeavingAcknowledgedChange, NormalConfigChanged, LeavingConfigChanged),
		required: []mapset.Set[NodeState]{
			states(LeavingAcknowledgedChange, LeavingConfigChanged),
			states(NormalAcknowledgedChange, LeavingAcknowledgedChange),
		},
		allowErrors: true,
	},
	{
		state:       LeavingResyncing,
		allowed:     states(Normal, NormalConfigChanged, LeavingConfigChanged, Finished),
		required:    []mapset.Set[NodeState]{states(NormalConfigChanged, LeavingConfigChanged)},
		allowErrors: true,
	},
	{
		state:       FinishedLeaving,
		allowed:     states(Normal, Finished),
		required:    []mapset.Set[NodeState]{states(Finished)},
		allowErrors: true,
	},
}

// CalculateState derives the aggregate state of a view. It depends only on
// the set of states present, never on identifiers or iteration order.
// A view without any non error node is EMPTY; a view no rule accepts is INVALID.
func CalculateState(view View) State {
	present := mapset.NewThreadUnsafeSet[NodeState]()
	for _, state := range view {
		present.Add(state)
	}

	withoutErrors := present.Clone()
	withoutErrors.Remove(Error)
	if withoutErrors.IsEmpty() {
		return Empty
	}

	for _, r := range rules {
		if r.matches(present, withoutErrors) {
			return r.state
		}
	}
	return Invalid
}
