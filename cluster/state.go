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

// Package cluster models the membership of a replicated resource: the state
// of every node, the shared view that maps node identifiers to states, and
// the aggregate state derived from a view.
package cluster

// NodeState is the membership state of one node as stored in the view.
type NodeState string

const (
	// NotInCluster is the logical state of a node absent from the view. It is never stored.
	NotInCluster NodeState = ""
	// Normal is the steady state of a cluster member
	Normal NodeState = "normal"
	// WaitingToJoin marks a node that asked to join and waits for the sweep
	WaitingToJoin NodeState = "waiting to join"
	// Joining marks a node swept into a join
	Joining NodeState = "joining"
	// JoiningAcknowledgedChange marks a joining node that acknowledged the scaling operation
	JoiningAcknowledgedChange NodeState = "joining, acknowledged change"
	// JoiningConfigChanged marks a joining node that applied the new configuration
	JoiningConfigChanged NodeState = "joining, config changed"
	// NormalAcknowledgedChange marks a member that acknowledged the scaling operation
	NormalAcknowledgedChange NodeState = "normal, acknowledged change"
	// NormalConfigChanged marks a member that applied the new configuration
	NormalConfigChanged NodeState = "normal, config changed"
	// WaitingToLeave marks a member that asked to leave and waits for the sweep
	WaitingToLeave NodeState = "waiting to leave"
	// Leaving marks a node swept into a leave
	Leaving NodeState = "leaving"
	// LeavingAcknowledgedChange marks a leaving node that acknowledged the scaling operation
	LeavingAcknowledgedChange NodeState = "leaving, acknowledged change"
	// LeavingConfigChanged marks a leaving node that applied the new configuration
	LeavingConfigChanged NodeState = "leaving, config changed"
	// Finished marks a node done leaving; it removes itself from the view
	Finished NodeState = "finished"
	// Error marks a node that needs operator attention
	Error NodeState = "error"
)

// NodeStates lists every value a view may hold
var NodeStates = []NodeState{
	Normal,
	WaitingToJoin,
	Joining,
	JoiningAcknowledgedChange,
	JoiningConfigChanged,
	NormalAcknowledgedChange,
	NormalConfigChanged,
	WaitingToLeave,
	Leaving,
	LeavingAcknowledgedChange,
	LeavingConfigChanged,
	Finished,
	Error,
}

// String returns the wire value, or "not in cluster" for NotInCluster
func (s NodeState) String() string {
	if s == NotInCluster {
		return "not in cluster"
	}
	return string(s)
}

// IsKnown reports whether s is one of NodeStates
func (s NodeState) IsKnown() bool {
	for _, state := range NodeStates {
		if s == state {
			return true
		}
	}
	return false
}

// InLeaveWing reports whether s belongs to the leave sequence
func (s NodeState) InLeaveWing() bool {
	switch s {
	case WaitingToLeave, Leaving, LeavingAcknowledgedChange, LeavingConfigChanged, Finished:
		return true
	default:
		return false
	}
}

// State is the aggregate state of a cluster, derived from its view.
type State string

const (
	Empty                 State = "EMPTY"
	Stable                State = "STABLE"
	StableWithErrors      State = "STABLE_WITH_ERRORS"
	JoinPending           State = "JOIN_PENDING"
	StartedJoining        State = "STARTED_JOINING"
	JoiningConfigChanging State = "JOINING_CONFIG_CHANGING"
	JoiningResyncing      State = "JOINING_RESYNCING"
	LeavePending          State = "LEAVE_PENDING"
	StartedLeaving        State = "STARTED_LEAVING"
	LeavingConfigChanging State = "LEAVING_CONFIG_CHANGING"
	LeavingResyncing      State = "LEAVING_RESYNCING"
	FinishedLeaving       State = "FINISHED_LEAVING"
	Invalid               State = "INVALID"
)

// States lists every aggregate state
var States = []State{
	Empty,
	Stable,
	StableWithErrors,
	JoinPending,
	StartedJoining,
	JoiningConfigChanging,
	JoiningResyncing,
	LeavePending,
	StartedLeaving,
	LeavingConfigChanging,
	LeavingResyncing,
	FinishedLeaving,
	Invalid,
}

func (s State) String() string {
	return string(s)
}

// IsStable reports whether s is STABLE or STABLE_WITH_ERRORS
func (s State) IsStable() bool {
	return s == Stable || s == StableWithErrors
}
