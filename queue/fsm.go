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

package queue

import "time"

// TimerAction tells the synchronizer what to do with the front-of-queue timer
type TimerAction int

const (
	// TimerCancel stops the timer
	TimerCancel TimerAction = iota
	// TimerArm runs the timer for Decision.Target, keeping it while the same
	// turn of the same node stays at the front
	TimerArm
)

// Decision is what the FSM asks the synchronizer to do for one observed document
type Decision struct {
	// Promote marks this node as processing then calls AtFrontOfQueue
	Promote bool
	Timer   TimerAction
	// Target is the head entry the timer watches, keyed on its ID
	Target Entry
	// Wait is the timer duration
	Wait time.Duration
	// Alarm is true while the errored set is not empty
	Alarm bool
}

// FSM maps the queue states onto a Decision. It is pure.
type FSM struct {
	nodeID           string
	waitForThisNode  time.Duration
	waitForOtherNode time.Duration
}

// NewFSM creates an FSM
func NewFSM(nodeID string, waitForThisNode, waitForOtherNode time.Duration) *FSM {
	return &FSM{
		nodeID:           nodeID,
		waitForThisNode:  waitForThisNode,
		waitForOtherNode: waitForOtherNode,
	}
}

// Next returns the decision for the observed document
func (f *FSM) Next(local LocalState, global GlobalState, doc *Document) Decision {
	decision := Decision{Timer: TimerCancel, Alarm: global.HasErrors()}
	head, _ := doc.Head()

	switch local {
	case FirstInQueue:
		decision.Promote = true
		decision.Timer = TimerArm
		decision.Target = Entry{ID: head.ID, Status: StatusProcessing}
		decision.Wait = f.waitForThisNode
	case Processing:
		decision.Timer = TimerArm
		decision.Target = head
		decision.Wait = f.waitForThisNode
	case WaitingOnOtherNode, WaitingOnOtherNodeError:
		decision.Timer = TimerArm
		decision.Target = head
		decision.Wait = f.waitForOtherNode
	}
	return decision
}
