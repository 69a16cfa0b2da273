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

// LocalState is the position of this node relative to the queue
type LocalState string

const (
	NoQueue                 LocalState = "NO_QUEUE"
	NoQueueError            LocalState = "NO_QUEUE_ERROR"
	FirstInQueue            LocalState = "FIRST_IN_QUEUE"
	Processing              LocalState = "PROCESSING"
	WaitingOnOtherNode      LocalState = "WAITING_ON_OTHER_NODE"
	WaitingOnOtherNodeError LocalState = "WAITING_ON_OTHER_NODE_ERROR"
)

// GlobalState summarizes the queue for every node
type GlobalState string

const (
	NoSync      GlobalState = "NO_SYNC"
	NoSyncError GlobalState = "NO_SYNC_ERROR"
	Sync        GlobalState = "SYNC"
	SyncError   GlobalState = "SYNC_ERROR"
)

// HasErrors reports whether the errored set is not empty
func (s GlobalState) HasErrors() bool {
	return s == NoSyncError || s == SyncError
}

// CalculateLocalState returns the state of nodeID. The _ERROR variants mean
// that nodeID has an entry in the errored set.
func CalculateLocalState(doc *Document, nodeID string) LocalState {
	errored := doc.IsErrored(nodeID)
	head, ok := doc.Head()
	switch {
	case !ok && errored:
		return NoQueueError
	case !ok:
		return NoQueue
	case head.ID == nodeID && head.Status == StatusProcessing:
		return Processing
	case head.ID == nodeID:
		return FirstInQueue
	case errored:
		return WaitingOnOtherNodeError
	default:
		return WaitingOnOtherNode
	}
}

// CalculateGlobalState returns the state of the queue
func CalculateGlobalState(doc *Document) GlobalState {
	queued, errored := len(doc.Queued) > 0, len(doc.Errored) > 0
	switch {
	case queued && errored:
		return SyncError
	case queued:
		return Sync
	case errored:
		return NoSyncError
	default:
		return NoSync
	}
}
