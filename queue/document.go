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

import (
	"bytes"
	"encoding/json"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	gerrors "github.com/tochemey/clustermgr/errors"
)

// Status is the status of a queue entry
type Status string

const (
	StatusQueued       Status = "QUEUED"
	StatusProcessing   Status = "PROCESSING"
	StatusFailure      Status = "FAILURE"
	StatusUnresponsive Status = "UNRESPONSIVE"
	StatusDone         Status = "DONE"
)

// Entry is one node in the queue document
type Entry struct {
	ID     string `json:"ID"`
	Status Status `json:"STATUS"`
}

// Document is the shared queue.
//
// Queued is ordered and only its head may be PROCESSING. Errored and
// Completed are sets.
type Document struct {
	Force     bool    `json:"FORCE"`
	Queued    []Entry `json:"QUEUED"`
	Errored   []Entry `json:"ERRORED"`
	Completed []Entry `json:"COMPLETED"`
}

// NewDocument returns an empty queue
func NewDocument() *Document {
	return &Document{
		Queued:    []Entry{},
		Errored:   []Entry{},
		Completed: []Entry{},
	}
}

// DecodeDocument parses a stored queue. A blank value is an empty queue. A
// malformed value yields an empty queue along with the decoding error.
func DecodeDocument(raw []byte) (*Document, error) {
	doc := NewDocument()
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return doc, nil
	}
	if err := json.Unmarshal(trimmed, doc); err != nil {
		return NewDocument(), gerrors.NewErrMalformedDocument("queue", err)
	}
	doc.normalize()
	return doc, nil
}

// Encode serializes the document
func (d *Document) Encode() ([]byte, error) {
	clone := d.Clone()
	clone.normalize()
	return json.Marshal(clone)
}

// Clone returns a deep copy
func (d *Document) Clone() *Document {
	return &Document{
		Force:     d.Force,
		Queued:    slices.Clone(d.Queued),
		Errored:   slices.Clone(d.Errored),
		Completed: slices.Clone(d.Completed),
	}
}

// Head returns the entry at the front of the queue
func (d *Document) Head() (Entry, bool) {
	if len(d.Queued) == 0 {
		return Entry{}, false
	}
	return d.Queued[0], true
}

// IsHead reports whether id is at the front of the queue
func (d *Document) IsHead(id string) bool {
	head, ok := d.Head()
	return ok && head.ID == id
}

// IsQueued reports whether id has an entry in the queue
func (d *Document) IsQueued(id string) bool {
	return ids(d.Queued).Contains(id)
}

// IsErrored reports whether id has an entry in the errored set
func (d *Document) IsErrored(id string) bool {
	return ids(d.Errored).Contains(id)
}

// Add queues id. A node already waiting with status QUEUED is not queued
// twice, while a node processing at the head may queue again.
func (d *Document) Add(id string) bool {
	changed := d.drop(id)
	for _, entry := range d.Queued {
		if entry.ID == id && entry.Status == StatusQueued {
			return changed
		}
	}
	d.Queued = append(d.Queued, Entry{ID: id, Status: StatusQueued})
	return true
}

// Remove takes id off the front of the queue. It does nothing unless id is
// the head. On success the node is marked completed when it does not wait in
// the queue anymore. On failure it is recorded as errored and, unless the
// queue is forced, the queue is frozen.
func (d *Document) Remove(id string, success bool) bool {
	if !d.IsHead(id) {
		return false
	}
	if !success {
		d.fail(id, StatusFailure)
		return true
	}

	d.Queued = d.Queued[1:]
	if len(d.Queued) == 0 || !d.IsQueued(id) {
		d.Completed = addEntry(d.Completed, Entry{ID: id, Status: StatusDone})
	}
	return true
}

// MarkUnresponsive evicts id from the front of the queue as unresponsive. It
// does nothing unless id is the head, so repeated calls evict once.
func (d *Document) MarkUnresponsive(id string) bool {
	if !d.IsHead(id) {
		return false
	}
	d.fail(id, StatusUnresponsive)
	return true
}

// SetForce sets whether failures freeze the queue
func (d *Document) SetForce(force bool) bool {
	if d.Force == force {
		return false
	}
	d.Force = force
	return true
}

// Promote marks the head id as processing
func (d *Document) Promote(id string) bool {
	if !d.IsHead(id) || d.Queued[0].Status == StatusProcessing {
		return false
	}
	d.Queued[0].Status = StatusProcessing
	return true
}

func (d *Document) fail(id string, status Status) {
	d.Queued = d.Queued[1:]
	d.Errored = addEntry(d.Errored, Entry{ID: id, Status: status})
	if !d.Force {
		d.Queued = []Entry{}
		d.Completed = []Entry{}
	}
}

// drop removes id from the errored and completed sets
func (d *Document) drop(id string) bool {
	errored, completed := len(d.Errored), len(d.Completed)
	matches := func(entry Entry) bool { return entry.ID == id }
	d.Errored = slices.DeleteFunc(d.Errored, matches)
	d.Completed = slices.DeleteFunc(d.Completed, matches)
	return errored != len(d.Errored) || completed != len(d.Completed)
}

func (d *Document) normalize() {
	if d.Queued == nil {
		d.Queued = []Entry{}
	}
	d.Errored = dedupe(d.Errored)
	d.Completed = dedupe(d.Completed)
}

func ids(entries []Entry) mapset.Set[string] {
	set := mapset.NewThreadUnsafeSetWithSize[string](len(entries))
	for _, entry := range entries {
		set.Add(entry.ID)
	}
	return set
}

func addEntry(entries []Entry, entry Entry) []Entry {
	if slices.Contains(entries, entry) {
		return entries
	}
	return append(entries, entry)
}

func dedupe(entries []Entry) []Entry {
	seen := mapset.NewThreadUnsafeSetWithSize[Entry](len(entries))
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if seen.Add(entry) {
			out = append(out, entry)
		}
	}
	return out
}
