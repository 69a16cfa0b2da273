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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/tochemey/clustermgr/errors"
)

func queued(ids ...string) []Entry {
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, Entry{ID: id, Status: StatusQueued})
	}
	return entries
}

func TestDocumentFIFO(t *testing.T) {
	doc := NewDocument()
	assert.True(t, doc.Add("a"))
	assert.True(t, doc.Add("b"))
	assert.True(t, doc.Add("c"))
	assert.Equal(t, queued("a", "b", "c"), doc.Queued)

	assert.True(t, doc.Promote("a"))
	assert.False(t, doc.Promote("a"))
	assert.False(t, doc.Promote("b"))
	assert.Equal(t, StatusProcessing, doc.Queued[0].Status)

	assert.False(t, doc.Remove("b", true))
	assert.True(t, doc.Remove("a", true))
	assert.Equal(t, queued("b", "c"), doc.Queued)
	assert.Equal(t, []Entry{{ID: "a", Status: StatusDone}}, doc.Completed)

	assert.True(t, doc.Remove("b", true))
	assert.True(t, doc.Remove("c", true))
	assert.Empty(t, doc.Queued)
	assert.ElementsMatch(t, []Entry{
		{ID: "a", Status: StatusDone},
		{ID: "b", Status: StatusDone},
		{ID: "c", Status: StatusDone},
	}, doc.Completed)
}

func TestDocumentAdd(t *testing.T) {
	t.Run("a waiting node is queued once", func(t *testing.T) {
		doc := NewDocument()
		doc.Add("a")
		doc.Add("b")
		assert.False(t, doc.Add("b"))
		assert.Equal(t, queued("a", "b"), doc.Queued)
	})

	t.Run("a processing node may queue again", func(t *testing.T) {
		doc := NewDocument()
		doc.Add("a")
		doc.Promote("a")
		assert.True(t, doc.Add("a"))
		assert.Equal(t, []Entry{{ID: "a", Status: StatusProcessing}, {ID: "a", Status: StatusQueued}}, doc.Queued)

		doc.Remove("a", true)
		assert.Equal(t, queued("a"), doc.Queued)
		assert.Empty(t, doc.Completed, "a node still queued is not completed")
	})

	t.Run("adding clears previous outcomes", func(t *testing.T) {
		doc := NewDocument()
		doc.Errored = []Entry{{ID: "a", Status: StatusFailure}, {ID: "b", Status: StatusUnresponsive}}
		doc.Completed = []Entry{{ID: "a", Status: StatusDone}}
		assert.True(t, doc.Add("a"))
		assert.Equal(t, []Entry{{ID: "b", Status: StatusUnresponsive}}, doc.Errored)
		assert.Empty(t, doc.Completed)
	})
}

func TestDocumentForce(t *testing.T) {
	t.Run("a failure freezes the queue", func(t *testing.T) {
		doc := NewDocument()
		doc.Add("a")
		doc.Add("b")
		doc.Add("c")
		doc.Completed = []Entry{{ID: "z", Status: StatusDone}}

		assert.True(t, doc.Remove("a", false))
		assert.Empty(t, doc.Queued)
		assert.Empty(t, doc.Completed)
		assert.Equal(t, []Entry{{ID: "a", Status: StatusFailure}}, doc.Errored)
	})

	t.Run("a forced queue keeps advancing", func(t *testing.T) {
		doc := NewDocument()
		assert.True(t, doc.SetForce(true))
		assert.False(t, doc.SetForce(true))
		doc.Add("a")
		doc.Add("b")
		doc.Add("c")

		assert.True(t, doc.Remove("a", false))
		assert.Equal(t, queued("b", "c"), doc.Queued)
		assert.Equal(t, []Entry{{ID: "a", Status: StatusFailure}}, doc.Errored)
	})
}

func TestDocumentMarkUnresponsive(t *testing.T) {
	doc := NewDocument()
	doc.Force = true
	doc.Add("a")
	doc.Add("b")
	doc.Promote("a")

	assert.False(t, doc.MarkUnresponsive("b"))
	assert.True(t, doc.MarkUnresponsive("a"))
	assert.False(t, doc.MarkUnresponsive("a"))
	assert.Equal(t, queued("b"), doc.Queued)
	assert.Equal(t, []Entry{{ID: "a", Status: StatusUnresponsive}}, doc.Errored)
}

func TestDocumentCodec(t *testing.T) {
	t.Run("blank is empty", func(t *testing.T) {
		for _, raw := range [][]byte{nil, []byte(" "), []byte("null")} {
			doc, err := DecodeDocument(raw)
			require.NoError(t, err)
			assert.Equal(t, NewDocument(), doc)
		}
	})

	t.Run("wire format", func(t *testing.T) {
		doc := NewDocument()
		doc.Add("10.0.0.1")
		raw, err := doc.Encode()
		require.NoError(t, err)
		assert.JSONEq(t, `{"FORCE":false,"QUEUED":[{"ID":"10.0.0.1","STATUS":"QUEUED"}],"ERRORED":[],"COMPLETED":[]}`, string(raw))

		decoded, err := DecodeDocument(raw)
		require.NoError(t, err)
		assert.Equal(t, doc, decoded)
	})

	t.Run("sets are deduplicated", func(t *testing.T) {
		doc, err := DecodeDocument([]byte(`{"ERRORED":[{"ID":"a","STATUS":"FAILURE"},{"ID":"a","STATUS":"FAILURE"}]}`))
		require.NoError(t, err)
		assert.Len(t, doc.Errored, 1)
		assert.NotNil(t, doc.Queued)
	})

	t.Run("malformed", func(t *testing.T) {
		doc, err := DecodeDocument([]byte("{"))
		require.ErrorIs(t, err, gerrors.ErrMalformedDocument)
		assert.Equal(t, NewDocument(), doc)
	})

	t.Run("clone is deep", func(t *testing.T) {
		doc := NewDocument()
		doc.Add("a")
		clone := doc.Clone()
		clone.Promote("a")
		assert.Equal(t, StatusQueued, doc.Queued[0].Status)
	})
}

func TestStates(t *testing.T) {
	doc := NewDocument()
	assert.Equal(t, NoQueue, CalculateLocalState(doc, "a"))
	assert.Equal(t, NoSync, CalculateGlobalState(doc))

	doc.Errored = []Entry{{ID: "a", Status: StatusFailure}}
	assert.Equal(t, NoQueueError, CalculateLocalState(doc, "a"))
	assert.Equal(t, NoQueue, CalculateLocalState(doc, "b"))
	assert.Equal(t, NoSyncError, CalculateGlobalState(doc))

	doc.Add("b")
	assert.Equal(t, WaitingOnOtherNodeError, CalculateLocalState(doc, "a"))
	assert.Equal(t, FirstInQueue, CalculateLocalState(doc, "b"))
	assert.Equal(t, SyncError, CalculateGlobalState(doc))

	doc.Promote("b")
	assert.Equal(t, Processing, CalculateLocalState(doc, "b"))
	assert.Equal(t, WaitingOnOtherNode, CalculateLocalState(doc, "c"))

	doc.Errored = nil
	assert.Equal(t, Sync, CalculateGlobalState(doc))
	assert.False(t, Sync.HasErrors())
	assert.True(t, SyncError.HasErrors())
}
