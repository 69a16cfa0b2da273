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

// Package kvstore defines the versioned key/value contract the synchronizers
// are built on, along with the key layout shared by every backend.
package kvstore

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/tochemey/clustermgr/errors"
)

// Document is a versioned value read from a Store.
//
// Version is supplied by the backend and only ever compared for equality or
// ordering. A zero Version means the key does not exist. A Document returned
// by Watch with a nil Value reports a deleted key.
type Document struct {
	Key     string
	Value   []byte
	Version uint64
}

// Exists reports whether the document holds a value
func (d *Document) Exists() bool {
	return d != nil && d.Value != nil
}

// Store is the set of primitives a backend provides.
//
// Every method is safe for concurrent use.
type Store interface {
	// Get returns the current document or gerrors.ErrKeyNotFound.
	Get(ctx context.Context, key string) (*Document, error)
	// Watch blocks until the stored version of key exceeds sinceVersion and
	// returns the new document. It returns immediately when the stored version
	// is already newer. gerrors.ErrWatchTimeout is returned when timeout
	// elapses first.
	Watch(ctx context.Context, key string, sinceVersion uint64, timeout time.Duration) (*Document, error)
	// CompareAndSwap writes value only when the stored version equals
	// expectedVersion and returns the new version. gerrors.ErrVersionConflict
	// is returned otherwise.
	CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion uint64) (uint64, error)
	// Create writes value when key is absent and returns its version.
	// gerrors.ErrKeyExists is returned when the key is already set.
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	// Close releases the backend resources.
	Close() error
}

// Write stores value using the version read by the caller: it creates the key
// when version is zero and compares-and-swaps otherwise. A lost create race is
// reported as gerrors.ErrVersionConflict so callers handle both cases the same way.
func Write(ctx context.Context, store Store, key string, value []byte, version uint64) (uint64, error) {
	if version == 0 {
		newVersion, err := store.Create(ctx, key, value)
		if errors.Is(err, gerrors.ErrKeyExists) {
			return 0, gerrors.ErrVersionConflict
		}
		return newVersion, err
	}
	return store.CompareAndSwap(ctx, key, value, version)
}

// IsTransient reports whether err is a retryable store failure
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gerrors.ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsConflict reports whether err is a rejected optimistic write
func IsConflict(err error) bool {
	return errors.Is(err, gerrors.ErrVersionConflict) || errors.Is(err, gerrors.ErrKeyExists)
}
