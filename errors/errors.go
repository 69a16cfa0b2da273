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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned by a store when the requested key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyExists is returned by a store when a create targets a key that already exists.
	ErrKeyExists = errors.New("key already exists")

	// ErrVersionConflict is returned when a compare-and-swap is rejected because the stored
	// version no longer matches the expected one. It is an expected outcome under contention.
	ErrVersionConflict = errors.New("version conflict")

	// ErrWatchTimeout is returned when a watch elapsed without observing a newer version.
	ErrWatchTimeout = errors.New("watch timed out")

	// ErrStoreUnavailable marks a transient store failure (timeout, connection refused...).
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrMalformedDocument is returned when a stored document cannot be decoded.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrStoreClosed is returned when a store is used after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrAlreadyStarted is returned when Start is called on a running worker.
	ErrAlreadyStarted = errors.New("already started")

	// ErrNotStarted is returned when an operation requires a running worker.
	ErrNotStarted = errors.New("not started")

	// ErrAlreadyLeaving is returned when a leave is requested twice.
	ErrAlreadyLeaving = errors.New("node is already leaving the cluster")

	// ErrNotInCluster is returned when a node operation requires cluster membership.
	ErrNotInCluster = errors.New("node is not in the cluster")

	// ErrNotAtFrontOfQueue is returned when a node tries to leave a queue it does not lead.
	ErrNotAtFrontOfQueue = errors.New("node is not at the front of the queue")

	// ErrPluginNotRegistered is returned when a configured plugin name is unknown.
	ErrPluginNotRegistered = errors.New("plugin is not registered")

	// ErrPluginAlreadyRegistered is returned when a plugin name is registered twice.
	ErrPluginAlreadyRegistered = errors.New("plugin is already registered")

	// ErrInvalidBackend is returned when the configured store backend is unknown.
	ErrInvalidBackend = errors.New("invalid store backend")
)

// NewErrStoreUnavailable wraps a client error with ErrStoreUnavailable so that callers can
// classify it as transient.
func NewErrStoreUnavailable(err error) error {
	return errors.Join(ErrStoreUnavailable, err)
}

// NewErrMalformedDocument wraps a decoding error with ErrMalformedDocument.
func NewErrMalformedDocument(key string, err error) error {
	return fmt.Errorf("key=(%s) %w: %w", key, ErrMalformedDocument, err)
}

// NewErrPluginNotRegistered formats an ErrPluginNotRegistered with the plugin name.
func NewErrPluginNotRegistered(name string) error {
	return fmt.Errorf("plugin=(%s) %w", name, ErrPluginNotRegistered)
}

// NewErrPluginAlreadyRegistered formats an ErrPluginAlreadyRegistered with the plugin name.
func NewErrPluginAlreadyRegistered(name string) error {
	return fmt.Errorf("plugin=(%s) %w", name, ErrPluginAlreadyRegistered)
}

// NewErrInvalidBackend formats an ErrInvalidBackend with the backend name.
func NewErrInvalidBackend(name string) error {
	return fmt.Errorf("backend=(%s) %w", name, ErrInvalidBackend)
}

// PanicError wraps a value recovered from a panicking worker.
type PanicError struct {
	err   error
	stack []byte
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(recovered any, stack []byte) *PanicError {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("%v", recovered)
	}
	return &PanicError{err: err, stack: stack}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

// Unwrap returns the recovered error
func (e *PanicError) Unwrap() error {
	return e.err
}

// Stack returns the goroutine stack captured at recovery time
func (e *PanicError) Stack() []byte {
	return e.stack
}
