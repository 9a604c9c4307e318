// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package spin provides the busy-wait primitives shared between sequential
// firmware code and trap handlers.
//
// There is no scheduler to yield to, a waiter simply spins. Neither primitive
// supports re-entrancy: a trap handler that re-acquires a lock already held by
// the code it interrupted deadlocks.
package spin

import (
	"sync/atomic"
)

// Yield is invoked on every failed acquisition attempt. On hardware it is a
// no-op, the host simulation replaces it with runtime.Gosched.
var Yield = func() {}

// Lock implements a test-and-set spinlock.
type Lock struct {
	state uint32
}

// Acquire blocks until the lock is held by the caller.
func (l *Lock) Acquire() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		Yield()
	}
}

// TryAcquire attempts to acquire the lock without waiting and reports whether
// it succeeded.
func (l *Lock) TryAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock. Calling Release on a free lock has no
// effect.
func (l *Lock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// Once states
const (
	incomplete uint32 = iota
	running
	complete
)

// Once runs an initializer at most once and lets other callers wait for its
// completion.
type Once struct {
	state uint32
}

// Do runs fn if, and only if, no other call to Do has started before it. It
// reports whether fn was executed.
func (o *Once) Do(fn func()) bool {
	if !atomic.CompareAndSwapUint32(&o.state, incomplete, running) {
		return false
	}

	fn()
	atomic.StoreUint32(&o.state, complete)

	return true
}

// Wait spins until the initializer passed to Do has returned.
func (o *Once) Wait() {
	for atomic.LoadUint32(&o.state) != complete {
		Yield()
	}
}

// Done reports whether the initializer has completed.
func (o *Once) Done() bool {
	return atomic.LoadUint32(&o.state) == complete
}
