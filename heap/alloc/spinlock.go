package alloc

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a busy-wait mutual exclusion lock. There is no scheduler
// to park a waiter on, so a contended Lock keeps retrying, yielding the
// processor between attempts.
//
// The zero value is unlocked. SpinLock is not reentrant.
type SpinLock struct {
	locked atomic.Bool
}

// Lock spins until the lock is acquired.
func (s *SpinLock) Lock() {
	for !s.locked.CompareAndSwap(false, true) {
		for s.locked.Load() {
			runtime.Gosched()
		}
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (s *SpinLock) TryLock() bool {
	return s.locked.CompareAndSwap(false, true)
}

// Unlock releases the lock. Unlocking an unlocked SpinLock panics.
func (s *SpinLock) Unlock() {
	if !s.locked.CompareAndSwap(true, false) {
		panic("alloc: unlock of unlocked SpinLock")
	}
}
