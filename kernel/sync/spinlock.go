// Package sync provides synchronization primitives that work without an OS
// scheduler.
package sync

import (
	"sync/atomic"

	"github.com/seal9055/vfuzz/kernel/cpu"
)

// attemptsBeforeYield is the number of failed acquisition attempts after
// which Acquire invokes yieldFn.
const attemptsBeforeYield = 64

var (
	// yieldFn is invoked while spinning. It stays nil in the bootloader
	// where there is nothing to yield to; tests install runtime.Gosched.
	yieldFn func()

	// pauseFn is invoked between acquisition attempts.
	pauseFn = cpu.Pause
)

// Spinlock implements a lock where each processor trying to acquire it
// busy-waits till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the caller. Any attempt to
// re-acquire a lock already held by the caller will cause a deadlock.
func (l *Spinlock) Acquire() {
	for {
		for i := 0; i < attemptsBeforeYield; i++ {
			if l.TryToAcquire() {
				return
			}
			pauseFn()
		}

		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other processors to acquire it.
// Calling Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
