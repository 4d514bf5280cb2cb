// Package flowcontrol provides the primitives that bound concurrency in the
// protocol engines: counting semaphores, per-ID locks, credit counters and
// bounded queues.
//
// All primitives are cooperative. A caller that cannot proceed hands over a
// continuation that runs once capacity becomes available, so no OS thread is
// ever blocked.
package flowcontrol

import "log"

// A Semaphore is a counting semaphore with a fixed capacity. Waiters are
// served in FIFO order.
type Semaphore struct {
	name     string
	capacity int
	avail    int
	peak     int
	waiters  []func()
}

// NewSemaphore creates a semaphore. A capacity smaller than 1 panics.
func NewSemaphore(name string, capacity int) *Semaphore {
	if capacity < 1 {
		log.Panicf("semaphore %s must have a positive capacity, got %d",
			name, capacity)
	}

	return &Semaphore{
		name:     name,
		capacity: capacity,
		avail:    capacity,
	}
}

// Name returns the name of the semaphore.
func (s *Semaphore) Name() string {
	return s.name
}

// Acquire takes one unit of capacity and runs fn. If no capacity is left, fn
// is queued and runs when a unit is released to it.
func (s *Semaphore) Acquire(fn func()) {
	if s.avail > 0 && len(s.waiters) == 0 {
		s.take()
		fn()

		return
	}

	s.waiters = append(s.waiters, fn)
}

// TryAcquire takes one unit of capacity if available.
func (s *Semaphore) TryAcquire() bool {
	if s.avail == 0 || len(s.waiters) > 0 {
		return false
	}

	s.take()

	return true
}

func (s *Semaphore) take() {
	s.avail--

	if s.InUse() > s.peak {
		s.peak = s.InUse()
	}
}

// Release gives one unit of capacity back. If there are waiters, the unit is
// handed to the oldest one. Releasing more than was acquired panics.
func (s *Semaphore) Release() {
	if s.avail >= s.capacity {
		log.Panicf("semaphore %s released above its capacity of %d",
			s.name, s.capacity)
	}

	if len(s.waiters) == 0 {
		s.avail++
		return
	}

	fn := s.waiters[0]
	s.waiters[0] = nil
	s.waiters = s.waiters[1:]

	fn()
}

// Capacity returns the capacity of the semaphore.
func (s *Semaphore) Capacity() int {
	return s.capacity
}

// Avail returns the number of units that can be acquired right away.
func (s *Semaphore) Avail() int {
	return s.avail
}

// InUse returns the number of units currently held.
func (s *Semaphore) InUse() int {
	return s.capacity - s.avail
}

// Peak returns the largest number of units that were held at the same time.
func (s *Semaphore) Peak() int {
	return s.peak
}

// Waiting returns the number of queued acquirers.
func (s *Semaphore) Waiting() int {
	return len(s.waiters)
}
