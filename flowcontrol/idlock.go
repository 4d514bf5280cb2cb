package flowcontrol

import (
	"fmt"
	"log"
)

// IDLock serializes the transactions that share a protocol ID. It keeps one
// semaphore of capacity one per ID, created on first use.
type IDLock struct {
	name  string
	locks map[uint32]*Semaphore
}

// NewIDLock creates an empty IDLock.
func NewIDLock(name string) *IDLock {
	return &IDLock{
		name:  name,
		locks: make(map[uint32]*Semaphore),
	}
}

// Lock runs fn when the ID is not held by anyone else.
func (l *IDLock) Lock(id uint32, fn func()) {
	l.get(id).Acquire(fn)
}

// TryLock takes the ID if it is free.
func (l *IDLock) TryLock(id uint32) bool {
	return l.get(id).TryAcquire()
}

// Unlock releases the ID and hands it to the next waiter, if any. The
// semaphore of an ID is dropped once nobody holds or waits for it.
func (l *IDLock) Unlock(id uint32) {
	s, ok := l.locks[id]
	if !ok {
		log.Panicf("%s: unlocking id %d that is not locked", l.name, id)
	}

	s.Release()

	if s.InUse() == 0 && s.Waiting() == 0 {
		delete(l.locks, id)
	}
}

// Held tells if the ID is currently held.
func (l *IDLock) Held(id uint32) bool {
	s, ok := l.locks[id]

	return ok && s.InUse() > 0
}

// Len returns the number of IDs that are held or waited for.
func (l *IDLock) Len() int {
	return len(l.locks)
}

func (l *IDLock) get(id uint32) *Semaphore {
	s, ok := l.locks[id]
	if !ok {
		s = NewSemaphore(fmt.Sprintf("%s[%d]", l.name, id), 1)
		l.locks[id] = s
	}

	return s
}
