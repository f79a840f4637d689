package geofence

import (
	"sync"
)

// deviceLocks serializes evaluations per device so two concurrent samples
// for the same device cannot race on the same state row. Entries are
// reference-counted and removed once the last holder releases.
type deviceLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{
		entries: make(map[string]*lockEntry),
	}
}

// acquire blocks until the device's lock is held and returns the release func
func (l *deviceLocks) acquire(deviceID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[deviceID]
	if !ok {
		entry = &lockEntry{}
		l.entries[deviceID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, deviceID)
		}
		l.mu.Unlock()
	}
}

// count returns the number of devices currently holding or waiting on a lock
func (l *deviceLocks) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
