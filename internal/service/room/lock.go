package room

import "sync"

// roomLocks serializes mutation of a single room's state while leaving
// different rooms fully independent. Redis guarantees atomicity per
// command, not per read-modify-write sequence, so the playback state
// machine takes the room's lock for the duration of apply.
type roomLocks struct {
	locks sync.Map
}

func newRoomLocks() *roomLocks {
	return &roomLocks{}
}

func (l *roomLocks) lock(roomId string) func() {
	mu, _ := l.locks.LoadOrStore(roomId, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()

	return mu.(*sync.Mutex).Unlock
}
