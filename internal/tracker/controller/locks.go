package controller

import "sync"

// userLocks hands out one mutex per user id. Entries are never removed.
type userLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int]*sync.Mutex)}
}

func (l *userLocks) lock(userID int) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
