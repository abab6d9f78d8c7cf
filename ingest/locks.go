package ingest

import "sync"

// AccountLocks serializes work per account. Imports of different accounts
// run in parallel; two imports of one account never interleave.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock blocks until the account is free and returns its unlock func.
func (l *AccountLocks) Lock(account string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[account]
	if !ok {
		m = &sync.Mutex{}
		l.locks[account] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
