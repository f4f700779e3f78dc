package usecase

import "sync"

// lineLocks serializes mutations per line id. Entries are reference counted
// and dropped once no caller holds or waits on them.
type lineLocks struct {
	mu    sync.Mutex
	locks map[int64]*lineLock
}

type lineLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until the caller owns id and returns the matching unlock.
func (l *lineLocks) lock(id int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*lineLock)
	}
	k, ok := l.locks[id]
	if !ok {
		k = &lineLock{}
		l.locks[id] = k
	}
	k.refs++
	l.mu.Unlock()

	k.mu.Lock()
	return func() {
		k.mu.Unlock()
		l.mu.Lock()
		k.refs--
		if k.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// size reports the number of ids currently held or awaited.
func (l *lineLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
