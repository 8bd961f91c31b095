package services

import "sync"

// assetLocks hands out one mutex per asset id and forgets it once nobody
// holds or waits for it.
type assetLocks struct {
	mu    sync.Mutex
	locks map[uint64]*assetLock
}

type assetLock struct {
	sync.Mutex
	refs int
}

func newAssetLocks() *assetLocks {
	return &assetLocks{locks: make(map[uint64]*assetLock)}
}

// lock blocks until the caller owns the asset and returns the release func.
func (l *assetLocks) lock(id uint64) func() {
	l.mu.Lock()
	al, ok := l.locks[id]
	if !ok {
		al = &assetLock{}
		l.locks[id] = al
	}
	al.refs++
	l.mu.Unlock()

	al.Lock()
	return func() {
		al.Unlock()

		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *assetLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
