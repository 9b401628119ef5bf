package alerts

import "sync"

// keyLocker hands out one mutex per alert key. Entries are reference counted
// and dropped once no goroutine holds or waits on them.
type keyLocker struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: make(map[Key]*keyLock)}
}

// Lock blocks until k is held and returns the function that releases it.
func (l *keyLocker) Lock(k Key) (unlock func()) {
	l.mu.Lock()
	kl, ok := l.locks[k]
	if !ok {
		kl = &keyLock{}
		l.locks[k] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.Lock()
	return func() {
		kl.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, k)
		}
		l.mu.Unlock()
	}
}

func (l *keyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
