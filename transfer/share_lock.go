package transfer

import "sync"

// LockMode is the access a LockFunc is asked for.
type LockMode uint8

const (
	LockShared LockMode = iota + 1
	LockExclusive
)

func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	default:
		return "mode(?)"
	}
}

// LockFunc acquires cat in mode.
type LockFunc func(cat Category, mode LockMode)

// UnlockFunc releases cat, whichever mode it was acquired in.
type UnlockFunc func(cat Category)

// rwLock is a reader/writer lock released through a single Unlock,
// regardless of the mode it was taken in. state is -1 while a writer holds
// it and the reader count otherwise.
type rwLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state int
}

func newRWLock() *rwLock {
	l := &rwLock{}
	l.cond = sync.NewCond(&l.mu)

	return l
}

func (l *rwLock) Lock(mode LockMode) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if mode == LockShared {
		for l.state < 0 {
			l.cond.Wait()
		}
		l.state++
		return
	}

	for l.state != 0 {
		l.cond.Wait()
	}
	l.state = -1
}

func (l *rwLock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.state < 0:
		l.state = 0
	case l.state > 0:
		l.state--
	}
	l.cond.Broadcast()
}

// categoryLocks is one rwLock per share category.
type categoryLocks [numCategories]*rwLock

func newCategoryLocks() *categoryLocks {
	var l categoryLocks
	for i := range l {
		l[i] = newRWLock()
	}

	return &l
}

func (l *categoryLocks) lock(cat Category, mode LockMode) {
	if cat.valid() {
		l[cat-1].Lock(mode)
	}
}

func (l *categoryLocks) unlock(cat Category) {
	if cat.valid() {
		l[cat-1].Unlock()
	}
}
