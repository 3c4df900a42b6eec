package instance

import "sync"

// TemplateLocks hands out one mutex per template id. Entries are dropped once
// no caller holds or waits on them. A nil *TemplateLocks never blocks.
type TemplateLocks struct {
	mu    sync.Mutex
	locks map[string]*templateLock
}

type templateLock struct {
	mu   sync.Mutex
	refs int
}

func NewTemplateLocks() *TemplateLocks {
	return &TemplateLocks{locks: make(map[string]*templateLock)}
}

// Lock blocks until the template's lock is held and returns its release.
func (l *TemplateLocks) Lock(templateID string) (unlock func()) {
	if l == nil {
		return func() {}
	}

	l.mu.Lock()
	tl, ok := l.locks[templateID]
	if !ok {
		tl = &templateLock{}
		l.locks[templateID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, templateID)
		}
		l.mu.Unlock()
	}
}
