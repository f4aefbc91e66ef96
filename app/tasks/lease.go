package tasks

import "sync"

// LeaseSet grants at most one holder per source id at a time.
type LeaseSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLeaseSet() *LeaseSet {
	return &LeaseSet{held: make(map[string]struct{})}
}

// TryAcquire takes the lease for id and reports whether it was free.
func (l *LeaseSet) TryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[id]; ok {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

func (l *LeaseSet) Release(id string) {
	l.mu.Lock()
	delete(l.held, id)
	l.mu.Unlock()
}

func (l *LeaseSet) Held(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.held[id]
	return ok
}

func (l *LeaseSet) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.held)
}
