package pantry

import "sync"

// tenantLocks hands out one mutex per tenant. Confirm, ingest and profile
// writes hold it across their read-modify-write. Entries are refcounted and
// dropped when the last holder or waiter releases.
type tenantLocks struct {
	mu    sync.Mutex
	locks map[string]*tenantLock
}

type tenantLock struct {
	sync.Mutex
	refs int
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{locks: make(map[string]*tenantLock)}
}

// Lock acquires the tenant's mutex and returns its release func
func (l *tenantLocks) Lock(tenantID string) func() {
	l.mu.Lock()
	m, ok := l.locks[tenantID]
	if !ok {
		m = &tenantLock{}
		l.locks[tenantID] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			l.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(l.locks, tenantID)
			}
			l.mu.Unlock()
		})
	}
}

// size reports how many tenants currently hold or wait on a lock
func (l *tenantLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
