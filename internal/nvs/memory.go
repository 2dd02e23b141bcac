package nvs

import "sync"

// Op names a store operation for fault injection.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpErase  Op = "erase"
	OpCommit Op = "commit"
)

// MemStore keeps blobs in memory. It is the store used by tests and by the
// daemon when no persistent backend is configured.
type MemStore struct {
	mu        sync.Mutex
	committed map[string][]byte
	staged    staging
	faults    map[Op][]error
	commits   int
	closed    bool
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		committed: make(map[string][]byte),
		staged:    make(staging),
		faults:    make(map[Op][]error),
	}
}

// FailNext makes the next call of op return err. Calls queue up, so
// FailNext(OpCommit, e1); FailNext(OpCommit, e2) fails two commits.
func (m *MemStore) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], err)
}

func (m *MemStore) fault(op Op) error {
	q := m.faults[op]
	if len(q) == 0 {
		return nil
	}
	m.faults[op] = q[1:]
	return q[0]
}

// GetBlob implements Store.
func (m *MemStore) GetBlob(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if err := m.fault(OpGet); err != nil {
		return nil, err
	}
	if v, ok := m.staged.lookup(key); ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return cloneBytes(v), nil
	}
	v, ok := m.committed[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

// SetBlob implements Store.
func (m *MemStore) SetBlob(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := m.fault(OpSet); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	m.staged[key] = cloneBytes(value)
	return nil
}

// Erase implements Store.
func (m *MemStore) Erase(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := m.fault(OpErase); err != nil {
		return err
	}
	m.staged[key] = nil
	return nil
}

// Commit implements Store.
func (m *MemStore) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := m.fault(OpCommit); err != nil {
		return err
	}
	for k, v := range m.staged {
		if v == nil {
			delete(m.committed, k)
		} else {
			m.committed[k] = v
		}
	}
	m.staged = make(staging)
	m.commits++
	return nil
}

// Close implements Store.
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.staged = make(staging)
	return nil
}

// Durable returns the committed value for key, ignoring staged changes.
func (m *MemStore) Durable(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.committed[key]
	return cloneBytes(v), ok
}

// Commits returns the number of successful commits.
func (m *MemStore) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}
