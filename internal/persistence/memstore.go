package persistence

import (
	"sync"

	"fenrir/internal/report"
)

// MemStore is an in-memory Store, idempotent by execution_id (spec §4.6,
// invariant 8). Used by tests and as a reference implementation; a
// production deployment swaps this for a real transactional store.
type MemStore struct {
	mu         sync.Mutex
	executions map[string]report.Execution
	fail       func(Batch) error
}

// NewMemStore creates an empty store. fail, if non-nil, is consulted on
// every CommitBatch call and lets tests simulate transient failures.
func NewMemStore(fail func(Batch) error) *MemStore {
	return &MemStore{executions: make(map[string]report.Execution), fail: fail}
}

// CommitBatch implements Store.
func (m *MemStore) CommitBatch(b Batch) error {
	if m.fail != nil {
		if err := m.fail(b); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range b.Executions {
		m.executions[r.ExecutionID+"/"+r.CounterpartyID] = r
	}
	return nil
}

// Count returns the number of distinct (execution_id, counterparty)
// records stored, for idempotence assertions in tests.
func (m *MemStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executions)
}
