package checkpoint

import (
	"cmp"
	"slices"
	"sync"
)

// MemoryStore keeps checkpoints in process memory.
// Checkpoints are stored encoded, so Load behaves like SQLiteStore.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]map[string]memoryEntry // runID -> nodeID -> entry
	closed bool
}

type memoryEntry struct {
	cp   Checkpoint
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[string]memoryEntry)}
}

// Save implements Store.
func (m *MemoryStore) Save(cp Checkpoint) error {
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	if m.runs[cp.RunID] == nil {
		m.runs[cp.RunID] = make(map[string]memoryEntry)
	}
	m.runs[cp.RunID][cp.NodeID] = memoryEntry{cp: cp, data: data}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID, nodeID string) (Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Checkpoint{}, ErrStoreClosed
	}
	e, ok := m.runs[runID][nodeID]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	return Unmarshal(e.data)
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.runs[runID]))
	for _, e := range m.runs[runID] {
		infos = append(infos, e.cp.info(len(e.data)))
	}
	slices.SortFunc(infos, func(a, b Info) int { return cmp.Compare(a.Sequence, b.Sequence) })
	return infos, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs() ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	runs := make([]Run, 0, len(m.runs))
	for runID, nodes := range m.runs {
		r := Run{RunID: runID, Stages: len(nodes)}
		for _, e := range nodes {
			if r.Pipeline == "" {
				r.Pipeline = e.cp.Pipeline
			}
			if r.Started.IsZero() || e.cp.Timestamp.Before(r.Started) {
				r.Started = e.cp.Timestamp
			}
		}
		runs = append(runs, r)
	}
	slices.SortFunc(runs, func(a, b Run) int {
		if c := a.Started.Compare(b.Started); c != 0 {
			return c
		}
		return cmp.Compare(a.RunID, b.RunID)
	})
	return runs, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.runs = nil
	return nil
}

// Len returns the number of checkpoints across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, nodes := range m.runs {
		n += len(nodes)
	}
	return n
}
