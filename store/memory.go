package store

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/flowedit/types"
)

// MemoryStore keeps workflows in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*types.Workflow
	now       func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{workflows: make(map[string]*types.Workflow), now: time.Now}
}

func (s *MemoryStore) ListWorkflows(_ context.Context) ([]types.WorkflowSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.WorkflowSummary, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf.Summary())
	}
	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) GetWorkflow(_ context.Context, id string) (*types.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return clone(wf)
}

func (s *MemoryStore) SaveWorkflow(_ context.Context, wf *types.Workflow) (*types.Workflow, error) {
	cp, err := prepare(wf, s.now())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.workflows[cp.ID] = cp
	s.mu.Unlock()
	return clone(cp)
}

func (s *MemoryStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return ErrWorkflowNotFound
	}
	delete(s.workflows, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
