package authflow

import (
	"context"
	"sync"
)

// MemoryFlowStore keeps flows in-process. Used by tests and local dev.
type MemoryFlowStore struct {
	mu    sync.RWMutex
	flows map[string]Flow
}

func NewMemoryFlowStore() *MemoryFlowStore {
	return &MemoryFlowStore{flows: make(map[string]Flow)}
}

func (s *MemoryFlowStore) Get(_ context.Context, flowID string) (*Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flow, ok := s.flows[flowID]
	if !ok {
		return nil, ErrFlowNotFound
	}
	copied := flow
	return &copied, nil
}

func (s *MemoryFlowStore) Save(_ context.Context, flow *Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[flow.ID] = *flow
	return nil
}

func (s *MemoryFlowStore) Delete(_ context.Context, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, flowID)
	return nil
}
