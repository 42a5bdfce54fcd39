package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Memory is an in-process Repository
type Memory struct {
	mu     sync.RWMutex
	cycles map[model.CycleID]*model.Cycle
}

func NewMemory() *Memory {
	return &Memory{cycles: make(map[model.CycleID]*model.Cycle)}
}

func (m *Memory) PutCycle(ctx context.Context, cycle *model.Cycle) error {
	if cycle.ID == "" {
		return goerr.New("cycle ID is empty")
	}

	copied := *cycle
	copied.Commands = append([]model.CommandOutcome(nil), cycle.Commands...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles[cycle.ID] = &copied
	return nil
}

func (m *Memory) GetCycle(ctx context.Context, id model.CycleID) (*model.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cycle, ok := m.cycles[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "no such cycle", goerr.V("cycle_id", id))
	}
	copied := *cycle
	return &copied, nil
}

func (m *Memory) ListCycles(ctx context.Context, offset, limit int) ([]*model.Cycle, error) {
	m.mu.RLock()
	all := make([]*model.Cycle, 0, len(m.cycles))
	for _, c := range m.cycles {
		copied := *c
		all = append(all, &copied)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	return paginate(all, offset, limit), nil
}

func (m *Memory) Close() error {
	return nil
}

func paginate(cycles []*model.Cycle, offset, limit int) []*model.Cycle {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(cycles) {
		return []*model.Cycle{}
	}
	cycles = cycles[offset:]
	if limit > 0 && limit < len(cycles) {
		cycles = cycles[:limit]
	}
	return cycles
}
