package dataset

import (
	"context"
	"slices"
	"sync"

	"github.com/lox/drillboard/internal/models"
)

var _ Store = (*Memory)(nil)

// Memory is a process-local Store. It keeps private copies of the records
// it is given and hands out copies on read.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]models.Record
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]models.Record)}
}

func (m *Memory) Put(_ context.Context, wellID string, records []models.Record) error {
	cp := make([]models.Record, len(records))
	copy(cp, records)

	m.mu.Lock()
	m.data[wellID] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, wellID string) ([]models.Record, error) {
	records, _ := m.lookup(wellID)
	return records, nil
}

func (m *Memory) Contains(_ context.Context, wellID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[wellID]) > 0, nil
}

// Delete drops a well's dataset.
func (m *Memory) Delete(wellID string) {
	m.mu.Lock()
	delete(m.data, wellID)
	m.mu.Unlock()
}

// lookup returns a copy of the dataset and whether one was put at all,
// including an empty one.
func (m *Memory) lookup(wellID string) ([]models.Record, bool) {
	m.mu.RLock()
	records, ok := m.data[wellID]
	m.mu.RUnlock()
	if !ok {
		return []models.Record{}, false
	}
	return slices.Clone(records), true
}
