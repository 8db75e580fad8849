package watermark

import (
	"context"
	"sync"

	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"
)

// MemoryStore keeps the watermark in process memory.
type MemoryStore struct {
	mu  sync.Mutex
	id  trades.TradeID
	set bool
}

var _ interfaces.WatermarkStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith returns a store that already holds id.
func NewMemoryStoreWith(id trades.TradeID) *MemoryStore {
	return &MemoryStore{id: id, set: true}
}

func (s *MemoryStore) Load(ctx context.Context) (trades.TradeID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.set, nil
}

func (s *MemoryStore) Save(ctx context.Context, id trades.TradeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.set = true
	return nil
}
