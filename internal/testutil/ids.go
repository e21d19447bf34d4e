package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator returns UUID-shaped IDs that count up from 1.
//
// The IDs sort in generation order like UUIDv7 does, which keeps golden
// traces stable.
//
// Thread-safety: SequentialIDGenerator is safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu  sync.Mutex
	seq int64
}

// NewSequentialIDGenerator creates a generator whose first ID ends in 1.
func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{}
}

// Generate returns the next ID.
//
// Implements engine.IDGenerator interface.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.seq)
}

// Reset restarts the sequence. After Reset(), the next ID ends in 1.
func (g *SequentialIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
