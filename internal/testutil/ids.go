package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs hands out "<prefix>-0001", "<prefix>-0002", ... in order.
//
// Stands in for uuid.NewV7 wherever a test pins record ids in golden output.
//
// Thread-safety: Next is safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix means "id".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequenceIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
