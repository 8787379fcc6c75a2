// Package idgen issues document ids and message timestamps.
package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// Generator hands out random ids for rooms, users, calls and files, time-ordered ids for messages,
// and millisecond timestamps that never repeat or go backwards within the process.
type Generator struct {
	node *snowflake.Node
	now  func() time.Time

	mu   sync.Mutex
	last int64
}

// New creates a generator for snowflake node nodeID (0-1023)
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node, now: time.Now}, nil
}

// NewID returns a random UUID string
func (g *Generator) NewID() string {
	return uuid.New().String()
}

// MessageID returns a time-ordered snowflake id
func (g *Generator) MessageID() string {
	return g.node.Generate().String()
}

// Now returns the current time in epoch milliseconds, strictly greater than any earlier result
func (g *Generator) Now() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts := g.now().UnixMilli()
	if ts <= g.last {
		ts = g.last + 1
	}
	g.last = ts
	return ts
}
