package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidRef is returned for a ref with an empty collection or id
var ErrInvalidRef = errors.New("docstore: invalid document reference")

// Memory is an in-process Store. Documents are deep-copied on the way in and out.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Item
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]Item)}
}

func validRef(ref Ref) error {
	if ref.Collection == "" || ref.ID == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref.Path())
	}
	return nil
}

func (m *Memory) Get(_ context.Context, ref Ref) (Item, error) {
	if err := validRef(ref); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.collections[ref.Collection][ref.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return CloneItem(item), nil
}

func (m *Memory) Set(_ context.Context, ref Ref, item Item) error {
	if err := validRef(ref); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[ref.Collection]
	if !ok {
		coll = make(map[string]Item)
		m.collections[ref.Collection] = coll
	}
	coll[ref.ID] = CloneItem(item)
	return nil
}

// Update applies all mutations or none
func (m *Memory) Update(_ context.Context, ref Ref, mutations ...Mutation) error {
	if err := validRef(ref); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.collections[ref.Collection][ref.ID]
	if !ok {
		return fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	next := CloneItem(item)
	if err := ApplyMutations(next, mutations); err != nil {
		return err
	}
	m.collections[ref.Collection][ref.ID] = next
	return nil
}

func (m *Memory) Delete(_ context.Context, ref Ref) error {
	if err := validRef(ref); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[ref.Collection], ref.ID)
	return nil
}

func (m *Memory) Query(_ context.Context, q Query) ([]Snapshot, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("%w: empty collection", ErrInvalidRef)
	}
	m.mu.RLock()
	out := make([]Snapshot, 0)
	for id, item := range m.collections[q.Collection] {
		if Matches(id, item, q.Filters) {
			out = append(out, Snapshot{ID: id, Item: CloneItem(item)})
		}
	}
	m.mu.RUnlock()

	SortSnapshots(out, q.OrderBy, q.Descending)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
