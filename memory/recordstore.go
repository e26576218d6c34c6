package memory

import (
	"context"
	"sync"
)

// OwnerSnapshot is the durable state persisted per owner: the full
// record collection plus its retention configuration. Stats are derived
// and never persisted.
type OwnerSnapshot struct {
	Owner   string    `json:"owner"`
	Config  Config    `json:"config"`
	Records []*Record `json:"records"`
}

// RecordStore persists owner snapshots. The Store writes a full
// snapshot after every mutation and loads one lazily on first access,
// so implementations only need whole-owner get/put semantics.
//
// Load returns (nil, nil) when the owner has no persisted state.
type RecordStore interface {
	Load(ctx context.Context, owner string) (*OwnerSnapshot, error)
	Save(ctx context.Context, snapshot *OwnerSnapshot) error
	Delete(ctx context.Context, owner string) error
	Close() error
}

// InMemoryRecordStore keeps snapshots in process memory. It is the
// default when no durable backend is configured, and the fixture of
// choice in tests.
type InMemoryRecordStore struct {
	mu        sync.RWMutex
	snapshots map[string]*OwnerSnapshot
}

// NewInMemoryRecordStore returns an empty in-process record store.
func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{snapshots: make(map[string]*OwnerSnapshot)}
}

// Load implements RecordStore.
func (s *InMemoryRecordStore) Load(_ context.Context, owner string) (*OwnerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[owner]
	if !ok {
		return nil, nil
	}
	return copySnapshot(snap), nil
}

// Save implements RecordStore.
func (s *InMemoryRecordStore) Save(_ context.Context, snapshot *OwnerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Owner] = copySnapshot(snapshot)
	return nil
}

// Delete implements RecordStore.
func (s *InMemoryRecordStore) Delete(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, owner)
	return nil
}

// Close implements RecordStore.
func (s *InMemoryRecordStore) Close() error { return nil }

func copySnapshot(snap *OwnerSnapshot) *OwnerSnapshot {
	out := &OwnerSnapshot{
		Owner:   snap.Owner,
		Config:  snap.Config,
		Records: make([]*Record, len(snap.Records)),
	}
	for i, r := range snap.Records {
		out.Records[i] = r.clone()
	}
	return out
}
