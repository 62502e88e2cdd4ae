// ==============================================================================
// SESSION RESUME STORE - internal/resume/store.go
// ==============================================================================
// Persists a compact snapshot of where the applicant left off, keyed by
// subject. Staged file bytes are never persisted; a resumed session re-stages
// its artifacts and only recovers the selected document type and step.
// ==============================================================================

package resume

import (
	"context"
	"sync"
	"time"

	"kycflow/pkg/domain"
	"kycflow/pkg/errors"
)

// Snapshot is the persisted resume state for one subject.
type Snapshot struct {
	Subject        domain.Subject `json:"subject" validate:"required"`
	DocumentTypeID string         `json:"document_type_id,omitempty"`
	Step           string         `json:"step" validate:"required"`
	SavedAt        time.Time      `json:"saved_at"`
}

// Store persists and recovers resume snapshots. Load returns
// ErrSnapshotNotFound when no snapshot exists for the subject.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, subject domain.Subject) (*Snapshot, error)
	Delete(ctx context.Context, subject domain.Subject) error
}

// MemoryStore is an in-process Store used when no Redis is configured and in
// tests.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]Snapshot)}
}

func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	if !snap.Subject.Valid() {
		return errors.ErrInvalidSubject
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Subject.ID()] = snap
	return nil
}

func (s *MemoryStore) Load(_ context.Context, subject domain.Subject) (*Snapshot, error) {
	if !subject.Valid() {
		return nil, errors.ErrInvalidSubject
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[subject.ID()]
	if !ok {
		return nil, errors.ErrSnapshotNotFound
	}
	return &snap, nil
}

func (s *MemoryStore) Delete(_ context.Context, subject domain.Subject) error {
	if !subject.Valid() {
		return errors.ErrInvalidSubject
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, subject.ID())
	return nil
}
