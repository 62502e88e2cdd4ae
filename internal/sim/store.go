// ==============================================================================
// SIMULATOR DOCUMENT STORE - internal/sim/store.go
// ==============================================================================
// In-memory document records for the backend simulator. One record per
// subject and document type; re-uploading replaces the record and resets its
// review state.
// ==============================================================================

package sim

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kycflow/pkg/domain"
)

// Record is one stored document with its review state.
type Record struct {
	ID              uuid.UUID
	DocumentType    string
	FileName        string
	SizeBytes       int64
	Status          domain.DocumentStatus
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store holds the simulator's documents keyed by subject identifier.
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]*Record
}

func NewStore() *Store {
	return &Store{docs: make(map[string]map[string]*Record)}
}

// AddDocument stores a fresh pending record, replacing any earlier upload of
// the same document type.
func (s *Store) AddDocument(subjectID, documentType, fileName string, size int64) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec := &Record{
		ID:           uuid.New(),
		DocumentType: documentType,
		FileName:     fileName,
		SizeBytes:    size,
		Status:       domain.DocumentPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.docs[subjectID] == nil {
		s.docs[subjectID] = make(map[string]*Record)
	}
	s.docs[subjectID][documentType] = rec
	return rec
}

// Review applies an approve/reject decision to a stored document. It reports
// whether the document exists.
func (s *Store) Review(subjectID, documentType string, status domain.DocumentStatus, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[subjectID][documentType]
	if !ok {
		return false
	}
	rec.Status = status
	rec.RejectionReason = ""
	if status == domain.DocumentRejected {
		rec.RejectionReason = reason
	}
	rec.UpdatedAt = time.Now().UTC()
	return true
}

// Documents returns the subject's records ordered by document type.
func (s *Store) Documents(subjectID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]Record, 0, len(s.docs[subjectID]))
	for _, rec := range s.docs[subjectID] {
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].DocumentType < recs[j].DocumentType })
	return recs
}

// Overall derives the subject's verification status from its records against
// the required document list.
func (s *Store) Overall(subjectID string, required []string) domain.VerificationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.docs[subjectID]
	if len(docs) == 0 {
		return domain.VerificationNotStarted
	}

	for _, rec := range docs {
		if rec.Status == domain.DocumentRejected {
			return domain.VerificationRejected
		}
	}

	missing := false
	for _, documentType := range required {
		if _, ok := docs[documentType]; !ok {
			missing = true
			break
		}
	}
	if missing {
		return domain.VerificationInProgress
	}

	for _, documentType := range required {
		if docs[documentType].Status != domain.DocumentApproved {
			return domain.VerificationPending
		}
	}
	return domain.VerificationApproved
}
