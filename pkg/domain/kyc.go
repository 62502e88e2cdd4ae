// Package domain defines the core entities of the KYC verification flow.
package domain

import (
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ==============================================================================
// ENUMS & STATUS TYPES
// ==============================================================================

// SlotKind identifies one required artifact input within a document checklist.
type SlotKind string

const (
	SlotFront          SlotKind = "front"
	SlotBack           SlotKind = "back"
	SlotSelfie         SlotKind = "selfie"
	SlotProofOfAddress SlotKind = "proof_of_address"
)

// SubmissionOrder is the fixed order artifacts are uploaded in, so a partial
// failure leaves a deterministic trail of which artifacts landed.
var SubmissionOrder = []SlotKind{SlotFront, SlotBack, SlotSelfie, SlotProofOfAddress}

// UploadLabel is the document_type value the backend expects for this slot.
func (k SlotKind) UploadLabel() string {
	switch k {
	case SlotFront:
		return "id_front"
	case SlotBack:
		return "id_back"
	case SlotSelfie:
		return "selfie"
	case SlotProofOfAddress:
		return "proof_of_address"
	default:
		return "other"
	}
}

// DisplayName returns the human-readable label for a slot kind.
func (k SlotKind) DisplayName() string {
	switch k {
	case SlotFront:
		return "ID Front"
	case SlotBack:
		return "ID Back"
	case SlotSelfie:
		return "Selfie"
	case SlotProofOfAddress:
		return "Proof of Address"
	default:
		return "Document"
	}
}

// VerificationStatus is the backend's authoritative verification state.
type VerificationStatus string

const (
	VerificationNotStarted VerificationStatus = "not_started"
	VerificationInProgress VerificationStatus = "in_progress"
	VerificationPending    VerificationStatus = "pending"
	VerificationApproved   VerificationStatus = "approved"
	VerificationRejected   VerificationStatus = "rejected"
	VerificationExpired    VerificationStatus = "expired"
)

// Terminal reports whether no further backend state change is expected
// without explicit user action.
func (s VerificationStatus) Terminal() bool {
	return s == VerificationApproved || s == VerificationRejected || s == VerificationExpired
}

// Restartable reports whether the flow may be restarted from this status.
func (s VerificationStatus) Restartable() bool {
	return s == VerificationRejected || s == VerificationExpired
}

// DocumentStatus is the per-document verification state reported by the backend.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentApproved DocumentStatus = "approved"
	DocumentRejected DocumentStatus = "rejected"
	DocumentExpired  DocumentStatus = "expired"
)

// ==============================================================================
// DOCUMENT TYPE CATALOG
// ==============================================================================

// DocumentTypeDescriptor is a static catalog entry describing one selectable
// document type and the artifacts it requires.
type DocumentTypeDescriptor struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	RequiredSlots     []SlotKind `json:"required_slots"`
	AcceptedMimeTypes []string   `json:"accepted_mime_types"`
	MaxFileSizeBytes  int64      `json:"max_file_size_bytes"`
}

// RequiresSlot reports whether the descriptor's checklist includes the kind.
func (d *DocumentTypeDescriptor) RequiresSlot(kind SlotKind) bool {
	for _, k := range d.RequiredSlots {
		if k == kind {
			return true
		}
	}
	return false
}

// AcceptedExtensions derives the user-facing extension list from a set of
// accepted MIME types, e.g. ["JPEG", "PNG", "PDF"].
func AcceptedExtensions(mimeTypes []string) []string {
	exts := make([]string, 0, len(mimeTypes))
	for _, mt := range mimeTypes {
		if i := strings.IndexByte(mt, '/'); i >= 0 {
			exts = append(exts, strings.ToUpper(mt[i+1:]))
		}
	}
	return exts
}

const maxDocumentFileSize = 5 * 1024 * 1024

// SelfieMimeTypes restricts selfie slots regardless of the parent descriptor.
var SelfieMimeTypes = []string{"image/jpeg", "image/png"}

// DocumentTypes is the fixed catalog of selectable document types.
var DocumentTypes = []DocumentTypeDescriptor{
	{
		ID:                "id_front",
		Name:              "ID Card",
		Description:       "Upload front and back of your government-issued ID card.",
		RequiredSlots:     []SlotKind{SlotFront, SlotBack, SlotSelfie},
		AcceptedMimeTypes: []string{"image/jpeg", "image/png", "application/pdf"},
		MaxFileSizeBytes:  maxDocumentFileSize,
	},
	{
		ID:                "proof_of_address",
		Name:              "Proof of Address",
		Description:       "Upload a recent utility bill or bank statement showing your address.",
		RequiredSlots:     []SlotKind{SlotProofOfAddress},
		AcceptedMimeTypes: []string{"image/jpeg", "image/png", "application/pdf"},
		MaxFileSizeBytes:  maxDocumentFileSize,
	},
}

// DocumentTypeByID looks up a catalog entry.
func DocumentTypeByID(id string) (*DocumentTypeDescriptor, bool) {
	for i := range DocumentTypes {
		if DocumentTypes[i].ID == id {
			return &DocumentTypes[i], true
		}
	}
	return nil, false
}

// ==============================================================================
// SUBJECT IDENTITY
// ==============================================================================

// TempIDPrefix marks provisional identifiers issued before account creation.
// The backend infers the authorization path from this prefix.
const TempIDPrefix = "temp_"

// Subject identifies whose verification a session belongs to. Exactly one of
// UserID and TempUserID is set.
type Subject struct {
	UserID     string `json:"user_id,omitempty"`
	TempUserID string `json:"temp_user_id,omitempty"`
}

// NewUserSubject builds a Subject for an authenticated user.
func NewUserSubject(userID string) (Subject, error) {
	if strings.TrimSpace(userID) == "" {
		return Subject{}, fmt.Errorf("user id must not be empty")
	}
	return Subject{UserID: userID}, nil
}

// NewTempSubject builds a Subject for a pre-registration temporary user.
func NewTempSubject(tempUserID string) (Subject, error) {
	if strings.TrimSpace(tempUserID) == "" {
		return Subject{}, fmt.Errorf("temp user id must not be empty")
	}
	return Subject{TempUserID: tempUserID}, nil
}

// GenerateTempSubject mints a fresh temporary subject identity.
func GenerateTempSubject() (Subject, error) {
	id, err := gonanoid.New()
	if err != nil {
		return Subject{}, fmt.Errorf("generate temp user id: %w", err)
	}
	return Subject{TempUserID: TempIDPrefix + id}, nil
}

// IsTemp reports whether the subject uses a temporary identity.
func (s Subject) IsTemp() bool { return s.TempUserID != "" }

// ID returns whichever identifier is set.
func (s Subject) ID() string {
	if s.TempUserID != "" {
		return s.TempUserID
	}
	return s.UserID
}

// Valid reports whether exactly one identifier is set.
func (s Subject) Valid() bool {
	return (s.UserID == "") != (s.TempUserID == "")
}

// ==============================================================================
// FILES & STATUS PAYLOADS
// ==============================================================================

// File is an owned binary artifact staged for upload.
type File struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Size returns the file length in bytes.
func (f *File) Size() int64 { return int64(len(f.Data)) }

// UploadArtifact pairs a staged file with the backend document_type label it
// is submitted under.
type UploadArtifact struct {
	DocumentType string
	File         *File
}

// DocumentRecord is one per-artifact status entry in the status payload.
type DocumentRecord struct {
	DocumentType    string         `json:"document_type"`
	Status          DocumentStatus `json:"status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// StatusResponse is the authoritative verification state fetched from the
// backend. The local step is a UI projection reconciled against it.
type StatusResponse struct {
	Status            VerificationStatus `json:"status"`
	Documents         []DocumentRecord   `json:"documents"`
	RequiredDocuments []string           `json:"required_documents"`
	NextSteps         []string           `json:"next_steps,omitempty"`
}

// UploadResponse is the backend's answer to a single document upload.
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
