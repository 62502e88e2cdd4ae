// ==============================================================================
// FLOW STEPS & EVENTS - internal/flow/step.go
// ==============================================================================

package flow

import "kycflow/pkg/domain"

// Step is the verification flow's current screen. It is a UI projection; the
// backend's VerificationStatus stays authoritative.
type Step string

const (
	StepSelect     Step = "select"
	StepUpload     Step = "upload"
	StepSelfie     Step = "selfie"
	StepProof      Step = "proof"
	StepReview     Step = "review"
	StepSubmitting Step = "submitting"
	StepStatus     Step = "status"
)

// Event is one state machine input.
type Event interface {
	isEvent()
}

// SelectDocument chooses a document type from the catalog.
type SelectDocument struct {
	Descriptor *domain.DocumentTypeDescriptor
}

// FileStaged records that a slot was just filled (upload or capture alike).
type FileStaged struct {
	Slot domain.SlotKind
}

// EditStep re-enters an earlier capture step from review without dropping
// other filled slots.
type EditStep struct {
	Target Step
}

// SubmitRequested asks to submit the staged artifacts.
type SubmitRequested struct{}

// SubmitFinished records gateway completion, success and failure alike.
type SubmitFinished struct{}

// Restart begins a fresh attempt after a rejected or expired outcome.
type Restart struct{}

func (SelectDocument) isEvent()  {}
func (FileStaged) isEvent()      {}
func (EditStep) isEvent()        {}
func (SubmitRequested) isEvent() {}
func (SubmitFinished) isEvent()  {}
func (Restart) isEvent()         {}
