// ==============================================================================
// KYC STATE MACHINE - internal/flow/machine.go
// ==============================================================================
// Pure transition rules for the verification flow. The Session applies the
// side effects (camera teardown, preview release, polling); Transition itself
// only decides the next step.
// ==============================================================================

package flow

import (
	"fmt"

	"kycflow/pkg/domain"
	"kycflow/pkg/errors"
)

// State is the snapshot Transition decides over.
type State struct {
	Step       Step
	Descriptor *domain.DocumentTypeDescriptor
	Filled     map[domain.SlotKind]bool
	Status     domain.VerificationStatus
}

// Transition returns the step that follows ev in st, or ErrInvalidTransition
// (or a more specific error) when the event is not allowed in st.
func Transition(st State, ev Event) (Step, error) {
	switch e := ev.(type) {
	case SelectDocument:
		if st.Step != StepSelect {
			return st.Step, invalid(st.Step, "select document")
		}
		if e.Descriptor == nil {
			return st.Step, errors.ErrUnknownDocumentType
		}
		return nextCaptureStep(e.Descriptor, nil), nil

	case FileStaged:
		switch st.Step {
		case StepUpload, StepSelfie, StepProof:
			return nextCaptureStep(st.Descriptor, st.Filled), nil
		default:
			return st.Step, invalid(st.Step, "stage file")
		}

	case EditStep:
		if st.Step != StepReview {
			return st.Step, invalid(st.Step, "edit")
		}
		switch e.Target {
		case StepSelfie:
			if st.Descriptor != nil && st.Descriptor.RequiresSlot(domain.SlotSelfie) {
				return StepSelfie, nil
			}
		case StepProof:
			if st.Descriptor != nil && st.Descriptor.RequiresSlot(domain.SlotProofOfAddress) {
				return StepProof, nil
			}
		}
		return st.Step, invalid(st.Step, fmt.Sprintf("edit to %s", e.Target))

	case SubmitRequested:
		if st.Step != StepReview {
			return st.Step, invalid(st.Step, "submit")
		}
		if !allRequiredFilled(st.Descriptor, st.Filled) {
			return st.Step, errors.ErrIncompleteSubmission
		}
		return StepSubmitting, nil

	case SubmitFinished:
		if st.Step != StepSubmitting {
			return st.Step, invalid(st.Step, "finish submission")
		}
		return StepStatus, nil

	case Restart:
		if st.Step != StepStatus {
			return st.Step, invalid(st.Step, "restart")
		}
		if !st.Status.Restartable() {
			return st.Step, invalid(st.Step, fmt.Sprintf("restart from %s status", st.Status))
		}
		return StepSelect, nil

	default:
		return st.Step, invalid(st.Step, "unknown event")
	}
}

// nextCaptureStep routes to the step collecting the first unfilled required
// slot, or to review when everything is staged. Document types without a back
// slot skip the second upload sub-step; proof-only types never visit upload
// or selfie.
func nextCaptureStep(desc *domain.DocumentTypeDescriptor, filled map[domain.SlotKind]bool) Step {
	if desc == nil {
		return StepSelect
	}
	for _, kind := range desc.RequiredSlots {
		if filled[kind] {
			continue
		}
		switch kind {
		case domain.SlotFront, domain.SlotBack:
			return StepUpload
		case domain.SlotSelfie:
			return StepSelfie
		case domain.SlotProofOfAddress:
			return StepProof
		}
	}
	return StepReview
}

func allRequiredFilled(desc *domain.DocumentTypeDescriptor, filled map[domain.SlotKind]bool) bool {
	if desc == nil {
		return false
	}
	for _, kind := range desc.RequiredSlots {
		if !filled[kind] {
			return false
		}
	}
	return true
}

func invalid(step Step, action string) error {
	return fmt.Errorf("%w: cannot %s at step %s", errors.ErrInvalidTransition, action, step)
}
