// ==============================================================================
// NEXT STEPS - internal/status/nextsteps.go
// ==============================================================================

package status

import (
	"fmt"

	"kycflow/pkg/domain"
)

// DeriveNextSteps produces the user-facing guidance for a status response.
// Backend-provided steps are used as-is when present; otherwise the steps are
// derived from the status and the document records.
func DeriveNextSteps(resp *domain.StatusResponse) []string {
	if resp == nil {
		return nil
	}
	if len(resp.NextSteps) > 0 {
		return resp.NextSteps
	}

	switch resp.Status {
	case domain.VerificationNotStarted:
		return []string{"Upload a government-issued ID"}

	case domain.VerificationInProgress:
		return missingDocumentSteps(resp)

	case domain.VerificationPending:
		return []string{
			"Your documents are under review",
			"Check back later for updates",
		}

	case domain.VerificationRejected:
		return rejectedDocumentSteps(resp)

	default:
		return nil
	}
}

// missingDocumentSteps lists an upload prompt for each required document not
// yet present in the records, in the backend's required order.
func missingDocumentSteps(resp *domain.StatusResponse) []string {
	uploaded := make(map[string]bool, len(resp.Documents))
	for _, doc := range resp.Documents {
		uploaded[doc.DocumentType] = true
	}

	var steps []string
	for _, required := range resp.RequiredDocuments {
		if uploaded[required] {
			continue
		}
		steps = append(steps, uploadPrompt(required))
	}
	return steps
}

// rejectedDocumentSteps leads with a re-upload instruction followed by one
// line per rejected document naming its reason.
func rejectedDocumentSteps(resp *domain.StatusResponse) []string {
	steps := []string{"Some documents were rejected. Please re-upload them."}
	for _, doc := range resp.Documents {
		if doc.Status != domain.DocumentRejected {
			continue
		}
		line := fmt.Sprintf("- %s", documentDisplayName(doc.DocumentType))
		if doc.RejectionReason != "" {
			line = fmt.Sprintf("%s: %s", line, doc.RejectionReason)
		}
		steps = append(steps, line)
	}
	return steps
}

func uploadPrompt(documentType string) string {
	switch documentType {
	case "id_front":
		return "Upload the front of your ID"
	case "id_back":
		return "Upload the back of your ID"
	case "selfie":
		return "Upload a selfie"
	case "proof_of_address":
		return "Upload a proof of address"
	default:
		return fmt.Sprintf("Upload %s", documentDisplayName(documentType))
	}
}

func documentDisplayName(documentType string) string {
	for _, kind := range domain.SubmissionOrder {
		if kind.UploadLabel() == documentType {
			return kind.DisplayName()
		}
	}
	return documentType
}
