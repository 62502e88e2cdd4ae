// ==============================================================================
// DOCUMENT INTAKE CONTROLLER - internal/intake/controller.go
// ==============================================================================
// Validates and stages artifacts for the slots required by the selected
// document type. Purely local: no network calls, so the review step can be
// re-entered without re-uploading anything.
// ==============================================================================

package intake

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"kycflow/pkg/domain"
	"kycflow/pkg/errors"
	"kycflow/pkg/logger"
)

// ==============================================================================
// VALIDATION ERRORS
// ==============================================================================

// UnsupportedFileTypeError reports a file outside the slot's accepted MIME set.
type UnsupportedFileTypeError struct {
	Slot     domain.SlotKind
	Accepted []string
}

func (e *UnsupportedFileTypeError) Error() string {
	exts := domain.AcceptedExtensions(e.Accepted)
	return fmt.Sprintf("please upload a %s file", strings.Join(exts, " or "))
}

func (e *UnsupportedFileTypeError) Unwrap() error { return errors.ErrUnsupportedFileType }

// FileTooLargeError reports a file over the descriptor's size limit.
type FileTooLargeError struct {
	LimitBytes int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file is too large: maximum size is %d MB", e.LimitBytes/(1024*1024))
}

func (e *FileTooLargeError) Unwrap() error { return errors.ErrFileTooLarge }

// ==============================================================================
// SLOTS & CONTROLLER
// ==============================================================================

// Slot is one required artifact input for the selected document type.
type Slot struct {
	Kind    domain.SlotKind
	File    *domain.File
	Preview *Preview
}

// Filled reports whether the slot holds a file.
func (s *Slot) Filled() bool { return s.File != nil }

// Controller stages artifacts for the currently selected document type.
type Controller struct {
	previews PreviewFactory
	logger   logger.Logger

	descriptor *domain.DocumentTypeDescriptor
	slots      []*Slot
	dirty      bool
}

// NewController builds a controller. previews may be nil, in which case the
// local factory is used.
func NewController(previews PreviewFactory, log logger.Logger) *Controller {
	if previews == nil {
		previews = NewLocalPreviewFactory()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Controller{previews: previews, logger: log}
}

// SelectDocumentType resets all slots to empty for the descriptor's checklist
// and marks the session as having unsubmitted changes.
func (c *Controller) SelectDocumentType(desc *domain.DocumentTypeDescriptor) {
	c.releasePreviews()
	c.descriptor = desc
	c.slots = make([]*Slot, 0, len(desc.RequiredSlots))
	for _, kind := range desc.RequiredSlots {
		c.slots = append(c.slots, &Slot{Kind: kind})
	}
	c.dirty = true
}

// Descriptor returns the selected document type, or nil before selection.
func (c *Controller) Descriptor() *domain.DocumentTypeDescriptor { return c.descriptor }

// Slot returns the staged slot of the given kind.
func (c *Controller) Slot(kind domain.SlotKind) (*Slot, bool) {
	for _, s := range c.slots {
		if s.Kind == kind {
			return s, true
		}
	}
	return nil, false
}

// AcceptFile validates the file against the slot's constraints and stages it,
// replacing (and releasing the preview of) any prior file in that slot. The
// slot is left untouched on any validation failure.
func (c *Controller) AcceptFile(kind domain.SlotKind, file *domain.File) error {
	if c.descriptor == nil {
		return errors.ErrNoDocumentSelected
	}
	slot, ok := c.Slot(kind)
	if !ok {
		return errors.ErrUnknownSlot
	}

	accepted := c.descriptor.AcceptedMimeTypes
	if kind == domain.SlotSelfie {
		accepted = domain.SelfieMimeTypes
	}

	if err := validateFile(kind, file, accepted, c.descriptor.MaxFileSizeBytes); err != nil {
		c.logger.Debug("File rejected", map[string]interface{}{
			"slot":      string(kind),
			"file_name": file.Name,
			"mime_type": file.MimeType,
			"size":      file.Size(),
			"error":     err.Error(),
		})
		return err
	}

	preview, err := c.previews.NewPreview(file)
	if err != nil {
		return errors.Wrap(err, "derive preview")
	}

	// Replacing a slot's file releases the superseded handle before the new
	// one is assigned; never two live handles for one slot.
	if slot.Preview != nil {
		slot.Preview.Release()
	}
	slot.File = file
	slot.Preview = preview
	c.dirty = true

	return nil
}

// validateFile checks the declared MIME type, the actual content, and the
// size limit.
func validateFile(kind domain.SlotKind, file *domain.File, accepted []string, maxBytes int64) error {
	if file == nil || file.Size() == 0 {
		return errors.ErrFileEmpty
	}

	if !mimeAllowed(file.MimeType, accepted) {
		return &UnsupportedFileTypeError{Slot: kind, Accepted: accepted}
	}

	// Sniff the bytes too: a renamed executable should not pass as a PDF.
	sniffed := mimetype.Detect(file.Data)
	if !mimetype.EqualsAny(sniffed.String(), accepted...) {
		return &UnsupportedFileTypeError{Slot: kind, Accepted: accepted}
	}

	if file.Size() > maxBytes {
		return &FileTooLargeError{LimitBytes: maxBytes}
	}

	return nil
}

func mimeAllowed(mt string, accepted []string) bool {
	for _, a := range accepted {
		if strings.EqualFold(mt, a) {
			return true
		}
	}
	return false
}

// AllSlotsFilled reports whether every required slot holds a file.
func (c *Controller) AllSlotsFilled() bool {
	if c.descriptor == nil {
		return false
	}
	for _, s := range c.slots {
		if !s.Filled() {
			return false
		}
	}
	return true
}

// FilledSlots returns the staged slots that hold a file, in the fixed
// submission order.
func (c *Controller) FilledSlots() []*Slot {
	filled := make([]*Slot, 0, len(c.slots))
	for _, kind := range domain.SubmissionOrder {
		if s, ok := c.Slot(kind); ok && s.Filled() {
			filled = append(filled, s)
		}
	}
	return filled
}

// FilledKinds reports which slot kinds currently hold a file.
func (c *Controller) FilledKinds() map[domain.SlotKind]bool {
	filled := make(map[domain.SlotKind]bool, len(c.slots))
	for _, s := range c.slots {
		if s.Filled() {
			filled[s.Kind] = true
		}
	}
	return filled
}

// HasUnsavedChanges reports whether staged artifacts have not been submitted.
func (c *Controller) HasUnsavedChanges() bool { return c.dirty }

// MarkSubmitted clears the unsaved-changes gate after a successful submission.
func (c *Controller) MarkSubmitted() { c.dirty = false }

// Reset releases every preview handle and drops all staged state. Used on
// restart and at session teardown; safe to call repeatedly.
func (c *Controller) Reset() {
	c.releasePreviews()
	c.descriptor = nil
	c.slots = nil
	c.dirty = false
}

func (c *Controller) releasePreviews() {
	for _, s := range c.slots {
		if s.Preview != nil {
			s.Preview.Release()
			s.Preview = nil
		}
		s.File = nil
	}
}
