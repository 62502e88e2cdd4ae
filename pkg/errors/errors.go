// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Camera / capture device errors
	ErrNoCameraDevice     = errors.New("no camera device found")
	ErrCameraPermission   = errors.New("camera access denied")
	ErrCameraBusy         = errors.New("camera is in use by another application")
	ErrCaptureUnsupported = errors.New("camera capture not supported on this platform")
	ErrPlaybackFailed     = errors.New("camera preview playback failed")
	ErrCameraNotReady     = errors.New("camera is not ready")

	// File validation errors
	ErrUnsupportedFileType = errors.New("file type not allowed")
	ErrFileTooLarge        = errors.New("file too large")
	ErrFileEmpty           = errors.New("file is empty")

	// Flow errors
	ErrInvalidTransition    = errors.New("step transition not allowed")
	ErrIncompleteSubmission = errors.New("required documents are missing")
	ErrUnknownDocumentType  = errors.New("unknown document type")
	ErrUnknownSlot          = errors.New("slot not required by selected document type")
	ErrSessionClosed        = errors.New("session is closed")
	ErrNoDocumentSelected   = errors.New("no document type selected")
	ErrInvalidSubject       = errors.New("exactly one of user id and temp user id must be set")

	// Network errors
	ErrUploadFailed = errors.New("document upload failed")
	ErrStatusFetch  = errors.New("failed to fetch verification status")

	// Resume store errors
	ErrSnapshotNotFound = errors.New("no saved session snapshot")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
