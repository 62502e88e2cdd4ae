// ==============================================================================
// MEDIA CAPTURE - internal/capture/capture.go
// ==============================================================================
// Platform capability interfaces for camera permission queries and live
// capture streams. The flow depends only on these interfaces so it can run
// against real hardware, a file-backed device, or test fakes.
// ==============================================================================

package capture

import (
	"context"
	"image"
)

// PermissionState is the result of a camera permission query.
type PermissionState string

const (
	PermissionGranted         PermissionState = "granted"
	PermissionDeniedOrUnknown PermissionState = "denied-or-unknown"
)

// Constraints describes the requested video stream.
type Constraints struct {
	Width      int
	Height     int
	FacingMode string
}

// DefaultConstraints is the preferred selfie capture setup.
func DefaultConstraints() Constraints {
	return Constraints{Width: 1280, Height: 720, FacingMode: "user"}
}

// PermissionQuery exposes the platform's permission store, when it has one.
// Implementations must not trigger a user-facing prompt.
type PermissionQuery interface {
	CameraPermission(ctx context.Context) (PermissionState, error)
}

// Device is the platform's capture capability. Implementations report
// acquisition failures with the camera sentinels from kycflow/pkg/errors.
type Device interface {
	OpenStream(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is one live video stream. Frame returns the latest decoded frame;
// ok is false until the first frame has been decoded.
type Stream interface {
	Play() error
	Frame() (img image.Image, ok bool)
	Stop()
}
