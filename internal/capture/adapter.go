// ==============================================================================
// CAPTURE ADAPTER - internal/capture/adapter.go
// ==============================================================================
// Wraps permission checks, stream acquisition, and still-frame capture into
// the file-shaped artifacts the intake controller stages.
// ==============================================================================

package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"kycflow/pkg/domain"
	"kycflow/pkg/errors"
	"kycflow/pkg/logger"
)

const jpegQuality = 95

// Adapter owns at most one open capture stream. Opening a new stream stops
// the previous one first.
type Adapter struct {
	device Device
	perms  PermissionQuery
	logger logger.Logger

	mu     sync.Mutex
	stream Stream
}

// NewAdapter builds an adapter over the platform capabilities. device may be
// nil on platforms without a capture API; perms may be nil on platforms
// without a permission store.
func NewAdapter(device Device, perms PermissionQuery, log logger.Logger) *Adapter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Adapter{device: device, perms: perms, logger: log}
}

// RequestPermission queries the current grant state without prompting.
// Platforms lacking a permission store optimistically report granted and
// defer the real answer to StartStream.
func (a *Adapter) RequestPermission(ctx context.Context) PermissionState {
	if a.perms == nil {
		return PermissionGranted
	}
	state, err := a.perms.CameraPermission(ctx)
	if err != nil {
		a.logger.Warn("Camera permission query failed", map[string]interface{}{
			"error": err.Error(),
		})
		return PermissionDeniedOrUnknown
	}
	return state
}

// StartStream acquires a live stream and begins preview playback. Any stream
// already held by this adapter is stopped first.
func (a *Adapter) StartStream(ctx context.Context, c Constraints) error {
	if a.device == nil {
		return errors.ErrCaptureUnsupported
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream != nil {
		a.stream.Stop()
		a.stream = nil
	}

	stream, err := a.device.OpenStream(ctx, c)
	if err != nil {
		return errors.Wrap(err, "open capture stream")
	}

	// Playback failure after acquisition is reported distinctly so the UI can
	// tell "camera blocked" apart from "camera acquired but preview dead".
	if err := stream.Play(); err != nil {
		stream.Stop()
		return fmt.Errorf("%w: %v", errors.ErrPlaybackFailed, err)
	}

	a.stream = stream
	a.logger.Debug("Capture stream started", map[string]interface{}{
		"width":  c.Width,
		"height": c.Height,
		"facing": c.FacingMode,
	})
	return nil
}

// CaptureFrame rasterizes the latest decoded frame into a JPEG artifact named
// by capture timestamp. Fails with ErrCameraNotReady until a frame with
// non-zero dimensions has been decoded.
func (a *Adapter) CaptureFrame() (*domain.File, error) {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()

	if stream == nil {
		return nil, errors.ErrCameraNotReady
	}

	img, ok := stream.Frame()
	if !ok || img == nil || img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, errors.ErrCameraNotReady
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.Wrap(err, "encode captured frame")
	}

	return &domain.File{
		Name:     fmt.Sprintf("selfie_%d.jpg", time.Now().UnixMilli()),
		MimeType: "image/jpeg",
		Data:     buf.Bytes(),
	}, nil
}

// StopStream releases the underlying tracks and detaches the preview sink.
// Safe to call repeatedly and on an adapter that never started a stream.
func (a *Adapter) StopStream() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream != nil {
		a.stream.Stop()
		a.stream = nil
	}
}

// StreamOpen reports whether a stream is currently held.
func (a *Adapter) StreamOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream != nil
}
