// ==============================================================================
// FILE-BACKED CAPTURE DEVICE - internal/capture/filedevice.go
// ==============================================================================
// Serves still frames from an image file on disk. Used by the CLI driver and
// tests in place of real camera hardware.
// ==============================================================================

package capture

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"kycflow/pkg/errors"
)

// FileDevice is a Device whose single "camera" replays a still image.
type FileDevice struct {
	Path string
}

// NewFileDevice builds a device serving frames from the image at path.
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{Path: path}
}

func (d *FileDevice) OpenStream(_ context.Context, _ Constraints) (Stream, error) {
	if d.Path == "" {
		return nil, errors.ErrNoCameraDevice
	}

	f, err := os.Open(d.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNoCameraDevice
		}
		if os.IsPermission(err) {
			return nil, errors.ErrCameraPermission
		}
		return nil, errors.Wrap(err, "open capture source")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "decode capture source")
	}

	return &fileStream{img: img}, nil
}

type fileStream struct {
	img     image.Image
	playing bool
	stopped bool
}

func (s *fileStream) Play() error {
	if s.stopped {
		return errors.ErrCameraNotReady
	}
	s.playing = true
	return nil
}

func (s *fileStream) Frame() (image.Image, bool) {
	if !s.playing || s.stopped {
		return nil, false
	}
	return s.img, true
}

func (s *fileStream) Stop() {
	s.stopped = true
	s.playing = false
}
