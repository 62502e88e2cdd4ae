// ==============================================================================
// PREVIEW HANDLES - internal/intake/preview.go
// ==============================================================================

package intake

import (
	gonanoid "github.com/matoous/go-nanoid/v2"

	"kycflow/pkg/domain"
)

// Preview is a revocable display reference for a staged file. The controller
// releases each preview exactly once: when its slot's file is replaced or at
// session teardown.
type Preview struct {
	handle  string
	release func()
}

// NewPreview wraps a display handle and its revocation callback.
func NewPreview(handle string, release func()) *Preview {
	return &Preview{handle: handle, release: release}
}

// Handle returns the display reference.
func (p *Preview) Handle() string { return p.handle }

// Release revokes the display reference. Further calls are no-ops.
func (p *Preview) Release() {
	if p.release != nil {
		p.release()
		p.release = nil
	}
}

// PreviewFactory derives display references from staged files. Injected so
// the controller is testable without a real display layer.
type PreviewFactory interface {
	NewPreview(f *domain.File) (*Preview, error)
}

// localPreviewFactory issues opaque preview:// handles with no external
// display resource behind them.
type localPreviewFactory struct{}

// NewLocalPreviewFactory returns the default factory.
func NewLocalPreviewFactory() PreviewFactory {
	return localPreviewFactory{}
}

func (localPreviewFactory) NewPreview(_ *domain.File) (*Preview, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return NewPreview("preview://"+id, func() {}), nil
}
