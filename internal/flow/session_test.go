package flow

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/capture"
	"kycflow/internal/intake"
	"kycflow/internal/resume"
	"kycflow/pkg/domain"
	"kycflow/pkg/errors"
	"kycflow/pkg/logger"
)

// ------------------------------------------------------------------------------
// fakes
// ------------------------------------------------------------------------------

type fakeGateway struct {
	mu         sync.Mutex
	submitted  [][]domain.UploadArtifact
	submitErr  error
	statusResp *domain.StatusResponse
	statusErr  error

	statusFetches int
}

func (g *fakeGateway) Submit(ctx context.Context, subject domain.Subject, artifacts []domain.UploadArtifact) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitted = append(g.submitted, artifacts)
	return g.submitErr
}

func (g *fakeGateway) GetStatus(ctx context.Context, subject domain.Subject) (*domain.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusFetches++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if g.statusResp == nil {
		return &domain.StatusResponse{Status: domain.VerificationPending}, nil
	}
	return g.statusResp, nil
}

func (g *fakeGateway) setStatus(resp *domain.StatusResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusResp = resp
}

func (g *fakeGateway) submissions() [][]domain.UploadArtifact {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitted
}

func (g *fakeGateway) fetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusFetches
}

// gatedGateway stalls its first status fetch until the gate is released,
// signalling entered once the fetch is in flight.
type gatedGateway struct {
	fakeGateway
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedGateway) GetStatus(ctx context.Context, subject domain.Subject) (*domain.StatusResponse, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.fakeGateway.GetStatus(ctx, subject)
}

// countingPreviews tracks how many issued preview handles are still live.
type countingPreviews struct {
	mu       sync.Mutex
	issued   int
	released int
}

func (f *countingPreviews) NewPreview(_ *domain.File) (*intake.Preview, error) {
	f.mu.Lock()
	f.issued++
	handle := fmt.Sprintf("preview://test-%d", f.issued)
	f.mu.Unlock()
	return intake.NewPreview(handle, func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}), nil
}

func (f *countingPreviews) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issued - f.released
}

type stubStream struct {
	mu      sync.Mutex
	playing bool
	stopped bool
}

func (s *stubStream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

func (s *stubStream) Frame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.stopped {
		return nil, false
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), true
}

func (s *stubStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.playing = false
}

type stubDevice struct{}

func (stubDevice) OpenStream(_ context.Context, _ capture.Constraints) (capture.Stream, error) {
	return &stubStream{}, nil
}

// ------------------------------------------------------------------------------
// fixtures
// ------------------------------------------------------------------------------

var jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func jpegFile(name string, size int) *domain.File {
	data := make([]byte, size)
	copy(data, jpegMagic)
	return &domain.File{Name: name, MimeType: "image/jpeg", Data: data}
}

func newTestSession(t *testing.T, gw *fakeGateway, opts ...func(*Options)) (*Session, *countingPreviews) {
	t.Helper()

	previews := &countingPreviews{}
	subject, err := domain.NewUserSubject("user-session")
	require.NoError(t, err)

	o := Options{
		Subject:      subject,
		Gateway:      gw,
		Camera:       capture.NewAdapter(stubDevice{}, nil, logger.NewNop()),
		Previews:     previews,
		PollInterval: time.Hour,
		Logger:       logger.NewNop(),
	}
	for _, fn := range opts {
		fn(&o)
	}

	s, err := NewSession(o)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(nil) })
	return s, previews
}

// stageToReview drives a fresh session through upload and selfie to review.
func stageToReview(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.SelectDocumentType("id_front"))
	require.NoError(t, s.StageFile(domain.SlotFront, jpegFile("front.jpg", 1024)))
	require.NoError(t, s.StageFile(domain.SlotBack, jpegFile("back.jpg", 1024)))
	require.Equal(t, StepSelfie, s.Step())
	require.NoError(t, s.StartCamera(context.Background()))
	require.NoError(t, s.CaptureSelfie(context.Background()))
	require.Equal(t, StepReview, s.Step())
}

// ------------------------------------------------------------------------------
// tests
// ------------------------------------------------------------------------------

func TestSessionHappyPath(t *testing.T) {
	gw := &fakeGateway{statusResp: &domain.StatusResponse{Status: domain.VerificationPending}}
	s, _ := newTestSession(t, gw)

	assert.Equal(t, StepSelect, s.Step())
	stageToReview(t, s)

	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, StepStatus, s.Step())

	subs := gw.submissions()
	require.Len(t, subs, 1)
	var order []string
	for _, a := range subs[0] {
		order = append(order, a.DocumentType)
	}
	assert.Equal(t, []string{"id_front", "id_back", "selfie"}, order)

	// Submission success triggers an immediate status fetch.
	require.NotNil(t, s.LastStatus())
	assert.Equal(t, domain.VerificationPending, s.LastStatus().Status)
	assert.Equal(t, []string{
		"Your documents are under review",
		"Check back later for updates",
	}, s.NextSteps())
}

func TestSessionCameraStopsWhenLeavingSelfie(t *testing.T) {
	gw := &fakeGateway{}
	camera := capture.NewAdapter(stubDevice{}, nil, logger.NewNop())
	s, _ := newTestSession(t, gw, func(o *Options) { o.Camera = camera })

	require.NoError(t, s.SelectDocumentType("id_front"))
	require.NoError(t, s.StageFile(domain.SlotFront, jpegFile("front.jpg", 64)))
	require.NoError(t, s.StageFile(domain.SlotBack, jpegFile("back.jpg", 64)))

	require.NoError(t, s.StartCamera(context.Background()))
	assert.True(t, camera.StreamOpen())

	require.NoError(t, s.CaptureSelfie(context.Background()))
	assert.Equal(t, StepReview, s.Step())
	assert.False(t, camera.StreamOpen(), "stream must close when the selfie step is left")
}

func TestSessionCameraOnlyAtSelfieStep(t *testing.T) {
	gw := &fakeGateway{}
	s, _ := newTestSession(t, gw)

	err := s.StartCamera(context.Background())
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	require.NoError(t, s.SelectDocumentType("id_front"))
	err = s.StartCamera(context.Background())
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
}

func TestSessionRejectsFileAtWrongStep(t *testing.T) {
	gw := &fakeGateway{}
	s, _ := newTestSession(t, gw)

	err := s.StageFile(domain.SlotFront, jpegFile("front.jpg", 64))
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
}

func TestSessionSubmitFailureLandsOnStatusWithError(t *testing.T) {
	gw := &fakeGateway{
		submitErr: fmt.Errorf("%w: id_back rejected by backend", errors.ErrUploadFailed),
	}
	s, _ := newTestSession(t, gw)
	stageToReview(t, s)

	err := s.Submit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUploadFailed)

	assert.Equal(t, StepStatus, s.Step())
	assert.ErrorIs(t, s.LastError(), errors.ErrUploadFailed)
	assert.Nil(t, s.LastStatus(), "no status fetch after a failed submission")

	// Manual retry path still works from the status step.
	gw.setStatus(&domain.StatusResponse{Status: domain.VerificationInProgress})
	resp, err := s.RefreshStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationInProgress, resp.Status)
}

func TestSessionIncompleteSubmitRefused(t *testing.T) {
	gw := &fakeGateway{}
	s, _ := newTestSession(t, gw)

	require.NoError(t, s.SelectDocumentType("id_front"))
	require.NoError(t, s.StageFile(domain.SlotFront, jpegFile("front.jpg", 64)))

	err := s.Submit(context.Background())
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	assert.Empty(t, gw.submissions())
}

func TestSessionEditFromReview(t *testing.T) {
	gw := &fakeGateway{}
	s, _ := newTestSession(t, gw)
	stageToReview(t, s)

	require.NoError(t, s.Edit(StepSelfie))
	assert.Equal(t, StepSelfie, s.Step())

	// Re-capturing returns straight to review.
	require.NoError(t, s.StartCamera(context.Background()))
	require.NoError(t, s.CaptureSelfie(context.Background()))
	assert.Equal(t, StepReview, s.Step())
}

func TestSessionCloseConfirmsUnsavedChanges(t *testing.T) {
	gw := &fakeGateway{}
	s, previews := newTestSession(t, gw)

	require.NoError(t, s.SelectDocumentType("id_front"))
	require.NoError(t, s.StageFile(domain.SlotFront, jpegFile("front.jpg", 64)))
	require.Equal(t, 1, previews.live())

	// Declined confirmation keeps the session alive.
	assert.False(t, s.Close(func() bool { return false }))
	assert.False(t, s.Closed())
	assert.Equal(t, 1, previews.live())

	// Confirmed close releases every preview handle exactly once.
	assert.True(t, s.Close(func() bool { return true }))
	assert.True(t, s.Closed())
	assert.Equal(t, 0, previews.live())

	// Closing again neither asks nor double-releases.
	assert.True(t, s.Close(func() bool {
		t.Fatal("confirm must not be consulted after close")
		return false
	}))
	assert.Equal(t, 0, previews.live())
}

func TestSessionClosePristineNeedsNoConfirmation(t *testing.T) {
	gw := &fakeGateway{}
	s, _ := newTestSession(t, gw)

	assert.True(t, s.Close(func() bool {
		t.Fatal("confirm must not be consulted without unsaved changes")
		return false
	}))
}

func TestSessionTeardownFromEveryStep(t *testing.T) {
	drive := map[Step]func(t *testing.T, s *Session){
		StepSelect: func(t *testing.T, s *Session) {},
		StepUpload: func(t *testing.T, s *Session) {
			require.NoError(t, s.SelectDocumentType("id_front"))
		},
		StepSelfie: func(t *testing.T, s *Session) {
			require.NoError(t, s.SelectDocumentType("id_front"))
			require.NoError(t, s.StageFile(domain.SlotFront, jpegFile("front.jpg", 64)))
			require.NoError(t, s.StageFile(domain.SlotBack, jpegFile("back.jpg", 64)))
			require.NoError(t, s.StartCamera(context.Background()))
		},
		StepProof: func(t *testing.T, s *Session) {
			require.NoError(t, s.SelectDocumentType("proof_of_address"))
		},
		StepReview: func(t *testing.T, s *Session) {
			stageToReview(t, s)
		},
		StepStatus: func(t *testing.T, s *Session) {
			stageToReview(t, s)
			require.NoError(t, s.Submit(context.Background()))
		},
	}

	for step, fn := range drive {
		t.Run(string(step), func(t *testing.T) {
			gw := &fakeGateway{statusResp: &domain.StatusResponse{Status: domain.VerificationPending}}
			camera := capture.NewAdapter(stubDevice{}, nil, logger.NewNop())
			s, previews := newTestSession(t, gw, func(o *Options) { o.Camera = camera })

			fn(t, s)

			assert.True(t, s.Close(func() bool { return true }))
			assert.False(t, camera.StreamOpen(), "no stream may survive close at step %s", step)
			assert.Equal(t, 0, previews.live(), "no preview handle may survive close at step %s", step)

			err := s.SelectDocumentType("id_front")
			assert.ErrorIs(t, err, errors.ErrSessionClosed)
		})
	}
}

func TestSessionCloseDuringSubmitStopsPolling(t *testing.T) {
	gw := &gatedGateway{
		fakeGateway: fakeGateway{statusResp: &domain.StatusResponse{Status: domain.VerificationPending}},
		entered:     make(chan struct{}),
		gate:        make(chan struct{}),
	}
	s, _ := newTestSession(t, &gw.fakeGateway, func(o *Options) {
		o.Gateway = gw
		o.PollInterval = 10 * time.Millisecond
	})
	stageToReview(t, s)

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background()) }()

	// Close lands while the post-submit status fetch is still in flight.
	<-gw.entered
	assert.True(t, s.Close(nil))
	close(gw.gate)

	assert.ErrorIs(t, <-done, errors.ErrSessionClosed)
	assert.Nil(t, s.LastStatus(), "a fetch resolving after close must be dropped")

	// The poller must not have been started: the fetch count stays flat
	// across several poll intervals.
	time.Sleep(30 * time.Millisecond)
	before := gw.fetches()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, gw.fetches(), "polling must not survive close")
}

func TestSessionOnCloseRunsOnce(t *testing.T) {
	gw := &fakeGateway{}
	var calls int
	s, _ := newTestSession(t, gw, func(o *Options) {
		o.OnClose = func() { calls++ }
	})

	assert.True(t, s.Close(nil))
	assert.True(t, s.Close(nil))
	assert.Equal(t, 1, calls)
}

func TestSessionRestartAfterRejection(t *testing.T) {
	gw := &fakeGateway{statusResp: &domain.StatusResponse{Status: domain.VerificationRejected}}
	s, previews := newTestSession(t, gw)
	stageToReview(t, s)

	require.NoError(t, s.Submit(context.Background()))
	require.Equal(t, StepStatus, s.Step())
	require.Equal(t, domain.VerificationRejected, s.LastStatus().Status)

	require.NoError(t, s.Restart())
	assert.Equal(t, StepSelect, s.Step())
	assert.Equal(t, 0, previews.live())
	assert.Nil(t, s.Intake().Descriptor())
	assert.NoError(t, s.LastError())

	// The subject survives the restart and a new attempt can begin.
	require.NoError(t, s.SelectDocumentType("proof_of_address"))
	assert.Equal(t, StepProof, s.Step())
}

func TestSessionRestartRefusedWhilePending(t *testing.T) {
	gw := &fakeGateway{statusResp: &domain.StatusResponse{Status: domain.VerificationPending}}
	s, _ := newTestSession(t, gw)
	stageToReview(t, s)
	require.NoError(t, s.Submit(context.Background()))

	err := s.Restart()
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
}

func TestSessionResumeRestoresSelection(t *testing.T) {
	store := resume.NewMemoryStore()
	gw := &fakeGateway{}

	s1, _ := newTestSession(t, gw, func(o *Options) { o.Resume = store })
	require.NoError(t, s1.SelectDocumentType("id_front"))
	assert.True(t, s1.Close(func() bool { return true }))

	s2, _ := newTestSession(t, gw, func(o *Options) { o.Resume = store })
	applied, err := s2.Resume(context.Background())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StepUpload, s2.Step())
	require.NotNil(t, s2.Intake().Descriptor())
	assert.Equal(t, "id_front", s2.Intake().Descriptor().ID)
}

func TestSessionResumeWithoutSnapshot(t *testing.T) {
	store := resume.NewMemoryStore()
	gw := &fakeGateway{}
	s, _ := newTestSession(t, gw, func(o *Options) { o.Resume = store })

	applied, err := s.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, StepSelect, s.Step())
}

func TestSessionSubmitClearsSnapshot(t *testing.T) {
	store := resume.NewMemoryStore()
	gw := &fakeGateway{statusResp: &domain.StatusResponse{Status: domain.VerificationPending}}
	s, _ := newTestSession(t, gw, func(o *Options) { o.Resume = store })

	stageToReview(t, s)
	require.NoError(t, s.Submit(context.Background()))

	subject, err := domain.NewUserSubject("user-session")
	require.NoError(t, err)
	_, err = store.Load(context.Background(), subject)
	assert.ErrorIs(t, err, errors.ErrSnapshotNotFound)
}
