// ==============================================================================
// VERIFICATION SESSION - internal/flow/session.go
// ==============================================================================
// Session wires the transition rules to their side effects: staging files,
// camera lifecycle, submission, polling, and teardown. All exported methods
// are safe for concurrent use. The mutex is never held across a network call.
// ==============================================================================

package flow

import (
	"context"
	"sync"
	"time"

	"kycflow/internal/capture"
	"kycflow/internal/intake"
	"kycflow/internal/resume"
	"kycflow/internal/status"
	"kycflow/pkg/domain"
	"kycflow/pkg/errors"
	"kycflow/pkg/logger"
)

// Gateway is the backend surface a session needs: ordered submission and
// status fetches.
type Gateway interface {
	Submit(ctx context.Context, subject domain.Subject, artifacts []domain.UploadArtifact) error
	GetStatus(ctx context.Context, subject domain.Subject) (*domain.StatusResponse, error)
}

// Options configures a session. Gateway and Subject are required.
type Options struct {
	Subject      domain.Subject
	Gateway      Gateway
	Camera       *capture.Adapter
	Previews     intake.PreviewFactory
	Resume       resume.Store
	PollInterval time.Duration
	Constraints  capture.Constraints
	Logger       logger.Logger
	OnClose      func()
}

// Session drives one verification attempt from document selection to a
// terminal status.
type Session struct {
	log         logger.Logger
	subject     domain.Subject
	gw          Gateway
	camera      *capture.Adapter
	store       resume.Store
	poller      *status.Poller
	constraints capture.Constraints

	mu         sync.Mutex
	intake     *intake.Controller
	step       Step
	lastStatus *domain.StatusResponse
	lastErr    error
	closed     bool
	closeOnce  sync.Once
	onClose    func()
}

// NewSession builds a session starting at the document selection step.
func NewSession(opts Options) (*Session, error) {
	if !opts.Subject.Valid() {
		return nil, errors.ErrInvalidSubject
	}
	if opts.Gateway == nil {
		return nil, errors.Wrap(errors.ErrStatusFetch, "session requires a gateway")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	camera := opts.Camera
	if camera == nil {
		camera = capture.NewAdapter(nil, nil, log)
	}
	constraints := opts.Constraints
	if constraints == (capture.Constraints{}) {
		constraints = capture.DefaultConstraints()
	}

	s := &Session{
		log:         log,
		subject:     opts.Subject,
		gw:          opts.Gateway,
		camera:      camera,
		store:       opts.Resume,
		constraints: constraints,
		intake:      intake.NewController(opts.Previews, log),
		step:        StepSelect,
		onClose:     opts.OnClose,
	}
	s.poller = status.NewPoller(opts.Gateway, opts.Subject, opts.PollInterval, log, s.applyStatus)
	return s, nil
}

// Subject returns the identity this session verifies.
func (s *Session) Subject() domain.Subject { return s.subject }

// Step returns the current flow step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Intake exposes the staged artifacts for inspection.
func (s *Session) Intake() *intake.Controller {
	return s.intake
}

// LastStatus returns the most recent backend status, or nil before the first
// successful fetch.
func (s *Session) LastStatus() *domain.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

// LastError returns the latest submission error, or nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// NextSteps derives the user-facing guidance from the last known status.
func (s *Session) NextSteps() []string {
	return status.DeriveNextSteps(s.LastStatus())
}

// SelectDocumentType picks a catalog entry by id and advances to its first
// collection step.
func (s *Session) SelectDocumentType(id string) error {
	desc, ok := domain.DocumentTypeByID(id)
	if !ok {
		return errors.ErrUnknownDocumentType
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	next, err := Transition(s.stateLocked(), SelectDocument{Descriptor: desc})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.intake.SelectDocumentType(desc)
	s.applyStepLocked(next)
	s.mu.Unlock()

	s.persistSnapshot()
	return nil
}

// StageFile validates and stages a file into the given slot, then advances to
// the next unfilled step. Validation failures leave the step and the slot
// unchanged.
func (s *Session) StageFile(kind domain.SlotKind, file *domain.File) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	// The transition is checked before staging so a file arriving at the
	// wrong step is rejected without touching the slot.
	if _, err := Transition(s.stateLocked(), FileStaged{Slot: kind}); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.intake.AcceptFile(kind, file); err != nil {
		s.mu.Unlock()
		return err
	}
	next, err := Transition(s.stateLocked(), FileStaged{Slot: kind})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.applyStepLocked(next)
	s.mu.Unlock()

	s.persistSnapshot()
	return nil
}

// RequestCameraPermission queries the camera grant state.
func (s *Session) RequestCameraPermission(ctx context.Context) capture.PermissionState {
	return s.camera.RequestPermission(ctx)
}

// StartCamera opens the capture stream for the selfie step.
func (s *Session) StartCamera(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	if s.step != StepSelfie {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInvalidTransition, "camera only opens at the selfie step")
	}
	s.mu.Unlock()

	return s.camera.StartStream(ctx, s.constraints)
}

// CaptureSelfie grabs a frame from the open stream, stages it into the selfie
// slot, and advances. Leaving the selfie step stops the stream.
func (s *Session) CaptureSelfie(ctx context.Context) error {
	frame, err := s.camera.CaptureFrame()
	if err != nil {
		return err
	}
	return s.StageFile(domain.SlotSelfie, frame)
}

// Edit jumps back from review to re-capture the selfie or proof.
func (s *Session) Edit(target Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSessionClosed
	}
	next, err := Transition(s.stateLocked(), EditStep{Target: target})
	if err != nil {
		return err
	}
	s.applyStepLocked(next)
	return nil
}

// Submit uploads all staged artifacts in checklist order. Success starts the
// status poller with an immediate first fetch; failure still lands on the
// status step with the error recorded for retry.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	next, err := Transition(s.stateLocked(), SubmitRequested{})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.applyStepLocked(next)
	artifacts := s.artifactsLocked()
	s.mu.Unlock()

	submitErr := s.gw.Submit(ctx, s.subject, artifacts)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	next, terr := Transition(s.stateLocked(), SubmitFinished{})
	if terr == nil {
		s.applyStepLocked(next)
	}
	if submitErr != nil {
		s.lastErr = submitErr
		s.mu.Unlock()
		s.log.Error("submission failed", map[string]interface{}{
			"subject": s.subject.ID(),
			"error":   submitErr.Error(),
		})
		s.persistSnapshot()
		return submitErr
	}
	s.lastErr = nil
	s.intake.MarkSubmitted()
	s.mu.Unlock()

	if _, err := s.poller.Refresh(ctx); err != nil {
		// The submission itself succeeded; the poller retries on schedule.
		s.log.Warn("initial status fetch failed", map[string]interface{}{
			"subject": s.subject.ID(),
			"error":   err.Error(),
		})
	}
	// Close may have landed while the refresh was in flight. Starting the
	// poller is ordered against Close under the mutex so a torn-down
	// session never picks up polling.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	s.poller.Start(context.Background())
	s.mu.Unlock()

	s.deleteSnapshot()
	return nil
}

// RefreshStatus fetches the status once, outside the polling cadence. On
// failure the last known status is kept and the error returned.
func (s *Session) RefreshStatus(ctx context.Context) (*domain.StatusResponse, error) {
	if s.isClosed() {
		return nil, errors.ErrSessionClosed
	}
	return s.poller.Refresh(ctx)
}

// Restart returns to document selection after a rejected or expired outcome,
// dropping all staged artifacts but keeping the subject identity.
func (s *Session) Restart() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	next, err := Transition(s.stateLocked(), Restart{})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.intake.Reset()
	s.lastErr = nil
	s.applyStepLocked(next)
	s.mu.Unlock()

	s.poller.Stop()
	s.deleteSnapshot()
	return nil
}

// Resume restores the document selection persisted by an earlier session for
// the same subject. It reports whether a snapshot was applied. Staged files
// are never persisted, so the flow re-enters at the first collection step.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	snap, err := s.store.Load(ctx, s.subject)
	if err != nil {
		if err == errors.ErrSnapshotNotFound {
			return false, nil
		}
		return false, err
	}
	if snap.DocumentTypeID == "" {
		return false, nil
	}
	if _, ok := domain.DocumentTypeByID(snap.DocumentTypeID); !ok {
		// Catalog drift; the stale snapshot is useless.
		s.deleteSnapshot()
		return false, nil
	}
	if err := s.SelectDocumentType(snap.DocumentTypeID); err != nil {
		return false, err
	}
	return true, nil
}

// Close tears the session down. With unsubmitted changes staged, confirm is
// consulted first and a false answer aborts the close. Returns whether the
// session is closed. Safe to call repeatedly.
func (s *Session) Close(confirm func() bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return true
	}
	dirty := s.intake.HasUnsavedChanges()
	s.mu.Unlock()

	if dirty && confirm != nil && !confirm() {
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return true
	}
	s.closed = true
	s.intake.Reset()
	s.mu.Unlock()

	s.camera.StopStream()
	s.poller.Stop()
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
	return true
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool { return s.isClosed() }

// ------------------------------------------------------------------------------
// internals
// ------------------------------------------------------------------------------

func (s *Session) stateLocked() State {
	st := State{
		Step:       s.step,
		Descriptor: s.intake.Descriptor(),
		Filled:     s.intake.FilledKinds(),
	}
	if s.lastStatus != nil {
		st.Status = s.lastStatus.Status
	}
	return st
}

// applyStepLocked records the step change and stops the camera whenever the
// destination is not the selfie step.
func (s *Session) applyStepLocked(next Step) {
	s.step = next
	if next != StepSelfie {
		s.camera.StopStream()
	}
}

func (s *Session) artifactsLocked() []domain.UploadArtifact {
	slots := s.intake.FilledSlots()
	artifacts := make([]domain.UploadArtifact, 0, len(slots))
	for _, slot := range slots {
		artifacts = append(artifacts, domain.UploadArtifact{
			DocumentType: slot.Kind.UploadLabel(),
			File:         slot.File,
		})
	}
	return artifacts
}

// applyStatus receives poller results. Results landing after Close are
// dropped.
func (s *Session) applyStatus(resp *domain.StatusResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastStatus = resp
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) persistSnapshot() {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snap := resume.Snapshot{
		Subject: s.subject,
		Step:    string(s.step),
		SavedAt: time.Now().UTC(),
	}
	if desc := s.intake.Descriptor(); desc != nil {
		snap.DocumentTypeID = desc.ID
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, snap); err != nil {
		s.log.Warn("resume snapshot save failed", map[string]interface{}{
			"subject": s.subject.ID(),
			"error":   err.Error(),
		})
	}
}

func (s *Session) deleteSnapshot() {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, s.subject); err != nil {
		s.log.Warn("resume snapshot delete failed", map[string]interface{}{
			"subject": s.subject.ID(),
			"error":   err.Error(),
		})
	}
}
