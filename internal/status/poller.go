// ==============================================================================
// STATUS POLLER - internal/status/poller.go
// ==============================================================================
// Fetches the backend verification status on a fixed interval. A monotonic
// sequence counter pairs each fetch with its apply, so a stale response that
// lands after a newer one is discarded. Polling stops itself once the backend
// reports a terminal status.
// ==============================================================================

package status

import (
	"context"
	"sync"
	"time"

	"kycflow/pkg/domain"
	"kycflow/pkg/logger"
)

// DefaultInterval is the polling cadence used when the config supplies none.
const DefaultInterval = 30 * time.Second

// Fetcher retrieves the current verification status for a subject.
type Fetcher interface {
	GetStatus(ctx context.Context, subject domain.Subject) (*domain.StatusResponse, error)
}

// Poller periodically fetches verification status and hands each accepted
// response to the onUpdate callback.
type Poller struct {
	fetcher  Fetcher
	subject  domain.Subject
	interval time.Duration
	log      logger.Logger
	onUpdate func(*domain.StatusResponse)

	mu      sync.Mutex
	issued  uint64
	applied uint64
	latest  *domain.StatusResponse
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller builds a poller. onUpdate may be nil when the caller only reads
// Latest. An interval of zero falls back to DefaultInterval.
func NewPoller(fetcher Fetcher, subject domain.Subject, interval time.Duration, log logger.Logger, onUpdate func(*domain.StatusResponse)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Poller{
		fetcher:  fetcher,
		subject:  subject,
		interval: interval,
		log:      log,
		onUpdate: onUpdate,
	}
}

// Start launches the polling loop. Calling Start while the loop is already
// running is a no-op. The loop exits when Stop is called, the parent context
// is cancelled, or a terminal status is observed.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()

	go p.loop(ctx, done)
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := p.fetch(ctx)
			if err != nil {
				// Failed ticks keep the last known status and retry on
				// the next tick.
				p.log.Warn("status poll failed", map[string]interface{}{
					"subject": p.subject.ID(),
					"error":   err.Error(),
				})
				continue
			}
			if resp != nil && resp.Status.Terminal() {
				p.log.Info("terminal status reached, polling stopped", map[string]interface{}{
					"subject": p.subject.ID(),
					"status":  string(resp.Status),
				})
				p.stopLocked()
				return
			}
		}
	}
}

// Refresh performs one fetch outside the ticker cadence and returns its
// error to the caller. A successful refresh participates in the same
// sequence ordering as ticker fetches.
func (p *Poller) Refresh(ctx context.Context) (*domain.StatusResponse, error) {
	return p.fetch(ctx)
}

func (p *Poller) fetch(ctx context.Context) (*domain.StatusResponse, error) {
	p.mu.Lock()
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	resp, err := p.fetcher.GetStatus(ctx, p.subject)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if seq <= p.applied {
		// A newer fetch already landed; drop this one.
		latest := p.latest
		p.mu.Unlock()
		return latest, nil
	}
	p.applied = seq
	p.latest = resp
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate(resp)
	}
	return resp, nil
}

// Latest returns the most recently applied status response, or nil before
// the first successful fetch.
func (p *Poller) Latest() *domain.StatusResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Stop cancels the polling loop and waits for it to exit. Safe to call
// repeatedly and safe before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// stopLocked releases the loop's own cancel state from inside the loop so a
// later Start can run again. It must not wait on done.
func (p *Poller) stopLocked() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
		p.done = nil
	}
	p.mu.Unlock()
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}
