package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pond-status-backend/internal/store"
)

// User-facing error messages, kept in Thai to match the farm operators'
// locale.
const (
	timeoutMessage    = "หมดเวลารอการอัปเดตสถานะ"
	fetchErrorMessage = "เกิดข้อผิดพลาดในการดึงสถานะ"
)

// Options tunes a Poller. Zero values fall back to the production
// defaults; tests inject short durations.
type Options struct {
	Interval    time.Duration // time between polls, default 1s
	Ceiling     time.Duration // hard stop for a polling run, default 300s
	SettleDelay time.Duration // delay before resetting after a closed completion, default 2s

	OnStatusUpdate   func(store.Phase)
	OnStatusComplete func()

	Logger *zap.Logger
}

// Poller watches one pond's lift-net status by polling the read endpoint
// at a fixed interval. It mirrors the popup-driving state the frontend
// keeps: current phase, processing/completed flags, popup visibility and
// the last user-facing error.
type Poller struct {
	client *Client
	pondID int64
	opts   Options
	logger *zap.Logger

	mu           sync.Mutex
	current      store.Phase
	processing   bool
	completed    bool
	popupVisible bool
	lastErr      string
	cancel       context.CancelFunc
	gen          int // invalidates pending settle resets across runs
}

// New creates a Poller for the given pond.
func New(client *Client, pondID int64, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Ceiling <= 0 {
		opts.Ceiling = 300 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client: client,
		pondID: pondID,
		opts:   opts,
		logger: logger.Named("poller").With(zap.Int64("pond_id", pondID)),
	}
}

// Start begins a polling run. A second call while a run is in progress is
// a no-op and returns false; at most one loop exists per Poller. The loop
// stops on terminal status, on the ceiling, or when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	if p.processing {
		p.mu.Unlock()
		p.logger.Debug("polling already running, start ignored")
		return false
	}
	p.gen++
	p.current = store.PhaseNone
	p.processing = true
	p.completed = false
	p.popupVisible = true
	p.lastErr = ""

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Info("starting status polling")
	go p.loop(loopCtx)
	return true
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.opts.Ceiling)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.processing = false
			p.mu.Unlock()
			p.logger.Info("polling cancelled")
			return
		case <-deadline.C:
			p.mu.Lock()
			p.processing = false
			p.lastErr = timeoutMessage
			p.mu.Unlock()
			p.logger.Warn("polling timed out before terminal status")
			return
		case <-ticker.C:
			if p.tick(ctx) {
				return
			}
		}
	}
}

// tick performs one poll. The request context is cancelled when the tick
// ends, so at most one request is ever in flight. Returns true when the
// terminal phase was observed and the loop should stop.
func (p *Poller) tick(ctx context.Context) bool {
	tickCtx, cancel := context.WithTimeout(ctx, p.opts.Interval)
	defer cancel()

	phase, _, err := p.client.GetStatus(tickCtx, p.pondID)
	if err != nil {
		// Transient failures are retried on the next tick; only the
		// ceiling ends the loop on sustained failure.
		p.logger.Warn("poll failed", zap.Error(err))
		return false
	}
	if phase == store.PhaseNone {
		return false
	}

	p.mu.Lock()
	changed := phase != p.current
	p.current = phase
	terminal := phase.Terminal()
	alreadyCompleted := p.completed
	if terminal {
		p.processing = false
		p.completed = true
	}
	p.mu.Unlock()

	if changed {
		p.logger.Info("status changed", zap.Int("status", phase.Wire()), zap.String("phase", phase.String()))
	}

	// The terminal phase always stops the loop, even when ShowCurrentStatus
	// already stored it and this tick sees no change.
	if terminal {
		if !alreadyCompleted && p.opts.OnStatusComplete != nil {
			p.opts.OnStatusComplete()
		}
		return true
	}
	if changed && p.opts.OnStatusUpdate != nil {
		p.opts.OnStatusUpdate(phase)
	}
	return false
}

// ShowCurrentStatus opens the popup and refreshes the phase with a single
// fetch, without starting a polling run. Used when re-opening the popup
// for an operation that is already in progress or already finished.
func (p *Poller) ShowCurrentStatus(ctx context.Context) {
	p.mu.Lock()
	p.popupVisible = true
	p.lastErr = ""
	p.mu.Unlock()

	phase, _, err := p.client.GetStatus(ctx, p.pondID)
	if err != nil {
		p.logger.Warn("failed to fetch current status", zap.Error(err))
		p.mu.Lock()
		p.lastErr = fetchErrorMessage
		p.mu.Unlock()
		return
	}
	if phase == store.PhaseNone {
		return
	}
	p.mu.Lock()
	p.current = phase
	p.mu.Unlock()
}

// ClosePopup hides the popup. Closing at the terminal phase keeps the
// "done" state on screen for the settle delay before reverting; closing
// while completed but already past terminal display resets immediately.
func (p *Poller) ClosePopup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.popupVisible = false
	if p.current.Terminal() {
		p.processing = false
		gen := p.gen
		time.AfterFunc(p.opts.SettleDelay, func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.gen != gen {
				return
			}
			p.completed = false
			p.current = store.PhaseNone
		})
		return
	}
	if p.completed {
		p.completed = false
		p.current = store.PhaseNone
	}
}

// Reset unconditionally zeroes all state, hides the popup and stops any
// running loop.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.current = store.PhaseNone
	p.processing = false
	p.completed = false
	p.popupVisible = false
	p.lastErr = ""
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Status returns the last observed phase.
func (p *Poller) Status() store.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// IsProcessing reports whether a polling run is active.
func (p *Poller) IsProcessing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processing
}

// IsCompleted reports whether the last run reached the terminal phase.
func (p *Poller) IsCompleted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// PopupVisible reports whether the status popup should be shown.
func (p *Poller) PopupVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.popupVisible
}

// Err returns the last user-facing error message, or "" when none.
func (p *Poller) Err() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
