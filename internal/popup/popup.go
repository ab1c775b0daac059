package popup

import (
	"sync"
	"time"

	"pond-status-backend/internal/store"
)

// DefaultAutoCloseDelay is how long the finished state stays on screen
// before the popup dismisses itself.
const DefaultAutoCloseDelay = 4 * time.Second

// Step is one entry of the popup's phase checklist.
type Step struct {
	Phase store.Phase
	Label string
	Icon  string
	Done  bool
}

var stepIcons = map[store.Phase]string{
	store.PhasePreparing:    "🚀",
	store.PhaseLifting:      "📸",
	store.PhaseCaptured:     "✨",
	store.PhaseAwaitingData: "⚡",
	store.PhaseCompleted:    "🎊",
}

// Popup models the lift-net status dialog: five fixed steps driven by the
// current phase, with an automatic close once the terminal phase is
// reached. It holds no rendering concerns, only the state a view reads.
type Popup struct {
	mu             sync.Mutex
	open           bool
	current        store.Phase
	completed      bool
	autoCloseDelay time.Duration
	autoClose      *time.Timer

	onComplete func()
	onClose    func()
}

// Option configures a Popup.
type Option func(*Popup)

// WithAutoCloseDelay overrides the terminal auto-close delay; tests use
// short values.
func WithAutoCloseDelay(d time.Duration) Option {
	return func(p *Popup) { p.autoCloseDelay = d }
}

// OnComplete registers the callback fired right before the terminal
// auto-close.
func OnComplete(fn func()) Option {
	return func(p *Popup) { p.onComplete = fn }
}

// OnClose registers the callback fired whenever the popup closes.
func OnClose(fn func()) Option {
	return func(p *Popup) { p.onClose = fn }
}

// New creates a closed Popup.
func New(opts ...Option) *Popup {
	p := &Popup{autoCloseDelay: DefaultAutoCloseDelay}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open shows the popup.
func (p *Popup) Open() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
}

// SetStatus drives the popup from a newly observed phase. Entering the
// terminal phase schedules the auto-close: after the delay the completion
// callback fires, then the popup closes.
func (p *Popup) SetStatus(phase store.Phase) {
	p.mu.Lock()
	p.current = phase
	alreadyCompleted := p.completed
	if phase.Terminal() {
		p.completed = true
	}
	shouldSchedule := phase.Terminal() && !alreadyCompleted
	if shouldSchedule {
		p.autoClose = time.AfterFunc(p.autoCloseDelay, p.autoCloseNow)
	}
	p.mu.Unlock()
}

// autoCloseNow runs on the timer goroutine. Stop cannot interrupt a
// timer that has already fired, so a manual Close may have won the race;
// the state is re-checked under the mutex before any callback fires.
func (p *Popup) autoCloseNow() {
	p.mu.Lock()
	if !p.open || p.autoClose == nil {
		p.mu.Unlock()
		return
	}
	p.autoClose = nil
	p.open = false
	p.mu.Unlock()

	if p.onComplete != nil {
		p.onComplete()
	}
	if p.onClose != nil {
		p.onClose()
	}
}

// Close dismisses the popup. Manual close is allowed at any time; closing
// cancels a pending auto-close so the close callback fires only once.
func (p *Popup) Close() {
	p.mu.Lock()
	wasOpen := p.open
	p.open = false
	if p.autoClose != nil {
		p.autoClose.Stop()
		p.autoClose = nil
	}
	p.mu.Unlock()

	if wasOpen && p.onClose != nil {
		p.onClose()
	}
}

// IsOpen reports whether the popup is visible.
func (p *Popup) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Completed reports whether the terminal phase has been reached.
func (p *Popup) Completed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// Current returns the phase the popup is displaying.
func (p *Popup) Current() store.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Steps returns the five-step checklist with every step at or below the
// current phase marked done.
func (p *Popup) Steps() []Step {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	steps := make([]Step, 0, 5)
	for phase := store.PhasePreparing; phase <= store.PhaseCompleted; phase++ {
		steps = append(steps, Step{
			Phase: phase,
			Label: phase.Message(),
			Icon:  stepIcons[phase],
			Done:  phase <= current,
		})
	}
	return steps
}
