package popup

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pond-status-backend/internal/store"
)

func TestPopup_StepsTrackCurrentPhase(t *testing.T) {
	p := New()
	p.Open()
	p.SetStatus(store.PhaseCaptured)

	steps := p.Steps()
	assert.Len(t, steps, 5)

	wantDone := map[store.Phase]bool{
		store.PhasePreparing:    true,
		store.PhaseLifting:      true,
		store.PhaseCaptured:     true,
		store.PhaseAwaitingData: false,
		store.PhaseCompleted:    false,
	}
	for _, s := range steps {
		assert.Equal(t, wantDone[s.Phase], s.Done, "step %s", s.Label)
		assert.Equal(t, s.Phase.Message(), s.Label)
		assert.NotEmpty(t, s.Icon)
	}
}

func TestPopup_AutoCloseOnTerminal(t *testing.T) {
	var completions, closes atomic.Int64
	var completeAt, closeAt atomic.Int64

	p := New(
		WithAutoCloseDelay(30*time.Millisecond),
		OnComplete(func() {
			completeAt.Store(time.Now().UnixNano())
			completions.Add(1)
		}),
		OnClose(func() {
			closeAt.Store(time.Now().UnixNano())
			closes.Add(1)
		}),
	)
	p.Open()

	p.SetStatus(store.PhaseAwaitingData)
	time.Sleep(60 * time.Millisecond)
	assert.True(t, p.IsOpen(), "non-terminal phases never auto-close")

	p.SetStatus(store.PhaseCompleted)
	assert.True(t, p.IsOpen(), "the finished state stays visible during the delay")
	assert.True(t, p.Completed())

	assert.Eventually(t, func() bool { return !p.IsOpen() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), completions.Load())
	assert.Equal(t, int64(1), closes.Load())
	assert.LessOrEqual(t, completeAt.Load(), closeAt.Load(), "completion fires before the close")
}

func TestPopup_TerminalSchedulesOnlyOnce(t *testing.T) {
	var completions atomic.Int64
	p := New(
		WithAutoCloseDelay(20*time.Millisecond),
		OnComplete(func() { completions.Add(1) }),
	)
	p.Open()

	p.SetStatus(store.PhaseCompleted)
	p.SetStatus(store.PhaseCompleted)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(1), completions.Load(), "repeated terminal reports do not re-arm the timer")
}

func TestPopup_ManualCloseCancelsAutoClose(t *testing.T) {
	var completions, closes atomic.Int64
	p := New(
		WithAutoCloseDelay(30*time.Millisecond),
		OnComplete(func() { completions.Add(1) }),
		OnClose(func() { closes.Add(1) }),
	)
	p.Open()
	p.SetStatus(store.PhaseCompleted)

	p.Close()
	assert.False(t, p.IsOpen())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(0), completions.Load(), "manual close skips the completion callback")
	assert.Equal(t, int64(1), closes.Load(), "close callback fires exactly once")
}

func TestPopup_CloseRacingAutoClose(t *testing.T) {
	// A timer that has already fired cannot be stopped, so drive the
	// manual close onto the auto-close deadline repeatedly. Whichever
	// side wins, the close callback fires exactly once and the
	// completion callback only fires when the auto-close actually
	// closed the popup.
	for i := 0; i < 50; i++ {
		var completions, closes atomic.Int64
		p := New(
			WithAutoCloseDelay(time.Millisecond),
			OnComplete(func() { completions.Add(1) }),
			OnClose(func() { closes.Add(1) }),
		)
		p.Open()
		p.SetStatus(store.PhaseCompleted)
		time.Sleep(time.Millisecond)
		p.Close()
		time.Sleep(5 * time.Millisecond)

		assert.Equal(t, int64(1), closes.Load(), "iteration %d", i)
		assert.LessOrEqual(t, completions.Load(), int64(1), "iteration %d", i)
		if completions.Load() == 1 {
			assert.Equal(t, int64(1), closes.Load(),
				"iteration %d: completion implies the auto-close performed the close", i)
		}
		assert.False(t, p.IsOpen(), "iteration %d", i)
	}
}

func TestPopup_CloseWhileAlreadyClosedIsQuiet(t *testing.T) {
	var closes atomic.Int64
	p := New(OnClose(func() { closes.Add(1) }))

	p.Close()
	assert.Equal(t, int64(0), closes.Load())

	p.Open()
	p.Close()
	p.Close()
	assert.Equal(t, int64(1), closes.Load())
}
