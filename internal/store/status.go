package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// Phase is the lift-net operation phase reported by the pond controller.
// The wire protocol uses the integer values 1..5; 0 means no status has
// been reported yet.
type Phase int

const (
	PhaseNone         Phase = 0
	PhasePreparing    Phase = 1
	PhaseLifting      Phase = 2
	PhaseCaptured     Phase = 3
	PhaseAwaitingData Phase = 4
	PhaseCompleted    Phase = 5
)

// ErrInvalidStatus is returned when a reported status code is outside 1..5.
var ErrInvalidStatus = errors.New("status must be between 1 and 5")

var phaseMessages = map[Phase]string{
	PhaseNone:         "No status available",
	PhasePreparing:    "Preparing the camera",
	PhaseLifting:      "Starting to lift the net",
	PhaseCaptured:     "Capture successful",
	PhaseAwaitingData: "Please wait for the data",
	PhaseCompleted:    "Completed",
}

// PhaseFromWire converts a wire status code into a Phase.
func PhaseFromWire(code int) (Phase, error) {
	if code < int(PhasePreparing) || code > int(PhaseCompleted) {
		return PhaseNone, fmt.Errorf("%w, got %d", ErrInvalidStatus, code)
	}
	return Phase(code), nil
}

// Wire returns the integer status code used on the wire.
func (p Phase) Wire() int { return int(p) }

// Terminal reports whether the phase ends the lift-net operation.
func (p Phase) Terminal() bool { return p == PhaseCompleted }

// Message returns the fixed human-readable description of the phase.
func (p Phase) Message() string {
	if m, ok := phaseMessages[p]; ok {
		return m
	}
	return "Unknown status"
}

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhasePreparing:
		return "preparing"
	case PhaseLifting:
		return "lifting"
	case PhaseCaptured:
		return "captured"
	case PhaseAwaitingData:
		return "awaiting_data"
	case PhaseCompleted:
		return "completed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Record is the latest reported status for one pond. Each accepted write
// replaces the previous record; no history is kept here.
type Record struct {
	PondID    int64
	Phase     Phase
	Timestamp time.Time
}

// StatusStore holds the latest lift-net status per pond. Implementations
// are process-local; multiple server instances do not see each other's
// writes.
type StatusStore interface {
	// Set overwrites the record for pondID and returns the stored record.
	Set(pondID int64, phase Phase) (Record, error)
	// Get returns the current record for pondID, or ok=false if the pond
	// has never reported.
	Get(pondID int64) (Record, bool)
}

type memoryStore struct {
	c *cache.Cache
}

// NewMemoryStore creates an in-memory StatusStore. A zero ttl keeps
// records for the process lifetime; a positive ttl evicts stale records
// for abandoned ponds.
func NewMemoryStore(ttl time.Duration) StatusStore {
	if ttl <= 0 {
		return &memoryStore{c: cache.New(cache.NoExpiration, 0)}
	}
	return &memoryStore{c: cache.New(ttl, 2*ttl)}
}

func (s *memoryStore) Set(pondID int64, phase Phase) (Record, error) {
	if _, err := PhaseFromWire(phase.Wire()); err != nil {
		return Record{}, err
	}
	rec := Record{PondID: pondID, Phase: phase, Timestamp: time.Now().UTC()}
	s.c.SetDefault(key(pondID), rec)
	return rec, nil
}

func (s *memoryStore) Get(pondID int64) (Record, bool) {
	v, found := s.c.Get(key(pondID))
	if !found {
		return Record{}, false
	}
	return v.(Record), true
}

func key(pondID int64) string { return strconv.FormatInt(pondID, 10) }
