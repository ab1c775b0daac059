package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseFromWire(t *testing.T) {
	testCases := []struct {
		name     string
		code     int
		expected Phase
		wantErr  bool
	}{
		{name: "preparing", code: 1, expected: PhasePreparing},
		{name: "lifting", code: 2, expected: PhaseLifting},
		{name: "captured", code: 3, expected: PhaseCaptured},
		{name: "awaiting data", code: 4, expected: PhaseAwaitingData},
		{name: "completed", code: 5, expected: PhaseCompleted},
		{name: "zero is rejected", code: 0, wantErr: true},
		{name: "six is rejected", code: 6, wantErr: true},
		{name: "negative is rejected", code: -1, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PhaseFromWire(tc.code)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, p)
			assert.Equal(t, tc.code, p.Wire())
		})
	}
}

func TestPhaseMessages(t *testing.T) {
	assert.Equal(t, "Preparing the camera", PhasePreparing.Message())
	assert.Equal(t, "Starting to lift the net", PhaseLifting.Message())
	assert.Equal(t, "Capture successful", PhaseCaptured.Message())
	assert.Equal(t, "Please wait for the data", PhaseAwaitingData.Message())
	assert.Equal(t, "Completed", PhaseCompleted.Message())
	assert.Equal(t, "No status available", PhaseNone.Message())
	assert.True(t, PhaseCompleted.Terminal())
	assert.False(t, PhaseAwaitingData.Terminal())
}

func TestMemoryStore_SetAndGet(t *testing.T) {
	s := NewMemoryStore(0)

	_, found := s.Get(7)
	assert.False(t, found, "unreported pond should have no record")

	for code := 1; code <= 5; code++ {
		rec, err := s.Set(7, Phase(code))
		require.NoError(t, err)
		assert.Equal(t, int64(7), rec.PondID)
		assert.Equal(t, Phase(code), rec.Phase)
		assert.WithinDuration(t, time.Now().UTC(), rec.Timestamp, time.Second)

		got, found := s.Get(7)
		require.True(t, found)
		assert.Equal(t, rec, got, "last write wins for a single pond")
	}
}

func TestMemoryStore_RejectsInvalidPhase(t *testing.T) {
	s := NewMemoryStore(0)

	before, err := s.Set(3, PhaseLifting)
	require.NoError(t, err)

	_, err = s.Set(3, PhaseNone)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = s.Set(3, Phase(6))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	got, found := s.Get(3)
	require.True(t, found)
	assert.Equal(t, before, got, "rejected writes must not change the record")
}

func TestMemoryStore_IsolatedPerPond(t *testing.T) {
	s := NewMemoryStore(0)

	_, err := s.Set(1, PhasePreparing)
	require.NoError(t, err)
	_, err = s.Set(2, PhaseCompleted)
	require.NoError(t, err)

	a, _ := s.Get(1)
	b, _ := s.Get(2)
	assert.Equal(t, PhasePreparing, a.Phase)
	assert.Equal(t, PhaseCompleted, b.Phase)
}

func TestMemoryStore_TTLEvictsStaleRecords(t *testing.T) {
	s := NewMemoryStore(20 * time.Millisecond)

	_, err := s.Set(9, PhaseCaptured)
	require.NoError(t, err)

	_, found := s.Get(9)
	assert.True(t, found)

	time.Sleep(50 * time.Millisecond)
	_, found = s.Get(9)
	assert.False(t, found, "record should expire after the configured ttl")
}
