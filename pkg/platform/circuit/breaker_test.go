package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_InitialState(t *testing.T) {
	b := New("paddle")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "paddle", b.Name())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("paddle", WithFailureThreshold(3))

	open, change := b.RecordFailure()
	assert.False(t, open)
	assert.False(t, change.Opened)

	open, change = b.RecordFailure()
	assert.False(t, open)
	assert.False(t, change.Opened)

	// Third consecutive failure trips the breaker.
	open, change = b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	// Further failures keep it open without another transition.
	open, change = b.RecordFailure()
	assert.True(t, open)
	assert.False(t, change.Opened)
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := New("paddle", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	closed, change := b.RecordSuccess()
	assert.False(t, closed)
	assert.False(t, change.Closed)

	closed, change = b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("paddle", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Count was reset, so two more failures are not enough.
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_FailureResetsSuccessCount(t *testing.T) {
	b := New("paddle", WithFailureThreshold(1), WithSuccessThreshold(3))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordSuccess()
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("paddle", WithFailureThreshold(1))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_AllowAdmitsTrialAfterCooldown(t *testing.T) {
	b := New("paddle", WithFailureThreshold(1), WithCooldown(time.Minute))
	clock := time.Now()
	b.now = func() time.Time { return clock }

	b.RecordFailure()
	assert.True(t, b.IsOpen())
	assert.False(t, b.Allow())

	// Still inside the cooldown.
	clock = clock.Add(30 * time.Second)
	assert.False(t, b.Allow())

	// Cooldown elapsed: a trial call is admitted and a success closes.
	clock = clock.Add(31 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	closed, change := b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.True(t, b.Allow())
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	b := New("paddle", WithFailureThreshold(1), WithCooldown(time.Minute))
	clock := time.Now()
	b.now = func() time.Time { return clock }

	b.RecordFailure()
	clock = clock.Add(61 * time.Second)
	assert.True(t, b.Allow())

	open, change := b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)
	assert.False(t, b.Allow())

	// A second cooldown admits another trial.
	clock = clock.Add(61 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreaker_AllowPassesWhileClosed(t *testing.T) {
	b := New("paddle")
	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.True(t, b.Allow())
}
