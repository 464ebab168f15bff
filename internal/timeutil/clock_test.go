package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	assert.False(t, now.Before(before) || now.After(after))
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestMockClock_AdvanceFiresTicker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(16 * time.Millisecond)
	require.Equal(t, 1, clock.TickerCount())

	clock.Advance(10 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	clock.Advance(6 * time.Millisecond)
	select {
	case got := <-ticker.C():
		assert.Equal(t, start.Add(16*time.Millisecond), got)
	default:
		t.Fatal("ticker did not fire at interval")
	}
	assert.Equal(t, start.Add(16*time.Millisecond), clock.Now())
}

func TestMockTicker_StopAndReset(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Millisecond)

	ticker.Stop()
	clock.Advance(5 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}

	ticker.Reset(time.Millisecond)
	clock.Advance(5 * time.Millisecond)
	select {
	case <-ticker.C():
	default:
		t.Fatal("reset ticker did not fire")
	}
}
