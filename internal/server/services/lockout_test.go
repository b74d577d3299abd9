package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockoutConfig_Window(t *testing.T) {
	exp := LockoutConfig{Threshold: 5, BaseWindow: 15 * time.Minute, MaxWindow: time.Hour, Policy: LockoutExponential}
	fixed := LockoutConfig{Threshold: 5, BaseWindow: 15 * time.Minute, MaxWindow: time.Hour, Policy: LockoutFixed}

	tests := []struct {
		name  string
		cfg   LockoutConfig
		count int
		want  time.Duration
	}{
		{"below threshold", exp, 4, 0},
		{"at threshold", exp, 5, 15 * time.Minute},
		{"one past", exp, 6, 30 * time.Minute},
		{"capped", exp, 7, time.Hour},
		{"far past cap", exp, 500, time.Hour},
		{"fixed at threshold", fixed, 5, 15 * time.Minute},
		{"fixed past threshold", fixed, 9, 15 * time.Minute},
		{"disabled", LockoutConfig{}, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Window(tt.count))
		})
	}
}

func TestLockoutConfig_WindowUncappedDoesNotOverflow(t *testing.T) {
	cfg := LockoutConfig{Threshold: 1, BaseWindow: time.Minute, Policy: LockoutExponential}
	assert.Positive(t, cfg.Window(10_000))
}

func TestParseLockoutPolicy(t *testing.T) {
	p, err := ParseLockoutPolicy("fixed")
	require.NoError(t, err)
	assert.Equal(t, LockoutFixed, p)

	_, err = ParseLockoutPolicy("linear")
	assert.Error(t, err)
}

func TestLockoutTracker_LocksAtThreshold(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	u := st.register(t, "alice", "correct horse battery")

	for i := 1; i < 5; i++ {
		attempt, err := st.lockout.Reserve(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, i, attempt.Count)
		assert.False(t, attempt.StartedLockout(), "attempt %d", i)
	}

	attempt, err := st.lockout.Reserve(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, attempt.StartedLockout())
	assert.Equal(t, st.clock.Now().Add(15*time.Minute), attempt.LockedUntil)

	_, err = st.lockout.Reserve(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrAccountLocked)

	state, err := st.lockout.State(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, state.Count)
	assert.True(t, state.Locked(st.clock.Now()))

	st.clock.Advance(15 * time.Minute)
	attempt, err = st.lockout.Reserve(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, attempt.Count)
	assert.Equal(t, st.clock.Now().Add(time.Hour), attempt.LockedUntil)
}

func TestLockoutTracker_ConcurrentReserve(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	u := st.register(t, "alice", "correct horse battery")

	const n = 40
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.lockout.Reserve(ctx, u.ID)
		}(i)
	}
	wg.Wait()

	var reserved, locked int
	for _, err := range errs {
		switch {
		case err == nil:
			reserved++
		case errors.Is(err, common.ErrAccountLocked):
			locked++
		}
	}
	assert.Equal(t, 5, reserved)
	assert.Equal(t, n-5, locked)

	state, err := st.lockout.State(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, n, state.Count)
}

func TestLockoutTracker_RecordSuccessClears(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	u := st.register(t, "alice", "correct horse battery")

	_, err := st.lockout.Reserve(ctx, u.ID)
	require.NoError(t, err)

	state, err := st.lockout.State(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 1, state.Count)

	require.NoError(t, st.lockout.RecordSuccess(ctx, u.ID))
	state, err = st.lockout.State(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestLockoutTracker_UnknownUserIsStoreError(t *testing.T) {
	st := newStack(t)
	_, err := st.lockout.Reserve(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}
