package throttle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func at(seconds int) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}

func TestRejectsAfterLimit(t *testing.T) {
	require := require.New(t)
	th := New(4, time.Hour)

	for i := 0; i < 4; i++ {
		d := th.TryAccept(1, at(i*60))
		require.True(d.Accepted, "call %d must be accepted", i+1)
	}

	d := th.TryAccept(1, at(300))
	require.False(d.Accepted, "fifth call within the window must be rejected")
	// oldest accepted at t=0, now t=300 -> 3300s left -> 55 minutes
	require.Equal(55, d.WaitMinutes())
}

func TestRejectionDoesNotConsumeSlot(t *testing.T) {
	require := require.New(t)
	th := New(2, time.Hour)

	require.True(th.TryAccept(7, at(0)).Accepted)
	require.True(th.TryAccept(7, at(10)).Accepted)
	for i := 0; i < 5; i++ {
		require.False(th.TryAccept(7, at(20+i)).Accepted)
	}

	// only the t=0 entry ages out, so exactly one more call fits
	require.True(th.TryAccept(7, at(3600)).Accepted)
	require.False(th.TryAccept(7, at(3601)).Accepted)
}

func TestOldestAgesOutAtWindowBoundary(t *testing.T) {
	require := require.New(t)
	th := New(1, time.Hour)

	require.True(th.TryAccept(1, at(0)).Accepted)
	require.False(th.TryAccept(1, at(3599)).Accepted)
	require.True(th.TryAccept(1, at(3600)).Accepted, "now - t >= 3600 is pruned")
}

func TestNeverExceedsLimitInAnyWindow(t *testing.T) {
	th := New(4, time.Hour)

	var accepted []time.Time
	for s := 0; s < 4*3600; s += 97 {
		now := at(s)
		if th.TryAccept(3, now).Accepted {
			accepted = append(accepted, now)
		}
	}

	for i := range accepted {
		count := 0
		for j := i; j < len(accepted); j++ {
			if accepted[j].Sub(accepted[i]) < time.Hour {
				count++
			}
		}
		assert.LessOrEqual(t, count, 4)
	}
	assert.NotEmpty(t, accepted)
}

func TestWaitMinutesRoundsDown(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0, Decision{Accepted: true, Wait: time.Hour}.WaitMinutes())
	assert.Equal(0, Decision{Wait: 59 * time.Second}.WaitMinutes())
	assert.Equal(1, Decision{Wait: 119 * time.Second}.WaitMinutes())
	assert.Equal(59, Decision{Wait: 3599 * time.Second}.WaitMinutes())
}

func TestUsersAreIndependent(t *testing.T) {
	th := New(3, time.Hour)

	var wg sync.WaitGroup
	results := make([][]bool, 20)
	for u := 0; u < 20; u++ {
		wg.Add(1)
		go func(user int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				results[user] = append(results[user], th.TryAccept(int64(user), at(i)).Accepted)
			}
		}(u)
	}
	wg.Wait()

	for u, r := range results {
		assert.Equal(t, []bool{true, true, true, false, false}, r, "user %d", u)
	}
	assert.Equal(t, 20, th.Users())
}

func TestSweepEvictsIdleUsers(t *testing.T) {
	require := require.New(t)
	th := New(4, time.Hour)

	th.TryAccept(1, at(0))
	th.TryAccept(2, at(1800))

	require.Equal(0, th.Sweep(at(3599)))
	require.Equal(1, th.Sweep(at(3600)))
	require.Equal(1, th.Users())
	require.Equal(1, th.Sweep(at(5400)))
	require.Equal(0, th.Users())
}

func TestDefaultsForNonPositiveArguments(t *testing.T) {
	th := New(0, 0)
	assert.Equal(t, DefaultLimit, th.Limit())
	assert.Equal(t, DefaultWindow, th.window)
}
