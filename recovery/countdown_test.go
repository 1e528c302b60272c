package recovery

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techblitz/techblitz-go/session"
)

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "02:05", FormatRemaining(125*time.Second))
	assert.Equal(t, "00:00", FormatRemaining(0))
	assert.Equal(t, "00:00", FormatRemaining(-time.Second))
	assert.Equal(t, "00:59", FormatRemaining(59*time.Second))
	assert.Equal(t, "10:00", FormatRemaining(10*time.Minute))
}

// fakeClock is a mutex-guarded time source the test advances by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCountdownLifecycle(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	clock := &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}

	expired := make(chan struct{})
	c := New(sessions,
		WithClock(clock.Now),
		WithTickInterval(time.Millisecond),
		WithOnExpire(func() { close(expired) }),
	)

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Counting())
	assert.Equal(t, "Continue", c.ResendLabel("Continue"))

	expiry := clock.Now().Add(125 * time.Second)
	c.Start(expiry)

	assert.Equal(t, StateCounting, c.State())
	assert.Equal(t, "02:05", c.Remaining(), "remaining is computed immediately at entry")
	assert.Equal(t, "Resend in 02:05", c.ResendLabel("Continue"))

	stored, ok := sessions.RecoveryExpiry()
	require.True(t, ok)
	assert.Equal(t, expiry.UnixMilli(), stored.UnixMilli())

	// Jump past the expiry; the next tick must transition to Idle.
	clock.Advance(126 * time.Second)
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("countdown never expired")
	}

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, "Continue", c.ResendLabel("Continue"), "resend re-enables at zero")
	_, ok = sessions.RecoveryExpiry()
	assert.False(t, ok, "expiry cleared on transition to Idle")
}

func TestCountdownTicksDown(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	ticks := make(chan string, 16)
	c := New(sessions,
		WithClock(clock.Now),
		WithTickInterval(time.Millisecond),
		WithOnTick(func(r string) {
			select {
			case ticks <- r:
			default:
			}
		}),
	)
	defer c.Stop()

	c.Start(clock.Now().Add(2 * time.Minute))
	assert.Equal(t, "02:00", <-ticks)

	clock.Advance(30 * time.Second)
	deadline := time.After(time.Second)
	for {
		select {
		case r := <-ticks:
			if r == "01:30" {
				return
			}
		case <-deadline:
			t.Fatal("never observed 01:30")
		}
	}
}

func TestCountdownStopCancelsTicker(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	c := New(sessions, WithClock(clock.Now), WithTickInterval(time.Millisecond))
	c.Start(clock.Now().Add(time.Minute))
	c.Stop()

	// Stop keeps the persisted expiry so Resume can pick it back up.
	_, ok := sessions.RecoveryExpiry()
	assert.True(t, ok)
	assert.Equal(t, StateCounting, c.State())
}

func TestResumeFromPersistedExpiry(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	sessions.SetRecoveryExpiry(clock.Now().Add(time.Minute))

	c := New(sessions, WithClock(clock.Now), WithTickInterval(time.Millisecond))
	defer c.Stop()

	c.Resume()
	assert.True(t, c.Counting())
	assert.Equal(t, "01:00", c.Remaining())
}

func TestResumeClearsStaleExpiry(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	sessions.SetRecoveryExpiry(clock.Now().Add(-time.Minute))

	c := New(sessions, WithClock(clock.Now), WithTickInterval(time.Millisecond))
	c.Resume()

	assert.False(t, c.Counting())
	_, ok := sessions.RecoveryExpiry()
	assert.False(t, ok)
}

func TestResumeWithoutExpiryStaysIdle(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	c := New(sessions, WithTickInterval(time.Millisecond))
	c.Resume()
	assert.Equal(t, StateIdle, c.State())
}
