package game

import (
	"time"

	"github.com/coder/quartz"
)

// actionTimer runs the two-phase countdown for the current actor:
// a base timer, then an automatic time-bank burn. All methods are
// called under the table lock. Expiry callbacks carry the generation
// they were armed with; the table drops callbacks whose generation no
// longer matches, so a stale expiry racing an action is a no-op.
type actionTimer struct {
	clock quartz.Clock

	gen       uint64
	seat      int
	inBank    bool
	bankStart time.Time

	base *quartz.Timer
	bank *quartz.Timer
}

func newActionTimer(clock quartz.Clock) *actionTimer {
	return &actionTimer{clock: clock, seat: -1}
}

// start arms the base timer for a seat and returns the generation the
// expiry callback must present.
func (t *actionTimer) start(seat int, d time.Duration, onExpire func(gen uint64)) uint64 {
	t.stopTimers()
	t.gen++
	t.seat = seat
	t.inBank = false

	gen := t.gen
	t.base = t.clock.AfterFunc(d, func() {
		onExpire(gen)
	})
	return gen
}

// startBank transitions to the time-bank phase. Returns the generation
// for the bank expiry callback.
func (t *actionTimer) startBank(d time.Duration, onExpire func(gen uint64)) uint64 {
	t.stopTimers()
	t.gen++
	t.inBank = true
	t.bankStart = t.clock.Now()

	gen := t.gen
	t.bank = t.clock.AfterFunc(d, func() {
		onExpire(gen)
	})
	return gen
}

// stop cancels any pending phase and returns the time-bank duration
// consumed, zero if the bank phase never started.
func (t *actionTimer) stop() time.Duration {
	var elapsed time.Duration
	if t.inBank {
		elapsed = t.clock.Now().Sub(t.bankStart)
	}
	t.stopTimers()
	t.gen++
	t.seat = -1
	t.inBank = false
	return elapsed
}

// current reports whether gen is the live generation for seat.
func (t *actionTimer) current(gen uint64, seat int) bool {
	return gen == t.gen && seat == t.seat
}

func (t *actionTimer) stopTimers() {
	if t.base != nil {
		t.base.Stop()
		t.base = nil
	}
	if t.bank != nil {
		t.bank.Stop()
		t.bank = nil
	}
}
