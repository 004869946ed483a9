package watchdog

import (
	"time"

	"github.com/GriffinCanCode/plwatchdog/internal/infrastructure/config"
)

// Transition is the effect a measurement had on the schedule.
type Transition int

const (
	Unchanged Transition = iota
	Scheduled
	Canceled
)

func (t Transition) String() string {
	switch t {
	case Scheduled:
		return "scheduled"
	case Canceled:
		return "canceled"
	default:
		return "unchanged"
	}
}

// State is the scheduling state owned by the run loop. The zero value has
// no pending restart.
type State struct {
	// ScheduledAt is the pending restart instant, zero when none.
	ScheduledAt time.Time
	// NormalCount counts consecutive normal measurements. It only matters
	// while a restart is pending.
	NormalCount int
}

// Pending reports whether a restart is scheduled.
func (s State) Pending() bool {
	return !s.ScheduledAt.IsZero()
}

// Due reports whether the pending restart is not after now.
func (s State) Due(now time.Time) bool {
	return s.Pending() && !s.ScheduledAt.After(now)
}

// Policy decides how measurements move the schedule.
type Policy struct {
	Threshold   float64
	RestartTime config.TimeOfDay
	CancelAfter int
}

// Observe applies one measured loss ratio to s. A loss at or above the
// threshold replaces any pending schedule with the next occurrence of the
// restart time; CancelAfter normal measurements in a row clear it.
func (p Policy) Observe(s State, loss float64, now time.Time) (State, Transition) {
	if loss >= p.Threshold {
		return State{ScheduledAt: NextOccurrence(now, p.RestartTime)}, Scheduled
	}

	s.NormalCount++
	if s.Pending() && s.NormalCount >= p.CancelAfter {
		s.ScheduledAt = time.Time{}
		return s, Canceled
	}
	return s, Unchanged
}

// NextOccurrence returns at on now's day if that is still ahead of now,
// otherwise on the following day.
func NextOccurrence(now time.Time, at config.TimeOfDay) time.Time {
	today := at.On(now)
	if now.Before(today) {
		return today
	}
	return at.On(now.AddDate(0, 0, 1))
}

// NextWake is the earlier of now+between and the pending restart.
func NextWake(now time.Time, s State, between time.Duration) time.Time {
	wake := now.Add(between)
	if s.Pending() && s.ScheduledAt.Before(wake) {
		return s.ScheduledAt
	}
	return wake
}
