// Package watchdog runs the measure, schedule and restart loop.
//
// The scheduling state is a plain State value. Policy.Observe and NextWake
// are pure; only Watchdog.Run touches the clock, the measurer and the
// router.
package watchdog
