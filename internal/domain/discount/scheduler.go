package discount

import "time"

// Scheduler runs f once after d. The returned stop function prevents f from
// running and reports whether it did so.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

var _ Scheduler = TimerScheduler{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
