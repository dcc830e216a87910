package game

import "time"

// Scheduler arms the answer clocks. The default uses the wall clock; tests
// substitute one they can fire by hand.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
