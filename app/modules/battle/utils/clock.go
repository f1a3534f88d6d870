package battleutil

import "time"

// Clock abstracts time for deadline math so tests can drive the scheduler
// deterministically.
type Clock interface {
	Now() time.Time
	NowUTC() time.Time
	After(d time.Duration) <-chan time.Time
	Sleep(d time.Duration)
}

// RealClock is the production Clock backed by the time package.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) NowUTC() time.Time                      { return time.Now().UTC() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Sleep(d time.Duration)                  { time.Sleep(d) }
