package battleutil

import "time"

// FakeClock is a fake implementation of the Clock interface.
type FakeClock struct {
	NowFn    func() time.Time
	NowUTCFn func() time.Time
	AfterFn  func(d time.Duration) <-chan time.Time
	SleepFn  func(d time.Duration)
}

func (f *FakeClock) Now() time.Time {
	if f.NowFn != nil {
		return f.NowFn()
	}
	return time.Now()
}

func (f *FakeClock) NowUTC() time.Time {
	if f.NowUTCFn != nil {
		return f.NowUTCFn()
	}
	return time.Now().UTC()
}

func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	if f.AfterFn != nil {
		return f.AfterFn(d)
	}
	return time.After(d)
}

func (f *FakeClock) Sleep(d time.Duration) {
	if f.SleepFn != nil {
		f.SleepFn(d)
	}
}
