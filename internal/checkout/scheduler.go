package checkout

import "time"

// Timer отменяемый таймер. Повторный Stop — no-op.
type Timer interface {
	Stop() bool
}

// Scheduler планировщик отложенных вызовов. В тестах подменяется
// виртуальным временем (checkouttest.Scheduler).
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler планировщик на time.AfterFunc.
type RealScheduler struct{}

// AfterFunc вызывает f в отдельной горутине через d.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
