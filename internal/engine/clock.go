package engine

import "time"

// Clock abstracts the retry loop's pacing so tests can observe attempts
// without waiting out the real budget.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock paces the retry loop with real sleeps.
var SystemClock Clock = systemClock{}
