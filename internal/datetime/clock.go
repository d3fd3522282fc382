package datetime

import "time"

// Clock abstracts the current time so tests can pin "today".
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return realClock{} }

// Today returns the current calendar day in loc.
func Today(clock Clock, loc *time.Location) Date {
	if clock == nil {
		clock = realClock{}
	}
	return DateOf(clock.Now(), loc)
}

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
