package util

import "time"

// Clock abstracts time so trading-window and settlement logic can be
// tested deterministically.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now().UTC() }

// FixedClock reports a settable instant. Test use only.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.T.Add(d)
	return ch
}

func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the fixed instant forward.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
