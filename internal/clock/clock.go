// Package clock abstracts wall-clock time so attempt timing can be driven
// deterministically in tests.
package clock

import "time"

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// System is the production clock backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Func adapts a plain function into a Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
