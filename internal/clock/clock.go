// Package clock abstracts time for services that make scheduling decisions.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns a Clock backed by the wall clock, always in UTC.
func System() Clock { return systemClock{} }
