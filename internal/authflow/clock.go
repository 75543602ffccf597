package authflow

import "time"

// Clock abstracts wall time so cooldown and expiry guards are testable
// without sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return realClock{} }
