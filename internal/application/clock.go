// Package application contains use-case orchestration services: the token
// lifecycle manager, the job registry and scheduler, and the scheduled
// task operations.
package application

import "time"

// Clock abstracts the current time so expiry and scheduling logic can be
// tested against a fake clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
