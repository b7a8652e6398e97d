package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Trigger computes when a recurring job should fire next. Implementations
// are pure data + arithmetic so schedules can be tested against a fake
// clock without any timing framework.
type Trigger interface {
	// NextAfter returns the first fire time strictly after now.
	NextAfter(now time.Time) time.Time
	// Describe returns a short human-readable schedule description.
	Describe() string
}

// Every fires on a fixed interval, anchored at the previous fire (or at
// registration for the first occurrence).
type Every struct {
	Interval time.Duration
}

// NextAfter returns now + interval.
func (e Every) NextAfter(now time.Time) time.Time {
	return now.Add(e.Interval)
}

// Describe returns e.g. "every 1h0m0s".
func (e Every) Describe() string {
	return "every " + e.Interval.String()
}

// ClockTime is a time of day in the scheduler's location.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// DailyAt fires at one or more fixed clock times each day, e.g.
// "daily at 06:00 and 18:00".
type DailyAt struct {
	Times []ClockTime
}

// NextAfter returns the earliest configured clock time strictly after now,
// rolling over to the next day when all of today's times have passed.
func (d DailyAt) NextAfter(now time.Time) time.Time {
	times := append([]ClockTime(nil), d.Times...)
	sort.Slice(times, func(i, j int) bool {
		if times[i].Hour != times[j].Hour {
			return times[i].Hour < times[j].Hour
		}
		return times[i].Minute < times[j].Minute
	})

	for _, ct := range times {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), ct.Hour, ct.Minute, 0, 0, now.Location())
		if candidate.After(now) {
			return candidate
		}
	}

	// All of today's times have passed; first slot tomorrow.
	if len(times) == 0 {
		return now.AddDate(0, 0, 1)
	}
	first := times[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), first.Hour, first.Minute, 0, 0, now.Location())
}

// Describe returns e.g. "daily at 06:00, 18:00".
func (d DailyAt) Describe() string {
	parts := make([]string, 0, len(d.Times))
	for _, ct := range d.Times {
		parts = append(parts, ct.String())
	}
	return "daily at " + strings.Join(parts, ", ")
}
