// Package metrics provides the Recorder interface for attribute bag
// operations and a noop implementation.
package metrics

import "time"

// Recorder receives operational measurements. bag is the attribute bag name.
type Recorder interface {
	// RecordLoad is called once per lazy load with the number of rows fetched.
	RecordLoad(bag string, rows int)
	// RecordFlush is called after a successful flush.
	RecordFlush(bag string, upserts, deletes int)
	RecordHit(tier, bag string)
	RecordMiss(tier, bag string)
	RecordLatency(bag, op string, d time.Duration)
	RecordError(bag, op string)
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordLoad(bag string, rows int)               {}
func (Noop) RecordFlush(bag string, upserts, deletes int)  {}
func (Noop) RecordHit(tier, bag string)                    {}
func (Noop) RecordMiss(tier, bag string)                   {}
func (Noop) RecordLatency(bag, op string, d time.Duration) {}
func (Noop) RecordError(bag, op string)                    {}
