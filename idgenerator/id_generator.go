// Package idgenerator provides concurrency-safe monotonically increasing
// id sequences. The server uses one generator for connection ids and a
// separate one, seeded below the first room number, for room ids, so the
// shared-counter state has an explicit owner instead of living in a
// package-level variable.
package idgenerator

import "sync/atomic"

// IdGenerator generates monotonically increasing uint32 IDs in a
// concurrency-safe manner. The starting value is set at construction and
// the first Id() returns startValue+1. IDs never repeat for the lifetime
// of the generator.
type IdGenerator struct {
	id atomic.Uint32
}

// NewIdGenerator creates an IdGenerator that will generate IDs starting
// from startValue+1. The generator is safe for concurrent use.
//
// Parameters:
//   - startValue: The value to initialize the counter to; the first Id()
//     will return startValue+1
//
// Returns:
//   - A new IdGenerator instance
func NewIdGenerator(startValue uint32) *IdGenerator {
	gen := &IdGenerator{}
	gen.id.Store(startValue)
	return gen
}

// Id returns the next unique ID by atomically incrementing the internal
// counter. It is safe for concurrent use by multiple goroutines.
//
// Returns:
//   - The next uint32 ID
func (g *IdGenerator) Id() uint32 {
	return g.id.Add(1)
}
