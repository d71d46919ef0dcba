// Package generator deterministically compiles an IndustryTemplate plus a
// TemplateSpec into a replayable kernel event stream. Every random choice
// passes through a single seeded Stream; identical (template, spec, seed)
// inputs always produce byte-identical output.
package generator

import "math/rand"

// Stream is a local, seeded source of randomness. It never touches the
// global math/rand state, so two Streams constructed from the same seed
// produce the same sequence of draws regardless of what else is running.
type Stream struct {
	rng *rand.Rand
}

// NewStream constructs a Stream seeded with seed.
func NewStream(seed int64) *Stream {
	return &Stream{rng: rand.New(rand.NewSource(seed))}
}

// Shuffle permutes s in place using the Fisher-Yates algorithm driven by
// the stream's RNG.
func Shuffle[T any](s *Stream, items []T) {
	s.rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
