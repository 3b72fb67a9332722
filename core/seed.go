package core

import (
	"math/bits"
	"time"
)

// SeedSource produces values for auto-filled seed fields. The default derives
// seeds from the clock; tests inject deterministic sources.
type SeedSource func() uint32

// clockSeed derives a seed from the wall clock: the current time in
// milliseconds, low 32 bits byte-swapped so the fastest-moving byte lands in
// the high position. Entries built within the same second still get
// well-spread seeds.
func clockSeed() uint32 {
	return bits.ReverseBytes32(uint32(time.Now().UnixMilli()))
}
