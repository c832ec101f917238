package sfu

// RateSnapshot pairs a sustainable bitrate with the encoding it was measured
// for. Snapshots are immutable and live for a single allocation cycle.
type RateSnapshot struct {
	BPS      uint64
	Encoding *Encoding
}
