package sfu

import "errors"

var (
	errNilPacket     = errors.New("nil packet")
	errShortPacket   = errors.New("packet is too short")
	errPacketVersion = errors.New("unsupported rtp version")

	// ErrNoDestination describes a destination endpoint that cannot be
	// resolved from the conference. Update does not return it: a missing or
	// expired destination idles every controller instead.
	ErrNoDestination = errors.New("destination endpoint not found")
)
