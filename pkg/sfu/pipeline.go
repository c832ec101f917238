package sfu

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// MediaPipeline is the batched data-packet adapter. Packets from sources
// without a routing entry are dropped in place; a rewrite that expands a
// packet appends the extra packets to the tail of the batch.
type MediaPipeline struct {
	coordinator *Coordinator
}

func NewMediaPipeline(coordinator *Coordinator) *MediaPipeline {
	return &MediaPipeline{coordinator: coordinator}
}

// Transform rewrites one batch. Nil entries pass through untouched so the
// batch keeps its shape for the caller.
func (p *MediaPipeline) Transform(packets []*rtp.Packet) []*rtp.Packet {
	p.coordinator.markFirstMedia()

	var extras []*rtp.Packet

	for i, packet := range packets {
		if packet == nil {
			continue
		}

		ctrl, ok := p.coordinator.routing.Lookup(packet.SSRC)
		if !ok {
			packets[i] = nil
			continue
		}

		out := ctrl.TransformRTP(packet)
		if len(out) == 0 {
			packets[i] = nil
			continue
		}

		packets[i] = out[0]
		extras = append(extras, out[1:]...)
	}

	if len(extras) == 0 {
		return packets
	}

	return append(packets, extras...)
}

// Close tears down every controller known to the coordinator.
func (p *MediaPipeline) Close() error {
	p.coordinator.closeControllers()

	return nil
}

// ControlPipeline is the single-packet control adapter. Packets whose report
// SSRC has no owning controller pass through unchanged.
type ControlPipeline struct {
	coordinator *Coordinator
}

func NewControlPipeline(coordinator *Coordinator) *ControlPipeline {
	return &ControlPipeline{coordinator: coordinator}
}

func (p *ControlPipeline) Transform(packet rtcp.Packet) rtcp.Packet {
	if packet == nil {
		return nil
	}

	ssrcs := packet.DestinationSSRC()
	if len(ssrcs) == 0 {
		return packet
	}

	ctrl, ok := p.coordinator.routing.Lookup(ssrcs[0])
	if !ok {
		return packet
	}

	return ctrl.TransformRTCP(packet)
}
