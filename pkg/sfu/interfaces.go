package sfu

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

/*
SourceControllerは1つの送信元トラックの書き換えを担う抽象化されたインターフェースです。
Coordinatorがtarget/optimalインデックスを設定し、データパスはAccept/Transformを呼び出します。
シーケンス番号・タイムスタンプの連続性やRTXの処理はSourceController側の責務です。
*/
type SourceController interface {
	// Accept reports whether a raw data packet from this source should be
	// forwarded to the destination.
	Accept(packet []byte) bool
	// TransformRTP rewrites a media packet. It returns zero packets to drop,
	// one to forward, or several when the rewrite expands the input.
	TransformRTP(packet *rtp.Packet) []*rtp.Packet
	// TransformRTCP rewrites a control packet addressed to this source.
	TransformRTCP(packet rtcp.Packet) rtcp.Packet

	SetTargetIndex(index int)
	SetOptimalIndex(index int)
	CurrentIndex() int

	Source() *VideoTrack
	Close() error
}

// ControllerFactory builds the controller for a track the allocation cycle
// meets for the first time, whether or not that track is forwarded.
// The coordinator reference lets the controller read shared context such as
// the first-media timestamp.
type ControllerFactory func(coordinator *Coordinator, track *VideoTrack) SourceController

// ConferenceContext supplies the conference membership, most recent dominant
// speaker first.
type ConferenceContext interface {
	EndpointsByDominantSpeaker() []Endpoint
}

// Endpoint is one conference participant as seen by the allocator.
type Endpoint interface {
	ID() string
	IsExpired() bool
	SelectedEndpointIDs() []string
	PinnedEndpointIDs() []string
	LastN() int
	MaxFrameHeight() int
	VideoTracks() []*VideoTrack
}

// BandwidthEstimator exposes the most recent downlink estimate in bits per
// second. The second return value is false while no estimate exists.
type BandwidthEstimator interface {
	LatestEstimate() (uint64, bool)
}

// Transport reports capabilities of the destination's transport.
type Transport interface {
	SupportsRetransmission() bool
}

// ChangeNotifier receives the forwarded-endpoints change event.
type ChangeNotifier interface {
	OnForwardedEndpointsChanged(forwarded, entering, conference []string)
}
