package sfu

import (
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// テスト用のレイヤラダー:
// L0=50k@180p/7.5, L1=150k@180p/15, L2=300k@180p/30, L3=700k@360p/30, L4=2500k@720p/30
func testLadder(baseSSRC uint32) []Encoding {
	specs := []struct {
		height    int
		frameRate float64
		bitrate   uint64
	}{
		{180, 7.5, 50_000},
		{180, 15, 150_000},
		{180, 30, 300_000},
		{360, 30, 700_000},
		{720, 30, 2_500_000},
	}

	encodings := make([]Encoding, 0, len(specs))
	for i, s := range specs {
		encodings = append(encodings, Encoding{
			Index:     i,
			Height:    s.height,
			FrameRate: s.frameRate,
			Bitrate:   s.bitrate,
			SSRC:      webrtc.SSRC(baseSSRC + uint32(i)*2),
			RTXSSRC:   webrtc.SSRC(baseSSRC + uint32(i)*2 + 1),
		})
	}

	return encodings
}

func newTestTrack(id string, baseSSRC uint32) *VideoTrack {
	return NewVideoTrack(id, id+"-stream", testLadder(baseSSRC))
}

type fakeEndpoint struct {
	id             string
	expired        bool
	selectedIDs    []string
	pinnedIDs      []string
	lastN          int
	maxFrameHeight int
	tracks         []*VideoTrack
}

func (e *fakeEndpoint) ID() string                    { return e.id }
func (e *fakeEndpoint) IsExpired() bool               { return e.expired }
func (e *fakeEndpoint) SelectedEndpointIDs() []string { return e.selectedIDs }
func (e *fakeEndpoint) PinnedEndpointIDs() []string   { return e.pinnedIDs }
func (e *fakeEndpoint) LastN() int                    { return e.lastN }
func (e *fakeEndpoint) MaxFrameHeight() int           { return e.maxFrameHeight }
func (e *fakeEndpoint) VideoTracks() []*VideoTrack    { return e.tracks }

// newFakeEndpoint returns a participant with one track and no last-N limit.
func newFakeEndpoint(id string, baseSSRC uint32) *fakeEndpoint {
	return &fakeEndpoint{
		id:             id,
		lastN:          -1,
		maxFrameHeight: 720,
		tracks:         []*VideoTrack{newTestTrack(id+"-video", baseSSRC)},
	}
}

type fakeConference struct {
	mu        sync.Mutex
	endpoints []Endpoint
	fetches   int
}

func (c *fakeConference) EndpointsByDominantSpeaker() []Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fetches++

	return append([]Endpoint(nil), c.endpoints...)
}

func (c *fakeConference) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fetches
}

type fakeEstimator struct {
	estimate  uint64
	available bool
}

func (e *fakeEstimator) LatestEstimate() (uint64, bool) {
	return e.estimate, e.available
}

type fakeTransport struct {
	rtx bool
}

func (t *fakeTransport) SupportsRetransmission() bool {
	return t.rtx
}

type notifyCall struct {
	forwarded  []string
	entering   []string
	conference []string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *fakeNotifier) OnForwardedEndpointsChanged(forwarded, entering, conference []string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, notifyCall{
		forwarded:  forwarded,
		entering:   entering,
		conference: conference,
	})
}

func (n *fakeNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.calls)
}

func (n *fakeNotifier) lastCall() notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls[len(n.calls)-1]
}

type fakeController struct {
	mu sync.Mutex

	track *VideoTrack

	target  int
	optimal int
	current int

	acceptResult bool
	accepted     int

	rtpOut  []*rtp.Packet
	rtcpOut rtcp.Packet

	closed   bool
	closeErr error
}

var _ SourceController = (*fakeController)(nil)

func newFakeController(track *VideoTrack) *fakeController {
	return &fakeController{
		track:        track,
		target:       -1,
		optimal:      -1,
		current:      -1,
		acceptResult: true,
	}
}

func (f *fakeController) Accept(packet []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.accepted++

	return f.acceptResult
}

func (f *fakeController) TransformRTP(packet *rtp.Packet) []*rtp.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rtpOut != nil {
		return f.rtpOut
	}

	return []*rtp.Packet{packet}
}

func (f *fakeController) TransformRTCP(packet rtcp.Packet) rtcp.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rtcpOut != nil {
		return f.rtcpOut
	}

	return packet
}

func (f *fakeController) SetTargetIndex(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.target = index
}

func (f *fakeController) SetOptimalIndex(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.optimal = index
}

func (f *fakeController) CurrentIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.current
}

func (f *fakeController) Source() *VideoTrack {
	return f.track
}

func (f *fakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return f.closeErr
}

func (f *fakeController) targetIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.target
}

func (f *fakeController) optimalIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.optimal
}

func (f *fakeController) acceptedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.accepted
}

func (f *fakeController) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// controllerRegistry keeps the controllers a test factory has produced,
// keyed by track ID.
type controllerRegistry struct {
	mu      sync.Mutex
	byTrack map[string]*fakeController
}

func newControllerRegistry() *controllerRegistry {
	return &controllerRegistry{byTrack: make(map[string]*fakeController)}
}

func (r *controllerRegistry) factory(_ *Coordinator, track *VideoTrack) SourceController {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctrl := newFakeController(track)
	r.byTrack[track.ID()] = ctrl

	return ctrl
}

func (r *controllerRegistry) get(trackID string) *fakeController {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.byTrack[trackID]
}

func (r *controllerRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byTrack)
}
