package sfu

import "github.com/pion/webrtc/v4"

// Encoding is a single sub-stream of a video source.
// Encodings of one track are ordered by Index; a higher index depends on
// every lower index for decoding.
type Encoding struct {
	Index     int
	Height    int
	FrameRate float64
	Bitrate   uint64
	SSRC      webrtc.SSRC
	RTXSSRC   webrtc.SSRC
}

// VideoTrack is the ordered set of encodings advertised for one camera.
type VideoTrack struct {
	id        string
	streamID  string
	encodings []Encoding
}

func NewVideoTrack(id, streamID string, encodings []Encoding) *VideoTrack {
	return &VideoTrack{
		id:        id,
		streamID:  streamID,
		encodings: encodings,
	}
}

func (t *VideoTrack) ID() string {
	return t.id
}

func (t *VideoTrack) StreamID() string {
	return t.streamID
}

func (t *VideoTrack) Encodings() []Encoding {
	return t.encodings
}

// PrimarySSRC returns the SSRC of the base encoding, or -1 when the track
// advertises no encodings.
func (t *VideoTrack) PrimarySSRC() int64 {
	if t == nil || len(t.encodings) == 0 {
		return -1
	}

	return int64(t.encodings[0].SSRC)
}

// SSRCs returns every primary and retransmission SSRC of the track.
func (t *VideoTrack) SSRCs() []uint32 {
	if t == nil {
		return nil
	}

	ssrcs := make([]uint32, 0, len(t.encodings)*2)
	for _, enc := range t.encodings {
		ssrcs = append(ssrcs, uint32(enc.SSRC))
		if enc.RTXSSRC != 0 {
			ssrcs = append(ssrcs, uint32(enc.RTXSSRC))
		}
	}

	return ssrcs
}

// EncodingByIndex returns the encoding with the given quality index.
func (t *VideoTrack) EncodingByIndex(index int) (Encoding, bool) {
	if t == nil {
		return Encoding{}, false
	}

	for _, enc := range t.encodings {
		if enc.Index == index {
			return enc, true
		}
	}

	return Encoding{}, false
}
