package sfu

import "encoding/binary"

// RTPヘッダのフィールドオフセット (RFC 3550)
const (
	rtpHeaderSize = 12
	ssrcOffset    = 8
	rtpVersion    = 2
)

// packetSSRC は生のRTPパケットからSSRCを取り出します。
// ヘッダ全体をパースせず、固定オフセットのみを読みます。
func packetSSRC(packet []byte) (uint32, error) {
	if packet == nil {
		return 0, errNilPacket
	}
	if len(packet) < rtpHeaderSize {
		return 0, errShortPacket
	}
	if packet[0]>>6 != rtpVersion {
		return 0, errPacketVersion
	}

	return binary.BigEndian.Uint32(packet[ssrcOffset : ssrcOffset+4]), nil
}
