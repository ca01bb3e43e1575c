package udp

import "encoding/binary"

// On-wire frame: a 4-byte big-endian com_id header followed by the PD
// payload. The codec's own payload encoding is untouched; this header
// only exists so one UDP socket can multiplex several subscribed com_ids
// (spec §4.8 "subscribe to com_id").
const frameHeaderSize = 4

func encodeFrame(comID uint32, payload []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, comID)
	copy(frame[frameHeaderSize:], payload)
	return frame
}

func decodeFrame(frame []byte) (comID uint32, payload []byte, ok bool) {
	if len(frame) < frameHeaderSize {
		return 0, nil, false
	}
	return binary.BigEndian.Uint32(frame), frame[frameHeaderSize:], true
}
