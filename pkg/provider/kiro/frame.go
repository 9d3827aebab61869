package kiro

import (
	"encoding/binary"
	"hash/crc32"
)

// FrameHeader is one string-valued header to encode into a frame.
type FrameHeader struct {
	Name  string
	Value string
}

// EncodeFrame builds a complete event-stream frame with the given
// string headers and payload. It is the inverse of the decoder and
// exists for the mock backend and tests; the gateway itself never
// encodes frames toward Kiro.
func EncodeFrame(headers []FrameHeader, payload []byte) []byte {
	var headerBlock []byte
	for _, h := range headers {
		headerBlock = append(headerBlock, byte(len(h.Name)))
		headerBlock = append(headerBlock, h.Name...)
		headerBlock = append(headerBlock, headerTypeString)
		headerBlock = binary.BigEndian.AppendUint16(headerBlock, uint16(len(h.Value)))
		headerBlock = append(headerBlock, h.Value...)
	}

	totalLen := preludeSize + len(headerBlock) + len(payload) + 4
	frame := make([]byte, 0, totalLen)
	frame = binary.BigEndian.AppendUint32(frame, uint32(totalLen))
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(headerBlock)))
	frame = binary.BigEndian.AppendUint32(frame, crc32.ChecksumIEEE(frame))
	frame = append(frame, headerBlock...)
	frame = append(frame, payload...)
	frame = binary.BigEndian.AppendUint32(frame, crc32.ChecksumIEEE(frame))
	return frame
}

// EncodeEventFrame builds an event frame carrying a JSON payload for
// the given event type.
func EncodeEventFrame(eventType string, payload []byte) []byte {
	return EncodeFrame([]FrameHeader{
		{Name: ":message-type", Value: "event"},
		{Name: ":event-type", Value: eventType},
	}, payload)
}

// EncodeExceptionFrame builds an exception frame with the given
// exception type and JSON payload.
func EncodeExceptionFrame(exceptionType string, payload []byte) []byte {
	return EncodeFrame([]FrameHeader{
		{Name: ":message-type", Value: "exception"},
		{Name: ":exception-type", Value: exceptionType},
	}, payload)
}
