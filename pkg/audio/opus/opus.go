// Package opus decodes Opus audio into raw PCM for the relay pipeline.
//
// Browser clients that capture with the MediaRecorder/WebAudio APIs can ship
// utterances as a sequence of raw Opus packets instead of PCM. Each binary
// WebSocket frame then carries one utterance encoded as length-prefixed
// packets: a 2-byte big-endian packet length followed by the packet bytes,
// repeated. DecodeUtterance unpacks that framing and produces one contiguous
// 16-bit little-endian mono PCM buffer suitable for VAD filtering and STT.
package opus

import (
	"encoding/binary"
	"errors"
	"fmt"

	"layeh.com/gopus"
)

const (
	// maxFrameSamples is the largest Opus frame (120 ms at 48 kHz).
	maxFrameSamples = 5760

	// channels is fixed at mono; the relay pipeline is mono end to end.
	channels = 1
)

// ErrTruncated is returned when a length-prefixed packet extends past the end
// of the payload.
var ErrTruncated = errors.New("opus: truncated packet")

// Decoder decodes length-prefixed Opus packet streams into PCM. A Decoder
// carries libopus state between packets of one stream and must not be shared
// across utterance sources; it is not safe for concurrent use.
type Decoder struct {
	dec        *gopus.Decoder
	sampleRate int
}

// NewDecoder creates a mono Opus decoder producing PCM at sampleRate Hz.
// Valid rates are the Opus-native set: 8000, 12000, 16000, 24000, 48000.
func NewDecoder(sampleRate int) (*Decoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opus: create decoder: %w", err)
	}
	return &Decoder{dec: dec, sampleRate: sampleRate}, nil
}

// DecodeUtterance unpacks a length-prefixed Opus packet sequence and returns
// the concatenated PCM of all packets as 16-bit little-endian mono bytes.
//
// A packet that fails to decode is skipped; decoding continues with the next
// packet so a single corrupt packet does not discard the whole utterance.
// Returns ErrTruncated if a length prefix points past the end of payload, and
// an error if no packet decoded successfully.
func (d *Decoder) DecodeUtterance(payload []byte) ([]byte, error) {
	var out []byte
	decoded := 0

	for off := 0; off < len(payload); {
		if off+2 > len(payload) {
			return nil, ErrTruncated
		}
		n := int(binary.BigEndian.Uint16(payload[off : off+2]))
		off += 2
		if off+n > len(payload) {
			return nil, ErrTruncated
		}
		packet := payload[off : off+n]
		off += n

		pcm, err := d.dec.Decode(packet, maxFrameSamples, false)
		if err != nil {
			continue
		}
		out = appendPCM(out, pcm)
		decoded++
	}

	if decoded == 0 {
		return nil, errors.New("opus: no decodable packets in payload")
	}
	return out, nil
}

// appendPCM appends int16 samples to dst as little-endian byte pairs.
func appendPCM(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}
