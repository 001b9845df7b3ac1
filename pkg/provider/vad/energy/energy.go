// Package energy provides an RMS energy-based voice activity classifier.
//
// It is the zero-dependency default: a frame whose root-mean-square energy
// exceeds a configurable threshold is classified as speech. This matches the
// silence gating used in front of batch whisper inference and is good enough
// to strip leading/trailing silence from push-to-talk utterances, though it
// cannot distinguish speech from other loud sounds.
package energy

import (
	"errors"
	"fmt"

	"github.com/voicelink-ai/voicelink/pkg/audio"
	"github.com/voicelink-ai/voicelink/pkg/provider/vad"
)

// defaultThreshold is the RMS level (in 16-bit PCM units, max 32 767) below
// which a frame is considered silent. 300 corresponds to near-silence.
const defaultThreshold = 300.0

// Compile-time assertion that Classifier satisfies vad.Classifier.
var _ vad.Classifier = (*Classifier)(nil)

// Classifier implements vad.Classifier using an RMS energy threshold.
// It is stateless and safe for concurrent use.
type Classifier struct {
	threshold float64
	frameSize int
}

// New creates an energy Classifier from cfg. A zero or negative
// SpeechThreshold selects the default of 300 RMS units. SampleRate and
// FrameMs must be positive; they fix the expected frame size.
func New(cfg vad.Config) (*Classifier, error) {
	if cfg.SampleRate <= 0 {
		return nil, errors.New("energy: SampleRate must be positive")
	}
	if cfg.FrameMs <= 0 {
		return nil, errors.New("energy: FrameMs must be positive")
	}
	threshold := cfg.SpeechThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Classifier{
		threshold: threshold,
		frameSize: audio.FrameSize(cfg.SampleRate, cfg.FrameMs),
	}, nil
}

// IsSpeech reports whether the frame's RMS energy exceeds the threshold.
// The frame must be exactly one configured frame in size.
func (c *Classifier) IsSpeech(frame []byte) (bool, error) {
	if len(frame) != c.frameSize {
		return false, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), c.frameSize)
	}
	return audio.RMS(frame) >= c.threshold, nil
}
