// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (a hosted Whisper API, a
// local whisper-server, or the in-process whisper.cpp bindings) and exposes a
// uniform batch interface: one complete utterance in, one transcript out. The
// relay's single-utterance framing (one upload or one WebSocket binary frame
// per turn) makes batch the natural contract; there is no partial-result
// stream.
//
// Implementations must be safe for concurrent use — the relay transcribes for
// many connections at once — and must respect context cancellation.
package stt

import (
	"context"

	"github.com/voicelink-ai/voicelink/pkg/types"
)

// TranscribeConfig describes the audio payload handed to Transcribe.
type TranscribeConfig struct {
	// Format identifies the payload encoding. Providers that only accept a
	// specific container (e.g. WAV) must wrap FormatPCM16 payloads
	// themselves; FormatOpaque payloads are forwarded untouched.
	Format types.AudioFormat

	// SampleRate is the PCM sample rate in Hz. Ignored for FormatOpaque.
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g. "en").
	// Empty lets the provider auto-detect, if supported.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts one complete utterance to text. The returned
	// Transcript carries empty Text when the audio contains no recognisable
	// speech; that is a success, not an error. Errors indicate the backend
	// could not be reached or rejected the request — callers decide whether
	// to contain or propagate them.
	Transcribe(ctx context.Context, audio []byte, cfg TranscribeConfig) (types.Transcript, error)
}
