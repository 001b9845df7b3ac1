// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or the
// Google Translate TTS endpoint) and turns one complete reply text into one
// complete audio payload. The relay sends the synthesized bytes to the client
// verbatim; the encoding (MP3, raw PCM) is a property of the provider and the
// client is expected to handle whatever its configured provider emits.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel.
package tts

import (
	"context"

	"github.com/voicelink-ai/voicelink/pkg/types"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into audio using the given voice and returns
	// the complete encoded payload. Empty text should return an error rather
	// than an empty payload so callers can distinguish "nothing to say" from
	// a provider that produced no audio.
	//
	// Returns an error if synthesis fails or ctx is cancelled first.
	Synthesize(ctx context.Context, text string, voice types.Voice) ([]byte, error)
}
