package resilience

import (
	"context"

	"github.com/voicelink-ai/voicelink/pkg/provider/tts"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
//
// Fallback TTS backends may emit different encodings (e.g. an MP3 primary and
// a PCM fallback); callers that care about the container must configure
// matching output formats across the group.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	cfg.Kind = "tts"
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize runs the text against the first healthy provider, failing over
// in registration order.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice types.Voice) ([]byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text, voice)
	})
}
