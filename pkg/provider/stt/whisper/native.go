// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voicelink-ai/voicelink/pkg/audio"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO), eliminating the HTTP hop entirely. The model is loaded once at
// startup and shared across all calls; each Transcribe creates its own
// whisper context, so calls may run concurrently.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	mu     sync.Mutex
	closed bool
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the default BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en". A non-empty Language in the
// per-call TranscribeConfig takes precedence.
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given GGML file path. The caller must call Close when the provider is
// no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Transcribe calls after Close fail.
func (p *NativeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.model.Close()
}

// Transcribe implements stt.Provider. Only 16-bit mono PCM input is
// supported; whisper.cpp consumes float32 samples directly, so no container
// is involved.
func (p *NativeProvider) Transcribe(ctx context.Context, payload []byte, cfg stt.TranscribeConfig) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if cfg.Format != types.FormatPCM16 {
		return types.Transcript{}, fmt.Errorf("whisper: native provider requires PCM input, got %q", cfg.Format)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return types.Transcript{}, errors.New("whisper: provider is closed")
	}
	p.mu.Unlock()

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	samples := audio.PCMToFloat32(payload)

	// Each whisper context is single-use and not thread-safe, but the model
	// itself can be shared across goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	t := types.Transcript{Text: strings.Join(parts, " ")}
	if cfg.SampleRate > 0 {
		t.Duration = time.Duration(audio.DurationMs(payload, cfg.SampleRate)) * time.Millisecond
	}
	return t, nil
}
