// Package groq provides an STT provider backed by Groq's hosted Whisper
// models, reached through their OpenAI-compatible audio transcription API via
// the openai-go SDK. The same provider serves any OpenAI-compatible endpoint
// (including api.openai.com itself) by overriding the base URL.
package groq

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voicelink-ai/voicelink/pkg/audio"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

const (
	// defaultBaseURL is Groq's OpenAI-compatible API root.
	defaultBaseURL = "https://api.groq.com/openai/v1"

	// defaultModel matches the hosted Whisper deployment the relay was
	// originally built against.
	defaultModel = "whisper-large-v3"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the Groq audio transcription API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional construction settings.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the Groq API base URL. Use this to point the provider
// at api.openai.com or any other OpenAI-compatible deployment.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model (e.g. "whisper-large-v3").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a Groq STT Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq: apiKey must not be empty")
	}

	cfg := &config{baseURL: defaultBaseURL, model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Transcribe implements stt.Provider. PCM payloads are wrapped in a WAV
// container before upload; opaque payloads are uploaded as-is under a generic
// filename and the API sniffs the container.
func (p *Provider) Transcribe(ctx context.Context, payload []byte, cfg stt.TranscribeConfig) (types.Transcript, error) {
	data, filename := payload, "audio.webm"
	if cfg.Format == types.FormatPCM16 {
		sr := cfg.SampleRate
		if sr <= 0 {
			sr = 16000
		}
		data = audio.EncodeWAV(payload, sr, 1)
		filename = "audio.wav"
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(data), filename, "application/octet-stream"),
		Model: oai.AudioModel(p.model),
	}
	if cfg.Language != "" {
		params.Language = oai.String(cfg.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("groq: transcription: %w", err)
	}

	return types.Transcript{Text: resp.Text}, nil
}
