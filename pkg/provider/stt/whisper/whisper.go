// Package whisper provides local whisper.cpp-backed STT providers.
//
// Two variants exist:
//
//   - Provider talks to a running whisper-server binary over its REST API
//     (POST /inference). No CGo is required and the server can live on another
//     host.
//   - NativeProvider (native.go) loads a GGML model in-process through the
//     whisper.cpp Go bindings. It avoids the HTTP hop at the cost of a CGo
//     build and model memory in the relay process.
//
// Both accept one complete utterance per call and return the full transcript.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/voicelink-ai/voicelink/pkg/audio"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper-server (e.g.
// "base.en", "small"). When empty the server uses whichever model it was
// started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient overrides the HTTP client used for inference requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider backed by a whisper-server REST endpoint.
// It is safe for concurrent use; each Transcribe call is an independent HTTP
// request.
type Provider struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New constructs a Provider that submits inference requests to the
// whisper-server reachable at serverURL (e.g. "http://localhost:9000").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider. PCM payloads are wrapped in a WAV
// container; other formats are uploaded verbatim and the server parses the
// container itself.
func (p *Provider) Transcribe(ctx context.Context, payload []byte, cfg stt.TranscribeConfig) (types.Transcript, error) {
	data := payload
	if cfg.Format == types.FormatPCM16 {
		sr := cfg.SampleRate
		if sr <= 0 {
			sr = defaultSampleRate
		}
		data = audio.EncodeWAV(payload, sr, 1)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = defaultLanguage
	}
	if err := mw.WriteField("language", lang); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: write language field: %w", err)
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	t := types.Transcript{Text: result.Text}
	if cfg.Format == types.FormatPCM16 && cfg.SampleRate > 0 {
		t.Duration = time.Duration(audio.DurationMs(payload, cfg.SampleRate)) * time.Millisecond
	}
	return t, nil
}
