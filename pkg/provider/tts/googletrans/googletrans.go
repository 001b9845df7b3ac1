// Package googletrans provides a TTS provider backed by the public Google
// Translate text-to-speech endpoint, the same service the gTTS tooling wraps.
// It requires no API key and returns MP3 audio.
//
// The endpoint rejects long inputs, so text is split into chunks of at most
// maxChunkLen characters on whitespace boundaries and the resulting MP3
// payloads are concatenated. MP3 frames are self-delimiting, so players treat
// the concatenation as one continuous clip.
package googletrans

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voicelink-ai/voicelink/pkg/provider/tts"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

const (
	endpoint = "https://translate.google.com/translate_tts"

	// maxChunkLen matches the longest input the endpoint reliably accepts.
	maxChunkLen = 200

	defaultLanguage = "en"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client used for synthesis requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithEndpoint overrides the TTS endpoint URL. Intended for tests.
func WithEndpoint(u string) Option {
	return func(p *Provider) { p.endpoint = u }
}

// Provider implements tts.Provider against the Google Translate TTS endpoint.
// It is safe for concurrent use.
type Provider struct {
	httpClient *http.Client
	endpoint   string
}

// New creates a new Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize implements tts.Provider. voice.Language selects the speech
// language ("en" when empty); voice.ID is ignored because the endpoint offers
// a single voice per language.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.Voice) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("googletrans: text must not be empty")
	}

	lang := voice.Language
	if lang == "" {
		lang = defaultLanguage
	}

	var out bytes.Buffer
	for _, chunk := range splitChunks(text, maxChunkLen) {
		mp3, err := p.fetchChunk(ctx, chunk, lang)
		if err != nil {
			return nil, err
		}
		out.Write(mp3)
	}
	return out.Bytes(), nil
}

// fetchChunk requests the MP3 for a single text chunk.
func (p *Provider) fetchChunk(ctx context.Context, chunk, lang string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", chunk)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("googletrans: create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googletrans: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("googletrans: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("googletrans: read response: %w", err)
	}
	return data, nil
}

// splitChunks splits text into pieces of at most limit characters, breaking
// on whitespace where possible. A single word longer than limit is emitted
// whole rather than cut mid-word.
func splitChunks(text string, limit int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len(w) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
