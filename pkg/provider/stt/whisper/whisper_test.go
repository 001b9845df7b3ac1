package whisper_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt/whisper"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

// newMockServer creates a test server that responds to POST /inference with a
// JSON body containing the provided responseText. It increments *callCount on
// every matched request and records the last request body into *lastBody when
// non-nil.
func newMockServer(t *testing.T, responseText string, callCount *atomic.Int32, lastBody *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		if lastBody != nil {
			data, _ := io.ReadAll(r.Body)
			*lastBody = data
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
}

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNew_ValidServerURL_ReturnsProvider(t *testing.T) {
	p, err := whisper.New("http://localhost:9000", whisper.WithModel("small"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil Provider")
	}
}

func TestTranscribe_ReturnsServerText(t *testing.T) {
	var calls atomic.Int32
	srv := newMockServer(t, "hello world", &calls, nil)
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Transcribe(context.Background(), make([]byte, 3200), stt.TranscribeConfig{
		Format:     types.FormatPCM16,
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "hello world" {
		t.Errorf("Text = %q, want %q", got.Text, "hello world")
	}
	if got.Duration.Milliseconds() != 100 {
		t.Errorf("Duration = %v, want 100ms", got.Duration)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server calls = %d, want 1", n)
	}
}

func TestTranscribe_WrapsPCMInWAV(t *testing.T) {
	var body []byte
	srv := newMockServer(t, "ok", nil, &body)
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	if _, err := p.Transcribe(context.Background(), pcm, stt.TranscribeConfig{
		Format:     types.FormatPCM16,
		SampleRate: 16000,
	}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if !bytes.Contains(body, []byte("RIFF")) {
		t.Error("multipart body does not contain a RIFF header")
	}
	if !bytes.Contains(body, []byte(`name="language"`)) {
		t.Error("multipart body does not contain a language field")
	}
}

func TestTranscribe_OpaquePayloadSentVerbatim(t *testing.T) {
	var body []byte
	srv := newMockServer(t, "ok", nil, &body)
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	payload := []byte("not-a-wav-container")
	if _, err := p.Transcribe(context.Background(), payload, stt.TranscribeConfig{
		Format: types.FormatOpaque,
	}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if bytes.Contains(body, []byte("RIFF")) {
		t.Error("opaque payload should not be wrapped in a WAV container")
	}
	if !bytes.Contains(body, payload) {
		t.Error("multipart body does not contain the raw payload")
	}
}

func TestTranscribe_ServerError_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Transcribe(context.Background(), make([]byte, 320), stt.TranscribeConfig{
		Format:     types.FormatPCM16,
		SampleRate: 16000,
	}); err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
}

func TestTranscribe_CancelledContext_ReturnsError(t *testing.T) {
	srv := newMockServer(t, "ok", nil, nil)
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Transcribe(ctx, make([]byte, 320), stt.TranscribeConfig{
		Format:     types.FormatPCM16,
		SampleRate: 16000,
	}); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
