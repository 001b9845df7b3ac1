package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicelink-ai/voicelink/pkg/provider/llm"
	llmmock "github.com/voicelink-ai/voicelink/pkg/provider/llm/mock"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	sttmock "github.com/voicelink-ai/voicelink/pkg/provider/stt/mock"
	ttsmock "github.com/voicelink-ai/voicelink/pkg/provider/tts/mock"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

func TestFallbackGroup_PrimarySucceeds(t *testing.T) {
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{})
	fg.AddFallback("fallback", "fallback")

	var used string
	err := fg.Execute(func(v string) error {
		used = v
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "primary" {
		t.Errorf("used = %q, want primary", used)
	}
}

func TestFallbackGroup_FailsOverInOrder(t *testing.T) {
	fg := NewFallbackGroup("a", "a", FallbackConfig{})
	fg.AddFallback("b", "b")
	fg.AddFallback("c", "c")

	var tried []string
	err := fg.Execute(func(v string) error {
		tried = append(tried, v)
		if v != "c" {
			return errTest
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if tried[i] != w {
			t.Errorf("tried[%d] = %q, want %q", i, tried[i], w)
		}
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := NewFallbackGroup("a", "a", FallbackConfig{})
	fg.AddFallback("b", "b")

	err := fg.Execute(func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsPrimary(t *testing.T) {
	cfg := FallbackConfig{CircuitBreaker: CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	}}
	fg := NewFallbackGroup("a", "a", cfg)
	fg.AddFallback("b", "b")

	// Trip the primary's breaker.
	_ = fg.Execute(func(v string) error {
		if v == "a" {
			return errTest
		}
		return nil
	})

	var tried []string
	err := fg.Execute(func(v string) error {
		tried = append(tried, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tried) != 1 || tried[0] != "b" {
		t.Errorf("tried = %v, want only the fallback", tried)
	}
}

func TestSTTFallback_FailsOverToSecondary(t *testing.T) {
	primary := &sttmock.Provider{Err: errTest}
	secondary := &sttmock.Provider{Transcript: types.Transcript{Text: "rescued"}}

	f := NewSTTFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	got, err := f.Transcribe(context.Background(), []byte("pcm"), stt.TranscribeConfig{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "rescued" {
		t.Errorf("Text = %q, want %q", got.Text, "rescued")
	}
	if len(primary.TranscribeCalls) != 1 || len(secondary.TranscribeCalls) != 1 {
		t.Errorf("calls = %d/%d, want 1/1",
			len(primary.TranscribeCalls), len(secondary.TranscribeCalls))
	}
}

func TestLLMFallback_FailsOverToSecondary(t *testing.T) {
	primary := &llmmock.Provider{Err: errTest}
	secondary := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "rescued"}}

	f := NewLLMFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{
		Messages: []types.Turn{{Role: types.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "rescued" {
		t.Errorf("Content = %q, want %q", resp.Content, "rescued")
	}
}

func TestLLMFallback_CapabilitiesFromPrimary(t *testing.T) {
	primary := &llmmock.Provider{Caps: llm.Capabilities{Model: "primary-model"}}
	secondary := &llmmock.Provider{Caps: llm.Capabilities{Model: "secondary-model"}}

	f := NewLLMFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	if got := f.Capabilities().Model; got != "primary-model" {
		t.Errorf("Model = %q, want primary-model", got)
	}
}

func TestTTSFallback_AllFail(t *testing.T) {
	primary := &ttsmock.Provider{Err: errTest}
	secondary := &ttsmock.Provider{Err: errTest}

	f := NewTTSFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	_, err := f.Synthesize(context.Background(), "hello", types.Voice{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
