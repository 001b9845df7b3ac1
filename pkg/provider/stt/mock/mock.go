// Package mock provides a test double for the stt package interfaces.
//
// Use Provider to feed controlled Transcript values and inspect which audio
// payloads were delivered.
//
// Example:
//
//	p := &mock.Provider{Transcript: types.Transcript{Text: "hello"}}
//	got, _ := p.Transcribe(ctx, pcm, stt.TranscribeConfig{})
package mock

import (
	"context"
	"sync"

	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Audio is a copy of the payload passed to Transcribe.
	Audio []byte
	// Cfg is the TranscribeConfig passed to Transcribe.
	Cfg stt.TranscribeConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned from Transcribe when Err is nil.
	Transcript types.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// DelayFn, if non-nil, is invoked before returning so tests can block
	// Transcribe until released. A non-nil error from DelayFn is returned
	// to the caller.
	DelayFn func(ctx context.Context) error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns Transcript, Err.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, cfg stt.TranscribeConfig) (types.Transcript, error) {
	p.mu.Lock()
	cp := make([]byte, len(audio))
	copy(cp, audio)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Audio: cp, Cfg: cfg})
	delay := p.DelayFn
	transcript, err := p.Transcript, p.Err
	p.mu.Unlock()

	if delay != nil {
		if derr := delay(ctx); derr != nil {
			return types.Transcript{}, derr
		}
	}
	if err != nil {
		return types.Transcript{}, err
	}
	return transcript, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
