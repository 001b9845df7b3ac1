// Package session implements the per-conversation pipeline that turns one
// utterance of audio into one reply: transcription, chat completion, and
// speech synthesis, with a bounded conversation history in between.
//
// Each Session owns exactly one History. Turns are strictly sequential per
// session; concurrent RunTurn calls on the same session serialise behind a
// mutex. Provider faults never escape a turn — every stage reports a typed
// StageResult on the TurnResult and the pipeline degrades instead of failing:
// a dead STT produces an empty user turn, a dead LLM produces a reply with
// transcription only, a dead TTS produces a text-only reply.
package session

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/voicelink-ai/voicelink/internal/observe"
	"github.com/voicelink-ai/voicelink/internal/transcriptlog"
	"github.com/voicelink-ai/voicelink/pkg/audio"
	"github.com/voicelink-ai/voicelink/pkg/provider/llm"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	"github.com/voicelink-ai/voicelink/pkg/provider/tts"
	"github.com/voicelink-ai/voicelink/pkg/provider/vad"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

// State is the session's position in the per-turn pipeline.
type State string

const (
	StateIdle         State = "idle"
	StateTranscribing State = "transcribing"
	StateCompleting   State = "completing"
	StateSynthesizing State = "synthesizing"
)

// StageStatus describes the outcome of a single pipeline stage.
type StageStatus string

const (
	// StageOK means the stage ran and produced a non-empty result.
	StageOK StageStatus = "ok"
	// StageEmpty means the stage ran without error but produced nothing
	// (e.g. silence transcribed to an empty string).
	StageEmpty StageStatus = "empty"
	// StageFailed means the stage's provider returned an error. Err carries it.
	StageFailed StageStatus = "failed"
	// StageSkipped means an earlier failure made the stage unreachable.
	StageSkipped StageStatus = "skipped"
)

// Stage names as they appear in StageResult and metrics.
const (
	StageSTT = "stt"
	StageLLM = "llm"
	StageTTS = "tts"
)

// StageResult reports how one pipeline stage ended.
type StageResult struct {
	Stage  string      `json:"stage"`
	Status StageStatus `json:"status"`
	Err    error       `json:"-"`
}

// TurnResult is the outcome of one RunTurn call. It always carries a result
// for each of the three stages in pipeline order.
type TurnResult struct {
	// Transcription is the recognised user text, empty when STT failed or
	// heard nothing.
	Transcription string

	// Response is the assistant's reply text, empty when the LLM stage
	// failed or was starved of input.
	Response string

	// Audio is the synthesized reply, nil when TTS failed or was skipped.
	Audio []byte

	// Stages holds one StageResult per stage: stt, llm, tts.
	Stages []StageResult
}

// Status summarises the whole turn: "failed" when any stage failed, "empty"
// when every stage that ran produced nothing, otherwise "ok". Skipped stages
// do not count against the turn.
func (r *TurnResult) Status() StageStatus {
	status := StageEmpty
	for _, s := range r.Stages {
		switch s.Status {
		case StageFailed:
			return StageFailed
		case StageOK:
			status = StageOK
		}
	}
	return status
}

// StageByName returns the result for the named stage, or a zero StageResult
// when absent.
func (r *TurnResult) StageByName(name string) StageResult {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s
		}
	}
	return StageResult{}
}

// Session drives the transcribe → complete → synthesize pipeline over a
// bounded conversation history.
type Session struct {
	id string

	sttP   stt.Provider
	llmP   llm.Provider
	ttsP   tts.Provider
	sttCfg stt.TranscribeConfig
	voice  types.Voice

	systemPrompt string
	temperature  float64
	maxTokens    int

	// speech-frame filtering before STT; nil classifier disables it
	classifier vad.Classifier
	frameMs    int

	store   transcriptlog.Store
	metrics *observe.Metrics

	mu      sync.Mutex
	state   State
	history *History
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithHistoryLimit bounds the conversation history to n turns. Default 6.
func WithHistoryLimit(n int) Option {
	return func(s *Session) { s.history = NewHistory(n) }
}

// WithSystemPrompt injects a system instruction ahead of the history on
// every completion.
func WithSystemPrompt(p string) Option {
	return func(s *Session) { s.systemPrompt = p }
}

// WithTranscribeConfig sets the audio format metadata forwarded to the STT
// provider. Default is opaque container bytes.
func WithTranscribeConfig(cfg stt.TranscribeConfig) Option {
	return func(s *Session) { s.sttCfg = cfg }
}

// WithVoice sets the TTS voice. Default is the provider's zero voice.
func WithVoice(v types.Voice) Option {
	return func(s *Session) { s.voice = v }
}

// WithSpeechFilter enables the pre-STT speech frame filter. frameMs is the
// classification window; the sample rate comes from the transcribe config.
// Only effective for PCM input.
func WithSpeechFilter(c vad.Classifier, frameMs int) Option {
	return func(s *Session) {
		s.classifier = c
		s.frameMs = frameMs
	}
}

// WithTranscriptLog attaches a transcript store. Writes are best-effort.
func WithTranscriptLog(store transcriptlog.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithMetrics attaches a metrics instance. Default is observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithCompletionTuning sets the completion temperature and max token cap.
// Zero values defer to the provider defaults.
func WithCompletionTuning(temperature float64, maxTokens int) Option {
	return func(s *Session) {
		s.temperature = temperature
		s.maxTokens = maxTokens
	}
}

// New constructs a Session with the given providers. id identifies the
// session in transcripts and logs.
func New(id string, sttP stt.Provider, llmP llm.Provider, ttsP tts.Provider, opts ...Option) *Session {
	s := &Session{
		id:      id,
		sttP:    sttP,
		llmP:    llmP,
		ttsP:    ttsP,
		state:   StateIdle,
		history: NewHistory(DefaultHistoryLimit),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current pipeline state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a snapshot of the conversation history.
func (s *Session) History() []types.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Turns()
}

// RunTurn processes one complete utterance and returns the reply. The
// pipeline walks Idle → Transcribing → Completing → Synthesizing → Idle;
// faults degrade the result but never abort the turn or panic.
func (s *Session) RunTurn(ctx context.Context, audioIn []byte) *TurnResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	turnStart := time.Now()
	ctx, span := observe.StartSpan(ctx, "session.turn",
		trace.WithAttributes(observe.Attr("session_id", s.id)),
	)
	defer span.End()

	result := &TurnResult{}
	defer func() {
		s.state = StateIdle
		s.metrics.RecordStage(ctx, "turn", time.Since(turnStart), string(result.Status()))
	}()

	// Stage 1: transcribe.
	s.state = StateTranscribing
	transcript, sttRes := s.transcribe(ctx, audioIn)
	result.Transcription = transcript
	result.Stages = append(result.Stages, sttRes)

	// The user turn is recorded even when empty so the assistant can react
	// to silence the same way the history will show it.
	s.history.Append(types.Turn{Role: types.RoleUser, Content: transcript})
	s.logTurn(ctx, types.Turn{Role: types.RoleUser, Content: transcript})

	// Stage 2: complete.
	s.state = StateCompleting
	response, llmRes := s.complete(ctx)
	result.Response = response
	result.Stages = append(result.Stages, llmRes)

	if llmRes.Status == StageFailed {
		result.Stages = append(result.Stages, StageResult{Stage: StageTTS, Status: StageSkipped})
		return result
	}

	s.history.Append(types.Turn{Role: types.RoleAssistant, Content: response})
	s.logTurn(ctx, types.Turn{Role: types.RoleAssistant, Content: response})

	// Stage 3: synthesize.
	s.state = StateSynthesizing
	if response == "" {
		result.Stages = append(result.Stages, StageResult{Stage: StageTTS, Status: StageSkipped})
		return result
	}
	audioOut, ttsRes := s.synthesize(ctx, response)
	result.Audio = audioOut
	result.Stages = append(result.Stages, ttsRes)

	return result
}

// transcribe runs the optional speech filter and the STT provider. A
// provider fault is contained: the turn continues with an empty
// transcription.
func (s *Session) transcribe(ctx context.Context, audioIn []byte) (string, StageResult) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "session.stt")
	defer span.End()

	input := audioIn
	if s.classifier != nil && s.sttCfg.Format == types.FormatPCM16 {
		filtered, err := audio.FilterSpeech(audioIn, s.sttCfg.SampleRate, s.frameMs, s.classifier)
		if err != nil {
			observe.Logger(ctx).Warn("speech filter skipped", "session_id", s.id, "error", err)
		} else {
			input = filtered
		}
	}

	transcript, err := s.sttP.Transcribe(ctx, input, s.sttCfg)
	if err != nil {
		s.metrics.RecordStage(ctx, StageSTT, time.Since(start), "failed")
		observe.Logger(ctx).Error("transcription failed", "session_id", s.id, "error", err)
		return "", StageResult{Stage: StageSTT, Status: StageFailed, Err: err}
	}

	status := StageOK
	if transcript.Text == "" {
		status = StageEmpty
	}
	s.metrics.RecordStage(ctx, StageSTT, time.Since(start), string(status))
	return transcript.Text, StageResult{Stage: StageSTT, Status: status}
}

// complete sends the full history to the LLM provider.
func (s *Session) complete(ctx context.Context) (string, StageResult) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "session.llm")
	defer span.End()

	resp, err := s.llmP.Complete(ctx, llm.CompletionRequest{
		Messages:     s.history.Turns(),
		SystemPrompt: s.systemPrompt,
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
	})
	if err != nil {
		s.metrics.RecordStage(ctx, StageLLM, time.Since(start), "failed")
		observe.Logger(ctx).Error("completion failed", "session_id", s.id, "error", err)
		return "", StageResult{Stage: StageLLM, Status: StageFailed, Err: err}
	}

	status := StageOK
	if resp.Content == "" {
		status = StageEmpty
	}
	s.metrics.RecordStage(ctx, StageLLM, time.Since(start), string(status))
	return resp.Content, StageResult{Stage: StageLLM, Status: status}
}

// synthesize turns the reply text into audio. A fault degrades the reply to
// text-only.
func (s *Session) synthesize(ctx context.Context, text string) ([]byte, StageResult) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "session.tts")
	defer span.End()

	audioOut, err := s.ttsP.Synthesize(ctx, text, s.voice)
	if err != nil {
		s.metrics.RecordStage(ctx, StageTTS, time.Since(start), "failed")
		observe.Logger(ctx).Error("synthesis failed", "session_id", s.id, "error", err)
		return nil, StageResult{Stage: StageTTS, Status: StageFailed, Err: err}
	}

	status := StageOK
	if len(audioOut) == 0 {
		status = StageEmpty
	}
	s.metrics.RecordStage(ctx, StageTTS, time.Since(start), string(status))
	return audioOut, StageResult{Stage: StageTTS, Status: status}
}

// logTurn writes to the transcript store best-effort.
func (s *Session) logTurn(ctx context.Context, turn types.Turn) {
	if s.store == nil {
		return
	}
	if err := s.store.WriteTurn(ctx, s.id, turn); err != nil {
		s.metrics.RecordTranscriptLogFailure(ctx)
		observe.Logger(ctx).Warn("transcript log write failed", "session_id", s.id, "error", err)
	}
}
