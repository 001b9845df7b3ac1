package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voicelink-ai/voicelink/internal/observe"
	"github.com/voicelink-ai/voicelink/internal/session"
	"github.com/voicelink-ai/voicelink/internal/transcriptlog"
	"github.com/voicelink-ai/voicelink/pkg/provider/llm"
	llmmock "github.com/voicelink-ai/voicelink/pkg/provider/llm/mock"
	sttmock "github.com/voicelink-ai/voicelink/pkg/provider/stt/mock"
	ttsmock "github.com/voicelink-ai/voicelink/pkg/provider/tts/mock"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

// newMocks returns a happy-path provider trio: "hello" in, "hi there" out,
// with a short audio payload.
func newMocks() (*sttmock.Provider, *llmmock.Provider, *ttsmock.Provider) {
	sttP := &sttmock.Provider{Transcript: types.Transcript{Text: "hello"}}
	llmP := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "hi there"}}
	ttsP := &ttsmock.Provider{Audio: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	return sttP, llmP, ttsP
}

func TestRunTurn_HappyPath(t *testing.T) {
	sttP, llmP, ttsP := newMocks()
	s := session.New("t1", sttP, llmP, ttsP)

	res := s.RunTurn(context.Background(), []byte("utterance"))

	if res.Transcription != "hello" {
		t.Errorf("Transcription = %q, want %q", res.Transcription, "hello")
	}
	if res.Response != "hi there" {
		t.Errorf("Response = %q, want %q", res.Response, "hi there")
	}
	if len(res.Audio) == 0 {
		t.Error("Audio is empty, want non-empty synthesized payload")
	}

	for _, stage := range []string{session.StageSTT, session.StageLLM, session.StageTTS} {
		if got := res.StageByName(stage).Status; got != session.StageOK {
			t.Errorf("stage %s status = %q, want ok", stage, got)
		}
	}

	// Each provider is called exactly once per turn.
	if n := len(sttP.TranscribeCalls); n != 1 {
		t.Errorf("stt calls = %d, want 1", n)
	}
	if n := len(llmP.CompleteCalls); n != 1 {
		t.Errorf("llm calls = %d, want 1", n)
	}
	if n := len(ttsP.SynthesizeCalls); n != 1 {
		t.Errorf("tts calls = %d, want 1", n)
	}

	if got := s.State(); got != session.StateIdle {
		t.Errorf("state after turn = %q, want idle", got)
	}

	// History records the user and assistant turns in order.
	hist := s.History()
	if len(hist) != 2 {
		t.Fatalf("history len = %d, want 2", len(hist))
	}
	if hist[0].Role != types.RoleUser || hist[0].Content != "hello" {
		t.Errorf("history[0] = %+v", hist[0])
	}
	if hist[1].Role != types.RoleAssistant || hist[1].Content != "hi there" {
		t.Errorf("history[1] = %+v", hist[1])
	}
}

func TestRunTurn_STTFailure_ContinuesWithEmptyTranscription(t *testing.T) {
	sttP, llmP, ttsP := newMocks()
	sttP.Err = errors.New("stt down")
	s := session.New("t1", sttP, llmP, ttsP)

	res := s.RunTurn(context.Background(), []byte("utterance"))

	if res.Transcription != "" {
		t.Errorf("Transcription = %q, want empty", res.Transcription)
	}
	if got := res.StageByName(session.StageSTT).Status; got != session.StageFailed {
		t.Errorf("stt status = %q, want failed", got)
	}
	// Pipeline continues: the LLM still runs on the empty user turn.
	if len(llmP.CompleteCalls) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(llmP.CompleteCalls))
	}
	if res.Response != "hi there" {
		t.Errorf("Response = %q, want %q", res.Response, "hi there")
	}
}

func TestRunTurn_LLMFailure_SkipsSynthesis(t *testing.T) {
	sttP, llmP, ttsP := newMocks()
	llmP.Err = errors.New("llm down")
	s := session.New("t1", sttP, llmP, ttsP)

	res := s.RunTurn(context.Background(), []byte("utterance"))

	if res.Transcription != "hello" {
		t.Errorf("Transcription = %q, want %q", res.Transcription, "hello")
	}
	if res.Response != "" {
		t.Errorf("Response = %q, want empty", res.Response)
	}
	if got := res.StageByName(session.StageLLM).Status; got != session.StageFailed {
		t.Errorf("llm status = %q, want failed", got)
	}
	if got := res.StageByName(session.StageTTS).Status; got != session.StageSkipped {
		t.Errorf("tts status = %q, want skipped", got)
	}
	if len(ttsP.SynthesizeCalls) != 0 {
		t.Errorf("tts calls = %d, want 0", len(ttsP.SynthesizeCalls))
	}

	// No assistant turn is appended for a failed completion.
	hist := s.History()
	if len(hist) != 1 || hist[0].Role != types.RoleUser {
		t.Errorf("history = %+v, want only the user turn", hist)
	}
}

func TestRunTurn_TTSFailure_TextReplyStillEmitted(t *testing.T) {
	sttP, llmP, ttsP := newMocks()
	ttsP.Err = errors.New("tts down")
	s := session.New("t1", sttP, llmP, ttsP)

	res := s.RunTurn(context.Background(), []byte("utterance"))

	if res.Response != "hi there" {
		t.Errorf("Response = %q, want %q", res.Response, "hi there")
	}
	if res.Audio != nil {
		t.Errorf("Audio = %v, want nil", res.Audio)
	}
	if got := res.StageByName(session.StageTTS).Status; got != session.StageFailed {
		t.Errorf("tts status = %q, want failed", got)
	}
}

func TestRunTurn_HistoryBoundEnforced(t *testing.T) {
	sttP, llmP, ttsP := newMocks()
	s := session.New("t1", sttP, llmP, ttsP, session.WithHistoryLimit(4))

	for i := 0; i < 5; i++ {
		s.RunTurn(context.Background(), []byte("utterance"))
	}

	hist := s.History()
	if len(hist) != 4 {
		t.Fatalf("history len = %d, want 4", len(hist))
	}
	// The window always ends with the latest assistant turn.
	if hist[len(hist)-1].Role != types.RoleAssistant {
		t.Errorf("last turn role = %q, want assistant", hist[len(hist)-1].Role)
	}
}

func TestRunTurn_SystemPromptForwarded(t *testing.T) {
	sttP, llmP, ttsP := newMocks()
	s := session.New("t1", sttP, llmP, ttsP, session.WithSystemPrompt("be brief"))

	s.RunTurn(context.Background(), []byte("utterance"))

	if len(llmP.CompleteCalls) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(llmP.CompleteCalls))
	}
	if got := llmP.CompleteCalls[0].Req.SystemPrompt; got != "be brief" {
		t.Errorf("SystemPrompt = %q, want %q", got, "be brief")
	}
}

func TestConcurrentSessions_IndependentHistories(t *testing.T) {
	mkSession := func(id, reply string) *session.Session {
		sttP := &sttmock.Provider{Transcript: types.Transcript{Text: "from " + id}}
		llmP := &llmmock.Provider{Response: &llm.CompletionResponse{Content: reply}}
		ttsP := &ttsmock.Provider{Audio: []byte{0x01}}
		return session.New(id, sttP, llmP, ttsP)
	}

	a := mkSession("a", "reply a")
	b := mkSession("b", "reply b")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.RunTurn(context.Background(), []byte("x"))
		}()
		go func() {
			defer wg.Done()
			b.RunTurn(context.Background(), []byte("x"))
		}()
	}
	wg.Wait()

	for _, turn := range a.History() {
		if turn.Content != "from a" && turn.Content != "reply a" {
			t.Errorf("session a history contains foreign turn %+v", turn)
		}
	}
	for _, turn := range b.History() {
		if turn.Content != "from b" && turn.Content != "reply b" {
			t.Errorf("session b history contains foreign turn %+v", turn)
		}
	}
}

func TestRunTurn_WritesTranscriptLog(t *testing.T) {
	sttP, llmP, ttsP := newMocks()
	store := transcriptlog.NewMemory()
	s := session.New("logged", sttP, llmP, ttsP, session.WithTranscriptLog(store))

	s.RunTurn(context.Background(), []byte("utterance"))

	turns, err := store.RecentTurns(context.Background(), "logged", 0)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("logged turns = %d, want 2", len(turns))
	}
	if turns[0].Content != "hello" || turns[1].Content != "hi there" {
		t.Errorf("logged turns = %+v", turns)
	}
}

func TestTurnResultStatus(t *testing.T) {
	tests := []struct {
		name   string
		stages []session.StageResult
		want   session.StageStatus
	}{
		{
			name: "all ok",
			stages: []session.StageResult{
				{Stage: session.StageSTT, Status: session.StageOK},
				{Stage: session.StageLLM, Status: session.StageOK},
				{Stage: session.StageTTS, Status: session.StageOK},
			},
			want: session.StageOK,
		},
		{
			name: "any failure dominates",
			stages: []session.StageResult{
				{Stage: session.StageSTT, Status: session.StageOK},
				{Stage: session.StageLLM, Status: session.StageOK},
				{Stage: session.StageTTS, Status: session.StageFailed},
			},
			want: session.StageFailed,
		},
		{
			name: "silence with skipped synthesis",
			stages: []session.StageResult{
				{Stage: session.StageSTT, Status: session.StageEmpty},
				{Stage: session.StageLLM, Status: session.StageEmpty},
				{Stage: session.StageTTS, Status: session.StageSkipped},
			},
			want: session.StageEmpty,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := &session.TurnResult{Stages: tc.stages}
			if got := res.Status(); got != tc.want {
				t.Errorf("Status() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRunTurn_FailedStagesSurfaceInTurnMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	sttP := &sttmock.Provider{Err: errors.New("stt down")}
	llmP := &llmmock.Provider{Err: errors.New("llm down")}
	ttsP := &ttsmock.Provider{}
	s := session.New("broken", sttP, llmP, ttsP, session.WithMetrics(m))

	res := s.RunTurn(context.Background(), []byte("utterance"))
	if res.Status() != session.StageFailed {
		t.Fatalf("Status() = %q, want failed", res.Status())
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var statuses []string
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "voicelink.turn.duration" {
				continue
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("turn.duration data is %T, want Histogram[float64]", met.Data)
			}
			for _, dp := range hist.DataPoints {
				if v, ok := dp.Attributes.Value("status"); ok {
					statuses = append(statuses, v.AsString())
				}
			}
		}
	}
	if len(statuses) != 1 || statuses[0] != "failed" {
		t.Errorf("turn.duration statuses = %v, want [failed]", statuses)
	}
}
