package relay

import (
	"encoding/base64"
	"io"
	"net/http"
	"time"

	"github.com/voicelink-ai/voicelink/internal/observe"
	"github.com/voicelink-ai/voicelink/internal/session"
)

// transcribeReply is the POST /transcribe/ response body.
type transcribeReply struct {
	Transcription string                `json:"transcription"`
	Stages        []session.StageResult `json:"stages"`
}

// chatReply is the POST /chat/ and WebSocket text reply body. Audio is
// base64-encoded synthesized speech, omitted when synthesis produced nothing.
type chatReply struct {
	Transcription string                `json:"transcription"`
	Response      string                `json:"response"`
	Stages        []session.StageResult `json:"stages"`
	Audio         string                `json:"audio,omitempty"`
}

// readAudioField extracts the multipart "audio" file from r. A nil return
// with ok=false means the response has already been written.
func (s *Server) readAudioField(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'audio' is required")
		return nil, false
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read audio upload: "+err.Error())
		return nil, false
	}
	if len(payload) == 0 {
		writeError(w, http.StatusBadRequest, "audio upload is empty")
		return nil, false
	}
	return payload, true
}

// handleTranscribe runs speech recognition on the uploaded audio and returns
// the text. Recognition faults degrade to an empty transcription with a
// failed stage marker, mirroring how a full turn contains them.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.readAudioField(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	start := time.Now()
	tr, err := s.sttP.Transcribe(ctx, payload, s.sttCfg)

	stage := session.StageResult{Stage: session.StageSTT, Status: session.StageOK}
	switch {
	case err != nil:
		stage.Status = session.StageFailed
		observe.Logger(ctx).Warn("transcription failed", "error", err)
	case tr.Text == "":
		stage.Status = session.StageEmpty
	}
	s.metrics.RecordStage(ctx, session.StageSTT, time.Since(start), string(stage.Status))

	writeJSON(w, http.StatusOK, transcribeReply{
		Transcription: tr.Text,
		Stages:        []session.StageResult{stage},
	})
}

// handleChat runs one full pipeline turn. When the form carries a user_id
// the turn goes against that user's server-side session and its history;
// otherwise the turn is stateless.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.readAudioField(w, r)
	if !ok {
		return
	}

	var sess *session.Session
	if userID := r.FormValue("user_id"); userID != "" {
		sess = s.sessionFor(userID)
	} else {
		sess = s.newSession("http:" + r.RemoteAddr)
	}

	res := sess.RunTurn(r.Context(), payload)

	reply := chatReply{
		Transcription: res.Transcription,
		Response:      res.Response,
		Stages:        res.Stages,
	}
	if len(res.Audio) > 0 {
		reply.Audio = base64.StdEncoding.EncodeToString(res.Audio)
	}
	writeJSON(w, http.StatusOK, reply)
}
