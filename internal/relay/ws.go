package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voicelink-ai/voicelink/internal/observe"
	"github.com/voicelink-ai/voicelink/internal/session"
	"github.com/voicelink-ai/voicelink/pkg/audio/opus"
)

// controlMessage is the envelope for text frames on the WebSocket. Only
// "ping" is recognised today; anything else is ignored so clients can ship
// newer control types without breaking older servers.
type controlMessage struct {
	Type string `json:"type"`
}

var wsConnSeq atomic.Uint64

// handleWS upgrades to a WebSocket and serves turns until the peer
// disconnects. Each binary frame is one complete utterance; the reply is a
// text JSON frame followed, when synthesis succeeded, by one binary audio
// frame. The session and its history die with the connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		observe.Logger(r.Context()).Error("websocket accept", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// One turn's audio can be megabytes of PCM.
	conn.SetReadLimit(s.maxUploadBytes)

	ctx := r.Context()
	log := observe.Logger(ctx)

	sessID := fmt.Sprintf("ws:%d", wsConnSeq.Add(1))
	sess := s.newSession(sessID)

	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(ctx, -1)

	var dec *opus.Decoder
	if s.opusInput {
		rate := s.sttCfg.SampleRate
		if rate == 0 {
			rate = 16000
		}
		if dec, err = opus.NewDecoder(rate); err != nil {
			log.Error("opus decoder init", "error", err)
			conn.Close(websocket.StatusInternalError, "opus decoder unavailable")
			return
		}
	}

	log.Info("websocket connected", "session_id", sessID, "remote", r.RemoteAddr)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			log.Debug("websocket closed", "session_id", sessID, "error", err)
			return
		}

		switch typ {
		case websocket.MessageText:
			var msg controlMessage
			if json.Unmarshal(data, &msg) != nil {
				continue
			}
			if msg.Type == "ping" {
				if err := wsjson.Write(ctx, conn, controlMessage{Type: "pong"}); err != nil {
					return
				}
			}

		case websocket.MessageBinary:
			if err := s.serveTurn(ctx, conn, sess, dec, data); err != nil {
				log.Warn("websocket reply failed", "session_id", sessID, "error", err)
				return
			}
		}
	}
}

// serveTurn runs one utterance through sess and writes the reply frames.
// Only transport errors are returned; pipeline faults are already contained
// in the turn result.
func (s *Server) serveTurn(ctx context.Context, conn *websocket.Conn, sess *session.Session, dec *opus.Decoder, payload []byte) error {
	if dec != nil {
		pcm, err := dec.DecodeUtterance(payload)
		if err != nil {
			// Fail open: hand the raw bytes to the STT provider, which may
			// still understand the container the client actually sent.
			observe.Logger(ctx).Warn("opus decode failed, forwarding raw payload", "error", err)
		} else {
			payload = pcm
		}
	}

	res := sess.RunTurn(ctx, payload)

	reply := chatReply{
		Transcription: res.Transcription,
		Response:      res.Response,
		Stages:        res.Stages,
	}
	if err := wsjson.Write(ctx, conn, reply); err != nil {
		return fmt.Errorf("relay: write reply frame: %w", err)
	}
	if len(res.Audio) > 0 {
		if err := conn.Write(ctx, websocket.MessageBinary, res.Audio); err != nil {
			return fmt.Errorf("relay: write audio frame: %w", err)
		}
	}
	return nil
}
