// Package relay exposes the voice pipeline over HTTP and WebSocket.
//
// Three routes: POST /transcribe/ runs speech recognition only, POST /chat/
// runs one full turn against a per-user session, and GET /ws holds a
// persistent connection whose binary frames each carry one complete
// utterance. Sessions over HTTP are keyed by the optional user_id form field
// and evicted after an idle period; a WebSocket session lives exactly as long
// as its connection.
package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/voicelink-ai/voicelink/internal/observe"
	"github.com/voicelink-ai/voicelink/internal/session"
	"github.com/voicelink-ai/voicelink/pkg/provider/llm"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	"github.com/voicelink-ai/voicelink/pkg/provider/tts"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

const (
	// defaultIdleTTL is how long an HTTP user session may sit unused before
	// the janitor drops it and its history.
	defaultIdleTTL = 10 * time.Minute

	// defaultMaxUploadBytes caps multipart audio uploads (2 minutes of
	// 16 kHz mono PCM is under 4 MiB; containers compress below that).
	defaultMaxUploadBytes = 16 << 20
)

// Server routes relay traffic onto the session pipeline. It is safe for
// concurrent use.
type Server struct {
	sttP stt.Provider
	llmP llm.Provider
	ttsP tts.Provider

	sessionOpts    []session.Option
	sttCfg         stt.TranscribeConfig
	opusInput      bool
	allowedOrigins []string

	metrics        *observe.Metrics
	idleTTL        time.Duration
	maxUploadBytes int64

	mu       sync.Mutex
	sessions map[string]*userSession
	done     chan struct{}
	closed   bool
}

// userSession pairs an HTTP session with its last-use timestamp for idle
// eviction.
type userSession struct {
	sess     *session.Session
	lastSeen time.Time
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithSessionOptions forwards options to every session the relay creates,
// both per-connection WebSocket sessions and per-user HTTP sessions.
func WithSessionOptions(opts ...session.Option) ServerOption {
	return func(s *Server) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// WithTranscribeConfig declares the audio encoding clients send. Default is
// opaque container bytes, which most STT backends accept as-is.
func WithTranscribeConfig(cfg stt.TranscribeConfig) ServerOption {
	return func(s *Server) { s.sttCfg = cfg }
}

// WithOpusInput switches binary WebSocket frames to length-prefixed Opus
// packet streams, decoded to PCM before the pipeline. Frames that fail to
// decode are forwarded untouched as opaque bytes rather than dropped.
func WithOpusInput() ServerOption {
	return func(s *Server) { s.opusInput = true }
}

// WithAllowedOrigins restricts cross-origin callers to the given origins.
// Default is to allow any origin.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithIdleTTL sets how long HTTP user sessions survive without a request.
// Default 10 minutes.
func WithIdleTTL(ttl time.Duration) ServerOption {
	return func(s *Server) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

// WithMetrics attaches a metrics instance. Default is observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithMaxUploadBytes caps the size of multipart audio uploads.
func WithMaxUploadBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// NewServer constructs a relay over the given providers and starts the
// session janitor. Call Close to stop it.
func NewServer(sttP stt.Provider, llmP llm.Provider, ttsP tts.Provider, opts ...ServerOption) *Server {
	s := &Server{
		sttP:           sttP,
		llmP:           llmP,
		ttsP:           ttsP,
		sttCfg:         stt.TranscribeConfig{Format: types.FormatOpaque},
		idleTTL:        defaultIdleTTL,
		maxUploadBytes: defaultMaxUploadBytes,
		sessions:       make(map[string]*userSession),
		done:           make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	go s.evictLoop()
	return s
}

// Close stops the session janitor and drops all HTTP user sessions.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	s.sessions = make(map[string]*userSession)
}

// Handler returns the relay's HTTP handler with CORS and observability
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return CORS(s.allowedOrigins)(observe.Middleware(s.metrics)(mux))
}

// Register attaches the relay routes to mux without middleware, for callers
// composing their own handler chain.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /transcribe/", s.handleTranscribe)
	mux.HandleFunc("POST /chat/", s.handleChat)
	mux.HandleFunc("GET /ws", s.handleWS)
}

// CORS restricts cross-origin callers to the given origin list. An empty list
// allows any origin, which suits browser demo clients served from arbitrary
// dev hosts; requests from origins outside a non-empty list get no
// Access-Control-Allow-Origin header at all.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(allowedOrigins) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(allowedOrigins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// newSession builds a session with the relay's provider trio and configured
// options.
func (s *Server) newSession(id string) *session.Session {
	opts := append([]session.Option{
		session.WithTranscribeConfig(s.sttCfg),
		session.WithMetrics(s.metrics),
	}, s.sessionOpts...)
	return session.New(id, s.sttP, s.llmP, s.ttsP, opts...)
}

// sessionFor returns the live session for userID, creating one if needed,
// and refreshes its idle timestamp.
func (s *Server) sessionFor(userID string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.sessions[userID]
	if !ok {
		us = &userSession{sess: s.newSession("user:" + userID)}
		s.sessions[userID] = us
	}
	us.lastSeen = time.Now()
	return us.sess
}

// evictLoop drops HTTP sessions that have been idle past the TTL.
func (s *Server) evictLoop() {
	ticker := time.NewTicker(s.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, us := range s.sessions {
				if now.Sub(us.lastSeen) > s.idleTTL {
					delete(s.sessions, id)
					slog.Debug("evicted idle session", "user_id", id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// SessionCount reports the number of live HTTP user sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
