// Command voicelink is the main entry point for the voicelink relay server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voicelink-ai/voicelink/internal/config"
	"github.com/voicelink-ai/voicelink/internal/health"
	"github.com/voicelink-ai/voicelink/internal/observe"
	"github.com/voicelink-ai/voicelink/internal/relay"
	"github.com/voicelink-ai/voicelink/internal/resilience"
	"github.com/voicelink-ai/voicelink/internal/session"
	"github.com/voicelink-ai/voicelink/internal/transcriptlog"
	"github.com/voicelink-ai/voicelink/pkg/provider/llm"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	"github.com/voicelink-ai/voicelink/pkg/provider/tts"
	"github.com/voicelink-ai/voicelink/pkg/provider/vad"
	"github.com/voicelink-ai/voicelink/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicelink: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicelink: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicelink starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voicelink",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	sttP, err := buildSTT(cfg, reg)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}
	llmP, err := buildLLM(cfg, reg)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}
	ttsP, err := buildTTS(cfg, reg)
	if err != nil {
		slog.Error("failed to build tts provider", "err", err)
		return 1
	}
	var classifier vad.Classifier
	if cfg.Providers.VAD.Name != "" {
		if classifier, err = reg.CreateVAD(cfg.Providers.VAD); err != nil {
			slog.Error("failed to build vad classifier", "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "vad", "name", cfg.Providers.VAD.Name)
	}

	// ── Transcript store ──────────────────────────────────────────────────────
	var store transcriptlog.Store
	var pg *transcriptlog.Postgres
	if dsn := cfg.TranscriptLog.PostgresDSN; dsn != "" {
		pg, err = transcriptlog.NewPostgres(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect transcript store", "err", err)
			return 1
		}
		defer pg.Close()
		store = pg
		slog.Info("transcript store connected")
	}

	// ── Relay ─────────────────────────────────────────────────────────────────
	relaySrv := relay.NewServer(sttP, llmP, ttsP, relayOptions(cfg, classifier, store, metrics)...)
	defer relaySrv.Close()

	var checkers []health.Checker
	if pg != nil {
		checkers = append(checkers, health.Checker{Name: "transcript_store", Check: pg.Ping})
	}

	mux := http.NewServeMux()
	relaySrv.Register(mux)
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           relay.CORS(cfg.Server.AllowedOrigins)(observe.Middleware(metrics)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildSTT creates the configured STT provider, wrapped in a failover chain
// when fallbacks are declared.
func buildSTT(cfg *config.Config, reg *config.Registry) (stt.Provider, error) {
	entry := cfg.Providers.STT
	primary, err := reg.CreateSTT(entry)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", entry.Name)
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewSTTFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateSTT(fb)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, p)
		slog.Info("fallback registered", "kind", "stt", "name", fb.Name)
	}
	return chain, nil
}

// buildLLM creates the configured LLM provider, wrapped in a failover chain
// when fallbacks are declared.
func buildLLM(cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	entry := cfg.Providers.LLM
	primary, err := reg.CreateLLM(entry)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateLLM(fb)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, p)
		slog.Info("fallback registered", "kind", "llm", "name", fb.Name)
	}
	return chain, nil
}

// buildTTS creates the configured TTS provider, wrapped in a failover chain
// when fallbacks are declared. Mixing providers with different output
// encodings in one chain means clients must sniff the reply container.
func buildTTS(cfg *config.Config, reg *config.Registry) (tts.Provider, error) {
	entry := cfg.Providers.TTS
	primary, err := reg.CreateTTS(entry)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", entry.Name)
	if len(entry.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewTTSFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateTTS(fb)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
		}
		chain.AddFallback(fb.Name, p)
		slog.Info("fallback registered", "kind", "tts", "name", fb.Name)
	}
	return chain, nil
}

// relayOptions translates the session block of the config into relay server
// options.
func relayOptions(cfg *config.Config, classifier vad.Classifier, store transcriptlog.Store, metrics *observe.Metrics) []relay.ServerOption {
	sessCfg := cfg.Session

	sttCfg := stt.TranscribeConfig{
		Format:   types.FormatOpaque,
		Language: sessCfg.Language,
	}
	switch sessCfg.AudioInput {
	case config.AudioPCM16, config.AudioOpus:
		// Opus input is decoded to PCM before it reaches the pipeline.
		sttCfg.Format = types.FormatPCM16
		sttCfg.SampleRate = sessCfg.SampleRate
	}

	sessionOpts := []session.Option{
		session.WithVoice(types.Voice{
			ID:          sessCfg.Voice.VoiceID,
			Language:    sessCfg.Voice.Language,
			SpeedFactor: sessCfg.Voice.SpeedFactor,
		}),
	}
	if sessCfg.HistoryLimit > 0 {
		sessionOpts = append(sessionOpts, session.WithHistoryLimit(sessCfg.HistoryLimit))
	}
	if sessCfg.SystemPrompt != "" {
		sessionOpts = append(sessionOpts, session.WithSystemPrompt(sessCfg.SystemPrompt))
	}
	if classifier != nil {
		sessionOpts = append(sessionOpts, session.WithSpeechFilter(classifier, sessCfg.FrameMs))
	}
	if store != nil {
		sessionOpts = append(sessionOpts, session.WithTranscriptLog(store))
	}
	if sessCfg.Temperature != 0 || sessCfg.MaxTokens != 0 {
		sessionOpts = append(sessionOpts, session.WithCompletionTuning(sessCfg.Temperature, sessCfg.MaxTokens))
	}

	opts := []relay.ServerOption{
		relay.WithTranscribeConfig(sttCfg),
		relay.WithMetrics(metrics),
		relay.WithSessionOptions(sessionOpts...),
	}
	if sessCfg.AudioInput == config.AudioOpus {
		opts = append(opts, relay.WithOpusInput())
	}
	if sessCfg.IdleTTL > 0 {
		opts = append(opts, relay.WithIdleTTL(sessCfg.IdleTTL.Std()))
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		opts = append(opts, relay.WithAllowedOrigins(cfg.Server.AllowedOrigins))
	}
	return opts
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
