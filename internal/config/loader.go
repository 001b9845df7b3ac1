package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"groq", "whisper", "whisper-native"},
	"llm": {"openai", "groq", "anthropic", "gemini", "ollama", "anyllm"},
	"tts": {"elevenlabs", "googletrans"},
	"vad": {"energy"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with environment overrides applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKeyOverrides maps provider names to the environment variable that
// overrides their API key.
var envKeyOverrides = map[string]string{
	"groq":       "GROQ_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
}

// ApplyEnv overlays environment variables onto cfg. PORT replaces the port
// of server.listen_addr; per-provider *_API_KEY variables replace api_key
// fields for matching provider names, including fallbacks.
func ApplyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		host := ""
		if h, _, err := net.SplitHostPort(cfg.Server.ListenAddr); err == nil {
			host = h
		}
		cfg.Server.ListenAddr = net.JoinHostPort(host, port)
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.TranscriptLog.PostgresDSN = dsn
	}

	for _, entry := range []*ProviderEntry{
		&cfg.Providers.STT, &cfg.Providers.LLM, &cfg.Providers.TTS, &cfg.Providers.VAD,
	} {
		applyEnvKeys(entry)
	}
}

func applyEnvKeys(entry *ProviderEntry) {
	if envVar, ok := envKeyOverrides[entry.Name]; ok {
		if key := os.Getenv(envVar); key != "" {
			entry.APIKey = key
		}
	}
	for i := range entry.Fallbacks {
		applyEnvKeys(&entry.Fallbacks[i])
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("stt", cfg.Providers.STT)
	validateProviderName("llm", cfg.Providers.LLM)
	validateProviderName("tts", cfg.Providers.TTS)
	validateProviderName("vad", cfg.Providers.VAD)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}

	sess := cfg.Session
	if sess.AudioInput != "" && !sess.AudioInput.IsValid() {
		errs = append(errs, fmt.Errorf("session.audio_input %q is invalid; valid values: pcm16, opus, opaque", sess.AudioInput))
	}
	if sess.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("session.history_limit %d is negative", sess.HistoryLimit))
	}
	if sess.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("session.sample_rate %d is negative", sess.SampleRate))
	}
	if (sess.AudioInput == AudioPCM16 || sess.AudioInput == AudioOpus) && sess.SampleRate == 0 {
		errs = append(errs, fmt.Errorf("session.sample_rate is required when audio_input is %q", sess.AudioInput))
	}
	if sess.FrameMs < 0 {
		errs = append(errs, fmt.Errorf("session.frame_ms %d is negative", sess.FrameMs))
	}
	if cfg.Providers.VAD.Name != "" && sess.FrameMs == 0 {
		errs = append(errs, errors.New("session.frame_ms is required when providers.vad is configured"))
	}
	if sess.IdleTTL < 0 {
		errs = append(errs, fmt.Errorf("session.idle_ttl %s is negative", sess.IdleTTL.Std()))
	}
	if sess.Voice.SpeedFactor != 0 {
		if sess.Voice.SpeedFactor < 0.5 || sess.Voice.SpeedFactor > 2.0 {
			errs = append(errs, fmt.Errorf("session.voice.speed_factor %.2f is out of range [0.5, 2.0]", sess.Voice.SpeedFactor))
		}
	}
	if sess.Temperature < 0 || sess.Temperature > 2 {
		errs = append(errs, fmt.Errorf("session.temperature %.2f is out of range [0, 2]", sess.Temperature))
	}
	if sess.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("session.max_tokens %d is negative", sess.MaxTokens))
	}

	if cfg.TranscriptLog.PostgresDSN == "" {
		slog.Warn("transcript_log.postgres_dsn is empty; transcripts will not be persisted")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if the entry (or any of its fallbacks)
// names a provider not found in [ValidProviderNames] for the given kind.
func validateProviderName(kind string, entry ProviderEntry) {
	if entry.Name != "" {
		known := ValidProviderNames[kind]
		if !slices.Contains(known, entry.Name) {
			slog.Warn("unknown provider name — may be a typo or third-party provider",
				"kind", kind,
				"name", entry.Name,
				"known", known,
			)
		}
	}
	for _, fb := range entry.Fallbacks {
		validateProviderName(kind, fb)
	}
}
