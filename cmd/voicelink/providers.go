package main

import (
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/voicelink-ai/voicelink/internal/config"
	"github.com/voicelink-ai/voicelink/pkg/provider/llm"
	"github.com/voicelink-ai/voicelink/pkg/provider/llm/anyllm"
	oaillm "github.com/voicelink-ai/voicelink/pkg/provider/llm/openai"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt/groq"
	"github.com/voicelink-ai/voicelink/pkg/provider/stt/whisper"
	"github.com/voicelink-ai/voicelink/pkg/provider/tts"
	"github.com/voicelink-ai/voicelink/pkg/provider/tts/elevenlabs"
	"github.com/voicelink-ai/voicelink/pkg/provider/tts/googletrans"
	"github.com/voicelink-ai/voicelink/pkg/provider/vad"
	"github.com/voicelink-ai/voicelink/pkg/provider/vad/energy"
)

// builtinProviders maps provider category names to the implementations that
// ship with voicelink. Used for startup logging.
var builtinProviders = map[string][]string{
	"stt": {"groq", "whisper", "whisper-native"},
	"llm": {"openai", "groq", "anthropic", "gemini", "ollama", "anyllm"},
	"tts": {"elevenlabs", "googletrans"},
	"vad": {"energy"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("groq", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []groq.Option
		if entry.BaseURL != "" {
			opts = append(opts, groq.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, groq.WithModel(entry.Model))
		}
		return groq.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// groq serves the OpenAI wire protocol from its own endpoint.
	reg.RegisterLLM("groq", func(entry config.ProviderEntry) (llm.Provider, error) {
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = oaillm.GroqBaseURL
		}
		return oaillm.New(entry.APIKey, entry.Model, oaillm.WithBaseURL(baseURL))
	})

	// anthropic, gemini and ollama go through the any-llm multi-backend
	// client; "anyllm" itself takes the backend name from options.
	for _, backend := range []string{"anthropic", "gemini", "ollama"} {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			return anyllm.New(backend, entry.Model, anyllmOptions(entry)...)
		})
	}
	reg.RegisterLLM("anyllm", func(entry config.ProviderEntry) (llm.Provider, error) {
		return anyllm.New(optString(entry.Options, "backend"), entry.Model, anyllmOptions(entry)...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("googletrans", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []googletrans.Option
		if entry.BaseURL != "" {
			opts = append(opts, googletrans.WithEndpoint(entry.BaseURL))
		}
		return googletrans.New(opts...), nil
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Classifier, error) {
		return energy.New(vad.Config{
			SampleRate:      optInt(entry.Options, "sample_rate"),
			FrameMs:         optInt(entry.Options, "frame_ms"),
			SpeechThreshold: optFloat(entry.Options, "threshold"),
		})
	})

	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// anyllmOptions maps the common entry fields onto any-llm client options.
func anyllmOptions(entry config.ProviderEntry) []anyllmlib.Option {
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return opts
}

// optString extracts a string value from a provider Options map. Returns ""
// if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// optInt extracts an integer value from a provider Options map. YAML decodes
// bare numbers as int.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// optFloat extracts a numeric value from a provider Options map.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
