// Package types defines the shared types used across all voicelink packages.
//
// These types form the lingua franca between providers, the conversation
// session, and the transport layer. They are intentionally minimal — each
// package defines its own domain types, but cross-cutting data structures live
// here to avoid circular imports.
package types

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleUser marks a turn spoken by the connected client.
	RoleUser Role = "user"

	// RoleAssistant marks a turn generated by the chat model.
	RoleAssistant Role = "assistant"

	// RoleSystem marks an instruction injected ahead of the history. System
	// turns never enter a session's bounded history; they exist so the LLM
	// request builder can carry the configured system prompt.
	RoleSystem Role = "system"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Turn is one utterance or reply attributed to a role. Turns are immutable
// once created; ordering within a history is chronological.
type Turn struct {
	// Role is who produced this turn.
	Role Role

	// Content is the text content of the turn. May be empty — a failed or
	// silent transcription still produces a user turn.
	Content string
}

// Transcript is a speech-to-text result from an STT provider.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report confidence.
	Confidence float64

	// Duration is the length of the transcribed utterance, when known.
	Duration time.Duration
}

// Voice describes a TTS voice configuration.
type Voice struct {
	// ID is the provider-specific voice identifier. Providers with a single
	// fixed voice (e.g. the Google Translate endpoint) ignore it.
	ID string

	// Language is the BCP-47 language tag used for synthesis (e.g. "en").
	Language string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 0 = provider default).
	SpeedFactor float64
}

// AudioFormat identifies how binary audio payloads on the wire are encoded.
type AudioFormat string

const (
	// FormatPCM16 is raw 16-bit signed little-endian PCM, mono. The sample
	// rate is fixed per endpoint by configuration. This is the only format
	// eligible for frame-level speech filtering.
	FormatPCM16 AudioFormat = "pcm16"

	// FormatOpus is a stream of length-prefixed Opus packets, decoded
	// server-side to PCM before filtering and transcription.
	FormatOpus AudioFormat = "opus"

	// FormatOpaque is an unknown container (webm, wav, mp3, …) passed to the
	// STT provider untouched. Frame filtering is skipped.
	FormatOpaque AudioFormat = "opaque"
)

// IsValid reports whether f is a recognised audio format.
func (f AudioFormat) IsValid() bool {
	switch f {
	case FormatPCM16, FormatOpus, FormatOpaque:
		return true
	}
	return false
}
