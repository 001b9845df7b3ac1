// Package vad defines the Classifier interface for voice activity detection
// backends.
//
// A Classifier answers one question per fixed-size PCM frame: does this frame
// contain speech? The speech frame filter in pkg/audio uses it to drop
// silence before audio reaches the STT provider. Classification is synchronous
// by design — it sits in the per-turn hot path and must not block.
//
// Implementations must be safe for concurrent use; the relay may run one
// classifier instance across many connections.
package vad

// Config holds the parameters for a classifier. All numeric thresholds are in
// the implementation's native scale; see each backend's documentation for
// recommended starting values.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to IsSpeech. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameMs is the duration of each audio frame in milliseconds. Most VAD
	// implementations operate on fixed frame sizes (10, 20, or 30 ms).
	FrameMs int

	// SpeechThreshold is the score above which a frame is classified as
	// speech. Interpretation is implementation-specific: a probability in
	// [0, 1] for model-based backends, an RMS level for the energy backend.
	SpeechThreshold float64
}

// Classifier is the abstraction over any frame-level speech detector.
//
// Implementations must be safe for concurrent use and must not retain state
// between calls: two calls with the same frame bytes return the same answer
// regardless of what was classified before.
type Classifier interface {
	// IsSpeech reports whether a single audio frame contains speech. The
	// frame must be raw 16-bit little-endian PCM of the size agreed in
	// Config. Returns an error if the frame size is wrong or the backend
	// encounters an internal failure.
	IsSpeech(frame []byte) (bool, error)
}
