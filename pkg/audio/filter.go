package audio

import (
	"bytes"
	"fmt"

	"github.com/voicelink-ai/voicelink/pkg/provider/vad"
)

// FilterSpeech partitions a mono 16-bit PCM buffer into consecutive
// non-overlapping frames of frameMs duration, classifies each full-size frame
// with c, and returns the surviving speech frames concatenated in their
// original order.
//
// The trailing partial frame (if any) is never classified and never emitted.
// If no frame is classified as speech — including when the input is shorter
// than one frame — the original input is returned unchanged: downstream
// transcription of silence is a better failure mode than transcription of an
// empty buffer.
//
// Classification errors are treated as "not speech" for the affected frame;
// the fail-open rule still protects against total rejection. FilterSpeech
// retains no state between calls.
func FilterSpeech(pcm []byte, sampleRate, frameMs int, c vad.Classifier) ([]byte, error) {
	frameSize := FrameSize(sampleRate, frameMs)
	if frameSize <= 0 {
		return nil, fmt.Errorf("audio: invalid frame size for rate=%d frameMs=%d", sampleRate, frameMs)
	}
	if len(pcm) < frameSize {
		return pcm, nil
	}

	var kept bytes.Buffer
	for off := 0; off+frameSize <= len(pcm); off += frameSize {
		frame := pcm[off : off+frameSize]
		speech, err := c.IsSpeech(frame)
		if err != nil || !speech {
			continue
		}
		kept.Write(frame)
	}

	if kept.Len() == 0 {
		return pcm, nil
	}
	return kept.Bytes(), nil
}
