package audio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/voicelink-ai/voicelink/pkg/provider/vad/mock"
)

// frameBytes builds a frame of n bytes filled with the given value so frames
// are distinguishable after concatenation.
func frameBytes(n int, fill byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestFilterSpeech_ShorterThanOneFrame(t *testing.T) {
	c := &mock.Classifier{Default: true}
	in := []byte{1, 2, 3, 4}

	// 16 kHz / 20 ms → 640-byte frames; 4 bytes is a partial frame.
	out, err := FilterSpeech(in, 16000, 20, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("output = %v, want unchanged input", out)
	}
	if len(c.Frames) != 0 {
		t.Errorf("classifier saw %d frames, want 0", len(c.Frames))
	}
}

func TestFilterSpeech_AllRejectedFailsOpen(t *testing.T) {
	frameSize := FrameSize(16000, 20)
	in := append(frameBytes(frameSize, 0xAA), frameBytes(frameSize, 0xBB)...)

	c := &mock.Classifier{Default: false}
	out, err := FilterSpeech(in, 16000, 20, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("all-rejected output differs from input; fail-open violated")
	}
	if len(out) == 0 {
		t.Error("output is empty; fail-open guarantees a non-empty buffer")
	}
}

func TestFilterSpeech_KeepsSpeechFramesInOrder(t *testing.T) {
	frameSize := FrameSize(16000, 20)
	f1 := frameBytes(frameSize, 1)
	f2 := frameBytes(frameSize, 2)
	f3 := frameBytes(frameSize, 3)
	in := append(append(append([]byte{}, f1...), f2...), f3...)

	c := &mock.Classifier{Answers: []bool{true, false, true}}
	out, err := FilterSpeech(in, 16000, 20, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := append(append([]byte{}, f1...), f3...)
	if !bytes.Equal(out, want) {
		t.Errorf("output = %d bytes, want concatenation of frames 1 and 3 (%d bytes)", len(out), len(want))
	}
}

func TestFilterSpeech_PartialTrailingFrameDiscarded(t *testing.T) {
	frameSize := FrameSize(16000, 20)
	f1 := frameBytes(frameSize, 1)
	partial := frameBytes(frameSize/2, 9)
	in := append(append([]byte{}, f1...), partial...)

	c := &mock.Classifier{Default: true}
	out, err := FilterSpeech(in, 16000, 20, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, f1) {
		t.Errorf("output includes partial frame bytes; only full frames are eligible")
	}
	if len(c.Frames) != 1 {
		t.Errorf("classifier saw %d frames, want 1 (partial frame must not be classified)", len(c.Frames))
	}
}

func TestFilterSpeech_ClassifierErrorTreatedAsNonSpeech(t *testing.T) {
	frameSize := FrameSize(16000, 20)
	in := append(frameBytes(frameSize, 1), frameBytes(frameSize, 2)...)

	c := &mock.Classifier{Err: errors.New("backend down")}
	out, err := FilterSpeech(in, 16000, 20, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("classifier failure must fail open to the original input")
	}
}

func TestFilterSpeech_InvalidFrameGeometry(t *testing.T) {
	c := &mock.Classifier{}
	if _, err := FilterSpeech([]byte{1, 2}, 0, 20, c); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := FilterSpeech([]byte{1, 2}, 16000, 0, c); err == nil {
		t.Error("expected error for zero frame duration")
	}
}
