// Package mock provides a test double for the vad.Classifier interface.
//
// Use Classifier to script per-frame answers and inspect the frames that were
// submitted for classification.
//
// Example:
//
//	c := &mock.Classifier{Answers: []bool{false, true, true}}
//	keep, _ := c.IsSpeech(frame)
package mock

import (
	"sync"

	"github.com/voicelink-ai/voicelink/pkg/provider/vad"
)

// Compile-time assertion that Classifier satisfies vad.Classifier.
var _ vad.Classifier = (*Classifier)(nil)

// Classifier is a mock implementation of vad.Classifier.
type Classifier struct {
	mu sync.Mutex

	// Answers is the scripted sequence of IsSpeech results, consumed in
	// order. When exhausted (or nil), Default is returned.
	Answers []bool

	// Default is the result returned once Answers is exhausted.
	Default bool

	// Err, if non-nil, is returned by every IsSpeech call.
	Err error

	// Frames records a copy of every frame passed to IsSpeech, in order.
	Frames [][]byte

	next int
}

// IsSpeech records the call and returns the next scripted answer.
func (c *Classifier) IsSpeech(frame []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	c.Frames = append(c.Frames, cp)
	if c.Err != nil {
		return false, c.Err
	}
	if c.next < len(c.Answers) {
		ans := c.Answers[c.next]
		c.next++
		return ans, nil
	}
	return c.Default, nil
}

// ResetCalls clears all recorded frames and rewinds the answer script.
func (c *Classifier) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Frames = nil
	c.next = 0
}
