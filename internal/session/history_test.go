package session

import (
	"fmt"
	"testing"

	"github.com/voicelink-ai/voicelink/pkg/types"
)

func TestHistory_AppendAndOrder(t *testing.T) {
	h := NewHistory(6)
	h.Append(types.Turn{Role: types.RoleUser, Content: "one"})
	h.Append(types.Turn{Role: types.RoleAssistant, Content: "two"})
	h.Append(types.Turn{Role: types.RoleUser, Content: "three"})

	got := h.Turns()
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("turn[%d] = %q, want %q", i, got[i].Content, w)
		}
	}
}

func TestHistory_EvictsOldestAtBound(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Append(types.Turn{Role: types.RoleUser, Content: fmt.Sprintf("msg %d", i)})
		if h.Len() > 3 {
			t.Fatalf("len = %d after append %d, bound is 3", h.Len(), i)
		}
	}

	got := h.Turns()
	want := []string{"msg 3", "msg 4", "msg 5"}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("turn[%d] = %q, want %q", i, got[i].Content, w)
		}
	}
}

func TestHistory_DefaultLimit(t *testing.T) {
	h := NewHistory(0)
	if h.Limit() != DefaultHistoryLimit {
		t.Errorf("Limit() = %d, want %d", h.Limit(), DefaultHistoryLimit)
	}
	for i := 0; i < DefaultHistoryLimit+2; i++ {
		h.Append(types.Turn{Role: types.RoleUser, Content: "x"})
	}
	if h.Len() != DefaultHistoryLimit {
		t.Errorf("Len() = %d, want %d", h.Len(), DefaultHistoryLimit)
	}
}

func TestHistory_TurnsReturnsCopy(t *testing.T) {
	h := NewHistory(6)
	h.Append(types.Turn{Role: types.RoleUser, Content: "original"})

	snapshot := h.Turns()
	snapshot[0].Content = "mutated"

	if got := h.Turns()[0].Content; got != "original" {
		t.Errorf("history content = %q, snapshot mutation leaked", got)
	}
}
