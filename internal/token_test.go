package internal

import (
	"strings"
	"testing"
)

func TestSplitToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		wantOK   bool
		wantID   string
		wantRand string
	}{
		{name: "valid", token: "dev-1_9f1c", wantOK: true, wantID: "dev-1", wantRand: "9f1c"},
		{name: "no separator", token: "dev-1", wantOK: false},
		{name: "two separators", token: "a_b_c", wantOK: false},
		{name: "empty record id", token: "_abc", wantOK: false},
		{name: "empty random id", token: "abc_", wantOK: false},
		{name: "only separator", token: "_", wantOK: false},
		{name: "empty", token: "", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, rnd, ok := SplitToken(tc.token, "_")
			if ok != tc.wantOK {
				t.Fatalf("SplitToken(%q) ok=%v, want %v", tc.token, ok, tc.wantOK)
			}
			if ok && (id != tc.wantID || rnd != tc.wantRand) {
				t.Fatalf("SplitToken(%q) = %q,%q", tc.token, id, rnd)
			}
		})
	}
}

func TestSplitTokenEmptySeparator(t *testing.T) {
	if _, _, ok := SplitToken("a_b", ""); ok {
		t.Fatal("empty separator must never split")
	}
}

func TestJoinSplitRoundTrip(t *testing.T) {
	rnd, err := NewRandomID()
	if err != nil {
		t.Fatalf("NewRandomID failed: %v", err)
	}
	token := JoinToken("rec-7", rnd, "_")
	if !strings.HasPrefix(token, "rec-7_") {
		t.Fatalf("unexpected token %q", token)
	}
	id, got, ok := SplitToken(token, "_")
	if !ok || id != "rec-7" || got != rnd {
		t.Fatalf("round trip failed: %q -> %q,%q,%v", token, id, got, ok)
	}
}

func TestNewRandomIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := NewRandomID()
		if err != nil {
			t.Fatalf("NewRandomID failed: %v", err)
		}
		if len(id) != 36 || strings.Contains(id, "_") {
			t.Fatalf("unexpected id shape %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}
