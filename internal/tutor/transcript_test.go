package tutor

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func texts(tr *Transcript) []string {
	var out []string
	for _, turn := range tr.Turns() {
		out = append(out, string(turn.Role)+":"+turn.Text)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTranscript_AdjacentDeltasMerge(t *testing.T) {
	var tr Transcript
	tr.AppendDelta("", "Hel", t0)
	tr.AppendDelta("", "lo", t0)
	tr.CloseOpen()
	tr.AppendDelta("", "Hi", t0)

	want := []string{"tutor:Hello", "tutor:Hi"}
	if got := texts(&tr); !equalStrings(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	if !tr.Open() {
		t.Errorf("expected the last tutor turn to be open")
	}
}

func TestTranscript_DeltaAfterStudentTurnStartsNewTurn(t *testing.T) {
	var tr Transcript
	tr.AppendDelta("", "Think about plants.", t0)
	tr.AppendTurn(Turn{Role: RoleStudent, Text: "photosynthesis?", CreatedAt: t0})
	tr.AppendDelta("", "Yes!", t0)

	want := []string{"tutor:Think about plants.", "student:photosynthesis?", "tutor:Yes!"}
	if got := texts(&tr); !equalStrings(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestTranscript_ResponseIDCorrelation(t *testing.T) {
	tests := []struct {
		name   string
		apply  func(tr *Transcript)
		expect []string
	}{
		{
			name: "late delta rejoins its closed response",
			apply: func(tr *Transcript) {
				tr.AppendDelta("r1", "What do ", t0)
				tr.CloseOpen()
				tr.AppendDelta("r1", "plants need?", t0)
			},
			expect: []string{"tutor:What do plants need?"},
		},
		{
			name: "different responses never merge",
			apply: func(tr *Transcript) {
				tr.AppendDelta("r1", "First.", t0)
				tr.AppendDelta("r2", "Second.", t0)
			},
			expect: []string{"tutor:First.", "tutor:Second."},
		},
		{
			name: "id-less delta extends open turn of a known response",
			apply: func(tr *Transcript) {
				tr.AppendDelta("r1", "Go", t0)
				tr.AppendDelta("", "od", t0)
			},
			expect: []string{"tutor:Good"},
		},
		{
			name: "empty delta is ignored",
			apply: func(tr *Transcript) {
				tr.AppendDelta("r1", "", t0)
			},
			expect: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var tr Transcript
			tc.apply(&tr)
			if got := texts(&tr); !equalStrings(got, tc.expect) {
				t.Errorf("Expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestTranscript_PendingLifecycle(t *testing.T) {
	var tr Transcript
	first := tr.AppendTurn(Turn{Role: RoleStudent, Text: "hello", Pending: true})
	second := tr.AppendTurn(Turn{Role: RoleStudent, Text: "hello", Pending: true})

	if !tr.ConfirmPending("  hello ") {
		t.Fatalf("expected confirmation to match")
	}
	turns := tr.Turns()
	if turns[0].Pending || !turns[1].Pending {
		t.Fatalf("expected oldest pending turn confirmed first, got %+v", turns)
	}

	if tr.FailPending(first) {
		t.Errorf("confirmed turn must not be marked failed")
	}
	if !tr.FailPending(second) {
		t.Errorf("expected pending turn to fail")
	}
	if turns := tr.Turns(); !turns[1].Failed || turns[1].Pending {
		t.Errorf("expected failed turn, got %+v", turns[1])
	}
	if tr.ConfirmPending("nothing like it") {
		t.Errorf("expected no match")
	}
}

func TestTranscript_ReplaceAndClear(t *testing.T) {
	var tr Transcript
	tr.AppendDelta("r1", "partial", t0)

	tr.Replace([]Turn{
		{Role: RoleStudent, Text: "a"},
		{Role: RoleTutor, Text: "b"},
	})
	if tr.Open() {
		t.Errorf("replace must leave no open turn")
	}
	want := []string{"student:a", "tutor:b"}
	if got := texts(&tr); !equalStrings(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}

	tr.Clear()
	if tr.Len() != 0 || tr.Open() {
		t.Errorf("expected empty transcript after clear")
	}
}
