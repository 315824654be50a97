package tutor

import (
	"strings"
	"testing"

	"quiztutor-backend/internal/repository"
)

func TestBuildInstructions_ChoiceQuestion(t *testing.T) {
	q, _ := repository.ScienceDeck().At(0)
	out := BuildInstructions(QuestionContext{
		StudentName:   "Amira",
		Question:      q,
		QuestionIndex: 0,
		QuestionCount: 5,
	})

	for _, want := range []string{
		"Student name: Amira",
		"(1 of 5)",
		"Type: Multiple Choice",
		"A) Respiration\nB) Photosynthesis\nC) Digestion\nD) Transpiration\n",
		"Correct answer: Photosynthesis",
		"Attempts so far: 0",
		"Ainstein",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected instructions to contain %q", want)
		}
	}
}

func TestBuildInstructions_OpenQuestionHasNoOptions(t *testing.T) {
	q, _ := repository.ScienceDeck().At(1)
	out := BuildInstructions(QuestionContext{StudentName: "Amira", Question: q, QuestionIndex: 1, QuestionCount: 5})

	if strings.Contains(out, "Options:") {
		t.Errorf("open question must not list options")
	}
	if !strings.Contains(out, "Type: Open-Ended") {
		t.Errorf("expected open-ended type label")
	}
}

func TestAttemptContext(t *testing.T) {
	tests := []struct {
		attempts int
		result   Result
		want     string
	}{
		{0, ResultUnknown, "first time"},
		{1, ResultIncorrect, "Give them a hint"},
		{2, ResultIncorrect, "tried twice"},
		{1, ResultCorrect, "got it correct"},
		{2, ResultCorrect, "got it correct"},
	}

	for _, tc := range tests {
		got := attemptContext(tc.attempts, tc.result)
		if !strings.Contains(got, tc.want) {
			t.Errorf("attemptContext(%d, %s): expected %q in %q", tc.attempts, tc.result, tc.want, got)
		}
	}
}
