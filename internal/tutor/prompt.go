package tutor

import (
	"fmt"
	"strings"

	"quiztutor-backend/internal/models"
)

type Result string

const (
	ResultUnknown   Result = "unknown"
	ResultCorrect   Result = "correct"
	ResultIncorrect Result = "incorrect"
)

// QuestionContext is everything the tutor needs to know about where the
// student is on the current question.
type QuestionContext struct {
	StudentName   string
	Question      models.Question
	QuestionIndex int
	QuestionCount int
	Attempts      int
	Result        Result
}

func attemptContext(attempts int, result Result) string {
	correct := result == ResultCorrect
	switch {
	case attempts == 0:
		return "The student is seeing this question for the first time."
	case attempts == 1 && !correct:
		return "The student attempted once and got it wrong. Give them a hint to guide their thinking."
	case attempts >= 2 && !correct:
		return "The student has tried twice. Help them understand the concept before moving on."
	default:
		return "The student got it correct. Reinforce their understanding."
	}
}

func kindLabel(kind models.QuestionKind) string {
	if kind == models.QuestionChoice {
		return "Multiple Choice"
	}
	return "Open-Ended"
}

// BuildInstructions renders the system instructions for one realtime session.
func BuildInstructions(qc QuestionContext) string {
	q := qc.Question
	var b strings.Builder

	b.WriteString("CURRENT QUESTION CONTEXT\n\n")
	fmt.Fprintf(&b, "Student name: %s\n\n", qc.StudentName)
	fmt.Fprintf(&b, "Question %d (%d of %d):\n%q\n\n", q.ID, qc.QuestionIndex+1, qc.QuestionCount, q.Prompt)
	fmt.Fprintf(&b, "Type: %s\n", kindLabel(q.Kind))
	fmt.Fprintf(&b, "Subject: %s\n", q.Subject)
	if q.Kind == models.QuestionChoice && len(q.Options) > 0 {
		b.WriteString("\nOptions:\n")
		for i, opt := range q.Options {
			fmt.Fprintf(&b, "%c) %s\n", 'A'+rune(i), opt)
		}
	}
	fmt.Fprintf(&b, "\nCorrect answer: %s\n", q.Answer)
	fmt.Fprintf(&b, "Explanation: %s\n\n", q.Explanation)
	b.WriteString("Student progress:\n")
	b.WriteString(attemptContext(qc.Attempts, qc.Result))
	fmt.Fprintf(&b, "\nAttempts so far: %d\n\n", qc.Attempts)
	b.WriteString("Important:\n")
	fmt.Fprintf(&b, "- Address the student as %q occasionally\n", qc.StudentName)
	fmt.Fprintf(&b, "- Do not directly reveal the answer (%s)\n", q.Answer)
	b.WriteString("- Guide the student to discover it through questions\n")
	b.WriteString("- Use the explanation above to frame your hints\n")
	b.WriteString("- Keep responses short and conversational (2-3 sentences max)\n\n")
	b.WriteString(tutorPersona)
	return b.String()
}

const tutorPersona = `SYSTEM PROMPT: Ainstein, Socratic concept tutor

You are Ainstein, a friendly and curious tutor who helps students understand
science concepts through dialogue. Do not hand out answers. Guide the student
toward the answer with reasoning, hints and reflection.

Interaction:
1. Use the question context above. If no clear question is provided, ask what
   the topic is.
2. Open warmly and casually, then ask an easy warm-up question.
3. Lead with questions rather than explanations. Acknowledge partial
   understanding and build on it. Offer hints only after one or two replies.
4. Once the student is close, give a short plain-language explanation,
   ideally with an everyday analogy.
5. Ask the student to explain the idea back, then close with a short recap.
6. Celebrate progress and keep the tone light.

Rules:
- Praise effort and reasoning, not just correctness.
- Wait for the student; match their pace.
- Avoid jargon and never show impatience.
- If the student is frustrated, suggest a short breather.
- If the student drifts off topic, steer back to the current question.
- If the student behaves inappropriately, end the session politely.
- Keep every interaction educational, safe and respectful.
`
