package models

type QuestionKind string

const (
	QuestionChoice QuestionKind = "choice"
	QuestionOpen   QuestionKind = "open"
)

// Question is one quiz item. Questions are immutable once loaded and are
// referenced by their position in the deck.
type Question struct {
	ID          int          `json:"id"`
	Prompt      string       `json:"prompt"`
	Kind        QuestionKind `json:"kind"`
	Options     []string     `json:"options,omitempty"`
	Answer      string       `json:"answer"`
	Explanation string       `json:"explanation"`
	Subject     string       `json:"subject"`
}

// PublicQuestion is the view of a question sent to clients before it is answered.
type PublicQuestion struct {
	ID      int          `json:"id"`
	Prompt  string       `json:"prompt"`
	Kind    QuestionKind `json:"kind"`
	Options []string     `json:"options,omitempty"`
	Subject string       `json:"subject"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:      q.ID,
		Prompt:  q.Prompt,
		Kind:    q.Kind,
		Options: append([]string(nil), q.Options...),
		Subject: q.Subject,
	}
}

type Reveal struct {
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

type SubmitAnswerRequest struct {
	Value string `json:"value"`
}

type SubmitAnswerResponse struct {
	Correct  bool    `json:"correct"`
	Attempts int     `json:"attempts"`
	Terminal bool    `json:"terminal"`
	Reveal   *Reveal `json:"reveal,omitempty"`
}
