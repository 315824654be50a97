package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"quiztutor-backend/internal/models"
)

// QuestionStore is the ordered quiz deck. It is loaded once and never mutated.
type QuestionStore struct {
	questions []models.Question
}

func NewQuestionStore(questions []models.Question) *QuestionStore {
	copied := make([]models.Question, len(questions))
	for i, q := range questions {
		q.Options = append([]string(nil), q.Options...)
		copied[i] = q
	}
	return &QuestionStore{questions: copied}
}

func (s *QuestionStore) Len() int {
	return len(s.questions)
}

// At returns the question at index i.
func (s *QuestionStore) At(i int) (models.Question, bool) {
	if i < 0 || i >= len(s.questions) {
		return models.Question{}, false
	}
	return s.questions[i], true
}

func (s *QuestionStore) Public() []models.PublicQuestion {
	out := make([]models.PublicQuestion, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q.Public())
	}
	return out
}

type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

// LoadDeck reads the active deck ordered by position.
func (r *QuestionRepo) LoadDeck(ctx context.Context) (*QuestionStore, error) {
	query := `SELECT id, prompt, kind, options, answer, explanation, subject
		FROM questions WHERE active ORDER BY position ASC, id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		var kind string
		if err := rows.Scan(&q.ID, &q.Prompt, &kind, &q.Options, &q.Answer, &q.Explanation, &q.Subject); err != nil {
			return nil, err
		}
		q.Kind = models.QuestionKind(kind)
		if err := validateQuestion(q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("question deck is empty")
	}

	return NewQuestionStore(questions), nil
}

func validateQuestion(q models.Question) error {
	switch q.Kind {
	case models.QuestionChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: choice question needs at least 2 options", q.ID)
		}
		for _, opt := range q.Options {
			if opt == q.Answer {
				return nil
			}
		}
		return fmt.Errorf("question %d: answer is not one of the options", q.ID)
	case models.QuestionOpen:
		if q.Answer == "" {
			return fmt.Errorf("question %d: open question has no answer", q.ID)
		}
		return nil
	default:
		return fmt.Errorf("question %d: unknown kind %q", q.ID, q.Kind)
	}
}
