package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eptportal/ept-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles questions and writing prompts.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByTest retrieves the questions of a test in delivery order.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT test_id, section_number, section_title, section_body, question_number,
		        question_text, options, correct_answer, points
		 FROM questions WHERE test_id = $1
		 ORDER BY section_number, question_number, id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var options, answer string
		if err := rows.Scan(&q.TestID, &q.SectionNumber, &q.SectionTitle, &q.SectionBody, &q.Number,
			&q.Text, &options, &answer, &q.Points); err != nil {
			return nil, err
		}
		q.Options = model.ParseOptions(options)
		q.CorrectAnswers = model.ParseAnswerKey(answer)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListPromptsByTest retrieves the writing prompts of a test in order.
func (r *QuestionRepository) ListPromptsByTest(ctx context.Context, testID string) ([]model.WritingPrompt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT test_id, label, title, body, word_limit
		 FROM writing_prompts WHERE test_id = $1
		 ORDER BY position`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []model.WritingPrompt
	for rows.Next() {
		var p model.WritingPrompt
		if err := rows.Scan(&p.TestID, &p.Label, &p.Title, &p.Body, &p.WordLimit); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// ReplaceContent swaps the questions and prompts of a test in one
// transaction, bulk-loading the new rows.
func (r *QuestionRepository) ReplaceContent(ctx context.Context, testID string, questions []model.Question, prompts []model.WritingPrompt) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE test_id = $1`, testID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM writing_prompts WHERE test_id = $1`, testID); err != nil {
		return err
	}

	qRows := make([][]interface{}, 0, len(questions))
	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options of question %d: %w", q.Number, err)
		}
		answer, err := encodeAnswerKey(q.CorrectAnswers)
		if err != nil {
			return fmt.Errorf("encode answer of question %d: %w", q.Number, err)
		}
		qRows = append(qRows, []interface{}{
			testID, q.SectionNumber, q.SectionTitle, q.SectionBody, q.Number, q.Text, string(options), answer, q.Points,
		})
	}
	if len(qRows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"questions"},
			[]string{"test_id", "section_number", "section_title", "section_body", "question_number",
				"question_text", "options", "correct_answer", "points"},
			pgx.CopyFromRows(qRows),
		); err != nil {
			return err
		}
	}

	pRows := make([][]interface{}, 0, len(prompts))
	for i, p := range prompts {
		pRows = append(pRows, []interface{}{testID, i, p.Label, p.Title, p.Body, p.WordLimit})
	}
	if len(pRows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"writing_prompts"},
			[]string{"test_id", "position", "label", "title", "body", "word_limit"},
			pgx.CopyFromRows(pRows),
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func encodeAnswerKey(accepted []string) (string, error) {
	if len(accepted) == 1 {
		return accepted[0], nil
	}
	if len(accepted) == 0 {
		return "", nil
	}
	data, err := json.Marshal(accepted)
	return string(data), err
}
