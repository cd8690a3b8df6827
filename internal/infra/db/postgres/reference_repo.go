package postgres

import (
	"context"
	"database/sql"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
	"github.com/bryanwahyu/ddq-validator/internal/infra/db"
)

type ReferenceRepository struct {
	db            *sql.DB
	questionnaire string
	strict        bool
}

func NewReferenceRepository(conn *sql.DB, questionnaire string, strict bool) *ReferenceRepository {
	return &ReferenceRepository{db: conn, questionnaire: questionnaire, strict: strict}
}

func (r *ReferenceRepository) LoadReference(ctx context.Context) (*ddq.ReferenceSet, error) {
	const q = `
SELECT sheet, row_index, question_id, expected_text
FROM ddq_model_answers
WHERE questionnaire = $1
ORDER BY sheet, row_index NULLS LAST;
`
	return db.LoadReference(ctx, r.db, q, r.questionnaire, r.strict)
}

func (r *ReferenceRepository) Check(ctx context.Context) error {
	return db.CheckQuestionnaire(ctx, r.db, `SELECT COUNT(*) FROM ddq_model_answers WHERE questionnaire = $1`, r.questionnaire)
}
