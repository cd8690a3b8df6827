// Package sqlite serves the model answer catalog from a local SQLite file,
// for offline runs of the CLI.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
	"github.com/bryanwahyu/ddq-validator/internal/infra/db"
)

// Open opens the catalog file read-only.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

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
WHERE questionnaire = ?
ORDER BY sheet, row_index;
`
	return db.LoadReference(ctx, r.db, q, r.questionnaire, r.strict)
}

func (r *ReferenceRepository) Check(ctx context.Context) error {
	return db.CheckQuestionnaire(ctx, r.db, `SELECT COUNT(*) FROM ddq_model_answers WHERE questionnaire = ?`, r.questionnaire)
}
