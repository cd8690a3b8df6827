// Package db holds what the SQL reference catalogs share. Dialect packages
// (mysql, postgres, sqlite) own the connection and the query text.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

// Schema of the model answer catalog. row_index and question_id are nullable,
// a row needs at least one of them to be addressable.
const Schema = `
CREATE TABLE IF NOT EXISTS ddq_model_answers (
  questionnaire VARCHAR(128) NOT NULL,
  sheet         VARCHAR(128) NOT NULL,
  row_index     INTEGER NULL,
  question_id   VARCHAR(64)  NULL,
  expected_text TEXT         NOT NULL
);`

// LoadReference runs query (one positional parameter: the questionnaire name)
// and builds the reference set from the rows it returns.
func LoadReference(ctx context.Context, conn *sql.DB, query, questionnaire string, strict bool) (*ddq.ReferenceSet, error) {
	rows, err := conn.QueryContext(ctx, query, questionnaire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ddq.ErrReferenceSource, err)
	}
	defer rows.Close()

	set := ddq.NewReferenceSet(strict)
	n := 0
	for rows.Next() {
		var (
			sheet, expected string
			rowIndex        sql.NullInt64
			questionID      sql.NullString
		)
		if err := rows.Scan(&sheet, &rowIndex, &questionID, &expected); err != nil {
			return nil, fmt.Errorf("%w: %v", ddq.ErrReferenceSource, err)
		}
		if rowIndex.Valid {
			set.AddRow(sheet, int(rowIndex.Int64), questionID.String, expected)
		} else {
			set.AddQuestion(sheet, questionID.String, expected)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ddq.ErrReferenceSource, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: questionnaire %q has no model answers", ddq.ErrReferenceSource, questionnaire)
	}
	return set, nil
}

// CheckQuestionnaire runs a count query (same parameter as LoadReference) and
// fails when the catalog is unreachable or has nothing for the questionnaire.
func CheckQuestionnaire(ctx context.Context, conn *sql.DB, query, questionnaire string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var n int
	if err := conn.QueryRowContext(ctx, query, questionnaire).Scan(&n); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("catalog: questionnaire %q has no model answers", questionnaire)
	}
	return nil
}
