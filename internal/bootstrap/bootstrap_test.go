package bootstrap

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zapcore"

	appval "github.com/bryanwahyu/ddq-validator/internal/application/validation"
	"github.com/bryanwahyu/ddq-validator/internal/config"
	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
	"github.com/bryanwahyu/ddq-validator/internal/infra/db"
)

func writeWorkbook(t *testing.T, path string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", axis, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	if path != "" {
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	}
	return buf.Bytes()
}

func filled(t *testing.T) []byte {
	return writeWorkbook(t, "", [][]any{
		{"1.1", "Registered legal name?", "Acme Holdings GmbH, Berlin", ""},
		{"1.2", "Please describe your AML controls.", "n/a", ""},
	})
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("warn", false)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

	log, err = NewLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}

func TestBuildDefaults(t *testing.T) {
	cfg := config.Defaults()
	app, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Service.Reference)
	assert.Nil(t, app.Service.Assessor, "no API key, no assessor")
	assert.Empty(t, app.Checkers)
	assert.Equal(t, config.ReferenceNone, app.ReferenceSource)
	assert.Equal(t, []ddq.FindingKind{ddq.KindCrossReference}, app.Service.Gate.ExcludeKinds)

	rep, err := app.Service.Validate(context.Background(), appval.ValidateCommand{Filled: bytes.NewReader(filled(t)), UseLLM: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Summary.TotalRows)
	assert.Equal(t, ddq.KindPlaceholder, rep.Rows[1].Kind)
	assert.Equal(t, ddq.StatusFlagged, rep.Rows[1].Status, "requested assessor without credentials leaves rows FLAGGED")
}

func TestBuildAssessorWithKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Assessor.APIKey = "sk-test"
	app, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, app.Service.Assessor)
	assert.NotNil(t, app.Service.NewAssessor("gpt-4o-mini"))
}

func TestBuildWorkbookReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.xlsx")
	writeWorkbook(t, path, [][]any{
		{"1.1", "", "", "Full registered name"},
		{"1.2", "", "", "[TEXT] describe AML screening"},
	})

	cfg := config.Defaults()
	cfg.Reference.Source = config.ReferenceWorkbook
	cfg.Reference.Path = path
	app, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)

	rep, err := app.Service.Validate(context.Background(), appval.ValidateCommand{Filled: bytes.NewReader(filled(t))})
	require.NoError(t, err)
	assert.Equal(t, "Full registered name", rep.Rows[0].Row.ExpectedText)
	assert.Equal(t, "[TEXT] describe AML screening", rep.Rows[1].Row.ExpectedText)

	require.Contains(t, app.Checkers, "reference")
	assert.NoError(t, app.Checkers["reference"].Check(context.Background()))
	require.NoError(t, os.Remove(path))
	assert.Error(t, app.Checkers["reference"].Check(context.Background()), "/ready notices a vanished reference workbook")
}

func TestBuildSqliteReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = conn.Exec(db.Schema)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO ddq_model_answers (questionnaire, sheet, row_index, question_id, expected_text) VALUES ('ddq-2025', 'Sheet1', 1, '1.1', 'Full registered name')`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	cfg := config.Defaults()
	cfg.Reference.Source = config.ReferenceSqlite
	cfg.Reference.Path = path
	cfg.Reference.Questionnaire = "ddq-2025"
	app, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer app.Close()

	require.Contains(t, app.Checkers, "catalog")
	assert.NoError(t, app.Checkers["catalog"].Check(context.Background()))
	assert.Equal(t, config.ReferenceSqlite, app.ReferenceSource)

	other := *cfg
	other.Reference.Questionnaire = "ddq-1999"
	stale, err := Build(context.Background(), &other, nil, nil)
	require.NoError(t, err)
	defer stale.Close()
	err = stale.Checkers["catalog"].Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ddq-1999")

	rep, err := app.Service.Validate(context.Background(), appval.ValidateCommand{Filled: bytes.NewReader(filled(t))})
	require.NoError(t, err)
	assert.Equal(t, "Full registered name", rep.Rows[0].Row.ExpectedText)
}

func TestBuildErrors(t *testing.T) {
	cfg := config.Defaults()
	cfg.Reference.Source = "s3"
	_, err := Build(context.Background(), cfg, nil, nil)
	assert.Error(t, err)

	cfg = config.Defaults()
	cfg.Reference.Source = config.ReferenceSqlite
	cfg.Reference.Path = filepath.Join(t.TempDir(), "missing.db")
	cfg.Reference.Questionnaire = "ddq-2025"
	_, err = Build(context.Background(), cfg, nil, nil)
	assert.Error(t, err)

	cfg = config.Defaults()
	cfg.Rules.CrossReferencePatterns = []string{"(unclosed"}
	_, err = Build(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}
