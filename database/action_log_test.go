package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtledger/rtledger/model"
)

func TestRecordAndListActionLogs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO rtledger.action_logs").
		WithArgs(sqlmock.AnyArg(), "ops@example.com", "Imported 3 sales", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, ds.RecordActionLog(ctx, model.ActionLog{Actor: "ops@example.com", Description: "Imported 3 sales"}))

	mock.ExpectQuery("FROM rtledger.action_logs ORDER BY created_at DESC LIMIT").
		WithArgs(200).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor", "description", "created_at"}).
			AddRow("log_1", "ops@example.com", "Imported 3 sales", time.Now()))
	logs, err := ds.GetActionLogs(ctx, 200)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	mock.ExpectExec("DELETE FROM rtledger.action_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, ds.ClearActionLogs(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportedFiles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO rtledger.imported_files").
		WithArgs(sqlmock.AnyArg(), "vendas.csv", "text/csv", []byte("a,b"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	saved, err := ds.SaveImportedFile(ctx, model.ImportedFile{Name: "vendas.csv", ContentType: "text/csv", Content: []byte("a,b")})
	require.NoError(t, err)
	assert.Contains(t, saved.ID, "file_")

	mock.ExpectQuery("SELECT id, name, content_type, content, import_date FROM rtledger.imported_files").
		WithArgs(saved.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "content_type", "content", "import_date"}).
			AddRow(saved.ID, "vendas.csv", "text/csv", []byte("a,b"), time.Now()))
	file, err := ds.GetImportedFile(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b"), file.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}
