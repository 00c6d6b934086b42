package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

func (d Datasource) SaveImportedFile(ctx context.Context, file model.ImportedFile) (model.ImportedFile, error) {
	ctx, span := otel.Tracer("ImportedFile").Start(ctx, "Saving imported file to db")
	defer span.End()

	if file.ID == "" {
		file.ID = model.GenerateUUIDWithSuffix("file")
	}
	if file.ImportDate.IsZero() {
		file.ImportDate = time.Now()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO rtledger.imported_files (id, name, content_type, content, import_date)
		VALUES ($1, $2, $3, $4, $5)
	`, file.ID, file.Name, file.ContentType, file.Content, file.ImportDate)
	if err != nil {
		span.RecordError(err)
		return model.ImportedFile{}, apierror.NewStoreWriteError("failed to save imported file", err)
	}
	return file, nil
}

func (d Datasource) GetImportedFiles(ctx context.Context) ([]model.ImportedFile, error) {
	ctx, span := otel.Tracer("ImportedFile").Start(ctx, "Fetching imported files from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, name, content_type, import_date FROM rtledger.imported_files ORDER BY import_date DESC
	`)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve imported files", err)
	}
	defer rows.Close()

	files := []model.ImportedFile{}
	for rows.Next() {
		var f model.ImportedFile
		if err := rows.Scan(&f.ID, &f.Name, &f.ContentType, &f.ImportDate); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan imported file", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (d Datasource) GetImportedFile(ctx context.Context, id string) (*model.ImportedFile, error) {
	ctx, span := otel.Tracer("ImportedFile").Start(ctx, "Fetching imported file from db")
	defer span.End()

	var f model.ImportedFile
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, name, content_type, content, import_date FROM rtledger.imported_files WHERE id = $1
	`, id).Scan(&f.ID, &f.Name, &f.ContentType, &f.Content, &f.ImportDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("file %s not found", id), nil)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve imported file", err)
	}
	return &f, nil
}

func (d Datasource) DeleteAllImportedFiles(ctx context.Context) (int64, error) {
	return d.deleteAll(ctx, "rtledger.imported_files")
}
