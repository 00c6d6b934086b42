package database

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

func (d Datasource) RecordActionLog(ctx context.Context, entry model.ActionLog) error {
	ctx, span := otel.Tracer("ActionLog").Start(ctx, "Recording action log")
	defer span.End()

	if entry.ID == "" {
		entry.ID = model.GenerateUUIDWithSuffix("log")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO rtledger.action_logs (id, actor, description, created_at) VALUES ($1, $2, $3, $4)
	`, entry.ID, entry.Actor, entry.Description, entry.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return apierror.NewStoreWriteError("failed to record action log", err)
	}
	return nil
}

func (d Datasource) GetActionLogs(ctx context.Context, limit int) ([]model.ActionLog, error) {
	ctx, span := otel.Tracer("ActionLog").Start(ctx, "Fetching action logs")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, actor, description, created_at FROM rtledger.action_logs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve action logs", err)
	}
	defer rows.Close()

	logs := []model.ActionLog{}
	for rows.Next() {
		var l model.ActionLog
		if err := rows.Scan(&l.ID, &l.Actor, &l.Description, &l.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan action log", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (d Datasource) ClearActionLogs(ctx context.Context) error {
	_, err := d.deleteAll(ctx, "rtledger.action_logs")
	return err
}
