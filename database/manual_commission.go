package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

const manualCommissionColumns = `id, partner_id, COALESCE(external_order_id, ''), amount, sale_date, COALESCE(salesperson, ''),
	justification, status, COALESCE(submitted_by, ''), COALESCE(reviewed_by, ''), COALESCE(rejection_reason, ''), reviewed_at, created_at`

func scanManualCommission(row rowScanner) (model.ManualCommission, error) {
	var mc model.ManualCommission
	var saleDate, reviewedAt sql.NullTime
	err := row.Scan(&mc.ID, &mc.PartnerID, &mc.ExternalOrderID, &mc.Amount, &saleDate, &mc.Salesperson,
		&mc.Justification, &mc.Status, &mc.SubmittedBy, &mc.ReviewedBy, &mc.RejectionReason, &reviewedAt, &mc.CreatedAt)
	if err != nil {
		return mc, err
	}
	mc.SaleDate = saleDate.Time
	if reviewedAt.Valid {
		t := reviewedAt.Time
		mc.ReviewedAt = &t
	}
	return mc, nil
}

func (d Datasource) CreateManualCommission(ctx context.Context, mc model.ManualCommission) (model.ManualCommission, error) {
	ctx, span := otel.Tracer("ManualCommission").Start(ctx, "Saving manual commission to db")
	defer span.End()

	if mc.ID == "" {
		mc.ID = model.GenerateUUIDWithSuffix("mcr")
	}
	if mc.Status == "" {
		mc.Status = model.ManualCommissionPending
	}
	mc.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO rtledger.manual_commissions (id, partner_id, external_order_id, amount, sale_date, salesperson, justification, status, submitted_by, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
	`, mc.ID, mc.PartnerID, mc.ExternalOrderID, mc.Amount, nullTime(mc.SaleDate), mc.Salesperson, mc.Justification, mc.Status, mc.SubmittedBy, mc.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return model.ManualCommission{}, apierror.NewStoreWriteError("failed to create manual commission", err)
	}
	return mc, nil
}

func (d Datasource) GetManualCommission(ctx context.Context, id string) (*model.ManualCommission, error) {
	ctx, span := otel.Tracer("ManualCommission").Start(ctx, "Fetching manual commission from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+manualCommissionColumns+` FROM rtledger.manual_commissions WHERE id = $1`, id)
	mc, err := scanManualCommission(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("manual commission %s not found", id), nil)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve manual commission", err)
	}
	return &mc, nil
}

func (d Datasource) GetManualCommissions(ctx context.Context) ([]model.ManualCommission, error) {
	ctx, span := otel.Tracer("ManualCommission").Start(ctx, "Fetching manual commissions from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `SELECT `+manualCommissionColumns+` FROM rtledger.manual_commissions ORDER BY created_at DESC`)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve manual commissions", err)
	}
	defer rows.Close()

	requests := []model.ManualCommission{}
	for rows.Next() {
		mc, err := scanManualCommission(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan manual commission", err)
		}
		requests = append(requests, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over manual commissions", err)
	}
	return requests, nil
}

// ManualOrderExists reports whether another request (not excludeID) carries orderID with
// one of the given statuses.
func (d Datasource) ManualOrderExists(ctx context.Context, orderID, excludeID string, statuses []string) (bool, error) {
	ctx, span := otel.Tracer("ManualCommission").Start(ctx, "Checking manual commission order")
	defer span.End()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM rtledger.manual_commissions
			WHERE external_order_id = $1 AND id <> $2 AND status = ANY($3)
		)
	`, orderID, excludeID, pq.Array(statuses)).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "failed to query manual commissions", err)
	}
	return exists, nil
}

// UpdateManualCommissionStatus moves a pending request to status. A request that is no
// longer pending is left alone and reported as a conflict.
func (d Datasource) UpdateManualCommissionStatus(ctx context.Context, id, status, reviewedBy, reason string, reviewedAt *time.Time) error {
	ctx, span := otel.Tracer("ManualCommission").Start(ctx, "Updating manual commission status")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE rtledger.manual_commissions
		SET status = $2, reviewed_by = $3, rejection_reason = NULLIF($4, ''), reviewed_at = $5
		WHERE id = $1 AND status = 'pending'
	`, id, status, reviewedBy, reason, reviewedAt)
	if err != nil {
		span.RecordError(err)
		return apierror.NewStoreWriteError("failed to update manual commission", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewStoreWriteError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("manual commission %s is not pending", id), nil)
	}
	return nil
}

func (d Datasource) DeleteAllManualCommissions(ctx context.Context) (int64, error) {
	return d.deleteAll(ctx, "rtledger.manual_commissions")
}
