/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

const payoutColumns = `id, partner_id, partner_name, amount, paid, generation_date, COALESCE(salesperson, ''), kind,
	receipt_name, receipt_url, reconciliation_pending, created_at`

// scanPayout reads payoutColumns, optionally followed by receipt_content.
func scanPayout(row rowScanner, withContent bool) (model.Payout, error) {
	var p model.Payout
	var receiptName, receiptURL sql.NullString
	var content []byte
	dest := []interface{}{
		&p.ID, &p.PartnerID, &p.PartnerName, &p.Amount, &p.Paid, &p.GenerationDate, &p.Salesperson, &p.Kind,
		&receiptName, &receiptURL, &p.ReconciliationPending, &p.CreatedAt,
	}
	if withContent {
		dest = append(dest, &content)
	}
	if err := row.Scan(dest...); err != nil {
		return p, err
	}
	if receiptName.Valid || receiptURL.Valid {
		p.Receipt = &model.Receipt{Name: receiptName.String, URL: receiptURL.String, Content: content}
	}
	return p, nil
}

// CreatePayouts inserts every payout or none.
func (d Datasource) CreatePayouts(ctx context.Context, payouts []model.Payout) error {
	ctx, span := otel.Tracer("Payout").Start(ctx, "Saving payouts to db")
	defer span.End()

	if len(payouts) == 0 {
		return nil
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewStoreWriteError("failed to begin payout transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rtledger.payouts (id, partner_id, partner_name, amount, paid, generation_date, salesperson, kind, reconciliation_pending, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return apierror.NewStoreWriteError("failed to prepare payout insert", err)
	}
	defer stmt.Close()

	for _, p := range payouts {
		_, err := stmt.ExecContext(ctx, p.ID, p.PartnerID, p.PartnerName, p.Amount, p.Paid, p.GenerationDate, p.Salesperson, p.Kind, p.ReconciliationPending, p.CreatedAt)
		if err != nil {
			span.RecordError(err)
			return apierror.NewStoreWriteError(fmt.Sprintf("failed to create payout for partner %s", p.PartnerID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewStoreWriteError("failed to commit payouts", err)
	}
	return nil
}

func (d Datasource) GetPayout(ctx context.Context, id string) (*model.Payout, error) {
	ctx, span := otel.Tracer("Payout").Start(ctx, "Fetching payout from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+payoutColumns+`, receipt_content FROM rtledger.payouts WHERE id = $1`, id)
	p, err := scanPayout(row, true)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("payout %s not found", id), nil)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve payout", err)
	}
	return &p, nil
}

func (d Datasource) GetPayouts(ctx context.Context, kind model.PayoutKind) ([]model.Payout, error) {
	ctx, span := otel.Tracer("Payout").Start(ctx, "Fetching payouts from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+payoutColumns+` FROM rtledger.payouts
		WHERE kind = $1
		ORDER BY generation_date DESC, partner_name ASC
	`, kind)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve payouts", err)
	}
	defer rows.Close()
	return collectPayouts(rows)
}

func (d Datasource) GetPayoutsByDate(ctx context.Context, date time.Time, kind model.PayoutKind) ([]model.Payout, error) {
	ctx, span := otel.Tracer("Payout").Start(ctx, "Fetching payout batch from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+payoutColumns+` FROM rtledger.payouts
		WHERE generation_date = $1 AND kind = $2
		ORDER BY partner_name ASC
	`, model.DateOnly(date), kind)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve payout batch", err)
	}
	defer rows.Close()
	return collectPayouts(rows)
}

func collectPayouts(rows *sql.Rows) ([]model.Payout, error) {
	payouts := []model.Payout{}
	for rows.Next() {
		p, err := scanPayout(rows, false)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan payout", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over payouts", err)
	}
	return payouts, nil
}

func (d Datasource) SetPayoutPaid(ctx context.Context, id string, paid bool) error {
	return d.updatePayout(ctx, id, `UPDATE rtledger.payouts SET paid = $2 WHERE id = $1`, paid)
}

func (d Datasource) UpdatePayoutAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	return d.updatePayout(ctx, id, `UPDATE rtledger.payouts SET amount = $2 WHERE id = $1`, amount)
}

func (d Datasource) AttachPayoutReceipt(ctx context.Context, id string, receipt model.Receipt) error {
	return d.updatePayout(ctx, id, `
		UPDATE rtledger.payouts SET receipt_name = $2, receipt_url = NULLIF($3, ''), receipt_content = $4 WHERE id = $1
	`, receipt.Name, receipt.URL, receipt.Content)
}

func (d Datasource) SetReconciliationPending(ctx context.Context, id string, pending bool) error {
	return d.updatePayout(ctx, id, `UPDATE rtledger.payouts SET reconciliation_pending = $2 WHERE id = $1`, pending)
}

func (d Datasource) updatePayout(ctx context.Context, id, query string, args ...interface{}) error {
	ctx, span := otel.Tracer("Payout").Start(ctx, "Updating payout in db")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		span.RecordError(err)
		return apierror.NewStoreWriteError("failed to update payout", err)
	}
	return expectAffected(result, fmt.Sprintf("payout %s not found", id))
}

func (d Datasource) DeletePayoutsByDate(ctx context.Context, date time.Time, kind model.PayoutKind) (int64, error) {
	ctx, span := otel.Tracer("Payout").Start(ctx, "Deleting payout batch from db")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `DELETE FROM rtledger.payouts WHERE generation_date = $1 AND kind = $2`, model.DateOnly(date), kind)
	if err != nil {
		span.RecordError(err)
		return 0, apierror.NewStoreWriteError("failed to delete payout batch", err)
	}
	return result.RowsAffected()
}

func (d Datasource) DeleteAllPayouts(ctx context.Context) (int64, error) {
	return d.deleteAll(ctx, "rtledger.payouts")
}
