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
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

// FindExistingOrderIDs looks up a whole batch of order ids in one query.
func (d Datasource) FindExistingOrderIDs(ctx context.Context, orderIDs []string) ([]string, error) {
	ctx, span := otel.Tracer("SaleLedger").Start(ctx, "Looking up imported order ids")
	defer span.End()

	existing := []string{}
	if len(orderIDs) == 0 {
		return existing, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT external_order_id FROM rtledger.sale_imports WHERE external_order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to query sale ledger", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan sale ledger entry", err)
		}
		existing = append(existing, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over sale ledger", err)
	}
	return existing, nil
}

func (d Datasource) OrderExists(ctx context.Context, orderID string) (bool, error) {
	ctx, span := otel.Tracer("SaleLedger").Start(ctx, "Checking order in sale ledger")
	defer span.End()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM rtledger.sale_imports WHERE external_order_id = $1)
	`, orderID).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "failed to query sale ledger", err)
	}
	return exists, nil
}

// RecordSaleImports appends ledger entries in one transaction. An id that is already in
// the ledger is left untouched.
func (d Datasource) RecordSaleImports(ctx context.Context, entries []model.SaleImport) error {
	ctx, span := otel.Tracer("SaleLedger").Start(ctx, "Recording sale imports")
	defer span.End()

	if len(entries) == 0 {
		return nil
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewStoreWriteError("failed to begin ledger transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rtledger.sale_imports (external_order_id, partner_id, amount, sale_date, salesperson, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_order_id) DO NOTHING
	`)
	if err != nil {
		return apierror.NewStoreWriteError("failed to prepare ledger insert", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, e.ExternalOrderID, e.PartnerID, e.Amount, nullTime(e.SaleDate), e.Salesperson, e.CreatedAt); err != nil {
			span.RecordError(err)
			return apierror.NewStoreWriteError("failed to record sale "+e.ExternalOrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewStoreWriteError("failed to commit ledger entries", err)
	}
	return nil
}

func (d Datasource) GetSalesByPartner(ctx context.Context, partnerID string) ([]model.SaleImport, error) {
	ctx, span := otel.Tracer("SaleLedger").Start(ctx, "Fetching partner sales")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT external_order_id, partner_id, amount, sale_date, COALESCE(salesperson, ''), created_at
		FROM rtledger.sale_imports
		WHERE partner_id = $1
		ORDER BY sale_date DESC NULLS LAST
	`, partnerID)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve partner sales", err)
	}
	defer rows.Close()

	sales := []model.SaleImport{}
	for rows.Next() {
		var s model.SaleImport
		var saleDate sql.NullTime
		if err := rows.Scan(&s.ExternalOrderID, &s.PartnerID, &s.Amount, &saleDate, &s.Salesperson, &s.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan sale", err)
		}
		s.SaleDate = saleDate.Time
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over sales", err)
	}
	return sales, nil
}

// GetLatestSalespeople returns, per partner, the salesperson named on the partner's most
// recent ledger entry. Partners without one are absent from the map.
func (d Datasource) GetLatestSalespeople(ctx context.Context, partnerIDs []string) (map[string]string, error) {
	ctx, span := otel.Tracer("SaleLedger").Start(ctx, "Fetching latest salespeople")
	defer span.End()

	result := map[string]string{}
	if len(partnerIDs) == 0 {
		return result, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT DISTINCT ON (partner_id) partner_id, salesperson
		FROM rtledger.sale_imports
		WHERE partner_id = ANY($1) AND salesperson IS NOT NULL AND salesperson <> ''
		ORDER BY partner_id, sale_date DESC NULLS LAST
	`, pq.Array(partnerIDs))
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve salespeople", err)
	}
	defer rows.Close()

	for rows.Next() {
		var partnerID, salesperson string
		if err := rows.Scan(&partnerID, &salesperson); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan salesperson", err)
		}
		result[partnerID] = salesperson
	}
	return result, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
