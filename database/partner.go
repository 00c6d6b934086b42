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
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// partnerColumns builds the select list. The accrual columns are only read when the
// schema has them.
func partnerColumns(features model.FeatureSet) string {
	selectFields := []string{
		"id", "name", "COALESCE(email, '')", "COALESCE(phone, '')",
		"COALESCE(payout_key, '')", "COALESCE(payout_key_type, '')",
		"sales_count", "total_sales_value", "points", "commission_rate", "created_at",
	}
	if features.AccrualEnabled() {
		selectFields = append(selectFields, "accrued_commission", "lifetime_paid_commission")
	}
	return strings.Join(selectFields, ", ")
}

func scanPartner(row rowScanner, features model.FeatureSet) (model.Partner, error) {
	var p model.Partner
	dest := []interface{}{
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.PayoutKey, &p.PayoutKeyType,
		&p.SalesCount, &p.TotalSalesValue, &p.Points, &p.CommissionRate, &p.CreatedAt,
	}
	if features.AccrualEnabled() {
		dest = append(dest, &p.AccruedCommission, &p.LifetimePaidCommission)
	}
	err := row.Scan(dest...)
	return p, err
}

// protectPayoutKey tokenizes the key when tokenization is configured.
func (d Datasource) protectPayoutKey(key string) (string, error) {
	if d.tokenizer == nil {
		return key, nil
	}
	sealed, err := d.tokenizer.Protect(key)
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "failed to tokenize payout key", err)
	}
	return sealed, nil
}

func (d Datasource) revealPayoutKey(p *model.Partner) error {
	if d.tokenizer == nil {
		return nil
	}
	key, err := d.tokenizer.Reveal(p.PayoutKey)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("failed to read payout key of partner %s", p.ID), err)
	}
	p.PayoutKey = key
	return nil
}

func (d Datasource) CreatePartner(ctx context.Context, p model.Partner) (model.Partner, error) {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Saving partner to db")
	defer span.End()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	payoutKey, err := d.protectPayoutKey(p.PayoutKey)
	if err != nil {
		return model.Partner{}, err
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO rtledger.partners (id, name, email, phone, payout_key, payout_key_type, sales_count, total_sales_value, points, commission_rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.Name, p.Email, p.Phone, payoutKey, p.PayoutKeyType, p.SalesCount, p.TotalSalesValue, p.Points, p.CommissionRate, p.CreatedAt)
	if err != nil {
		span.RecordError(err)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return model.Partner{}, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("partner %s already exists", p.ID), err)
		}
		return model.Partner{}, apierror.NewStoreWriteError("failed to create partner", err)
	}

	return p, nil
}

func (d Datasource) GetPartner(ctx context.Context, id string, features model.FeatureSet) (*model.Partner, error) {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Fetching partner from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM rtledger.partners WHERE id = $1`, partnerColumns(features)), id)
	p, err := scanPartner(row, features)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("partner %s not found", id), nil)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve partner", err)
	}
	if err := d.revealPayoutKey(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// partnerOrderBy turns "field" or "-field" into an ORDER BY clause, falling back to name.
func partnerOrderBy(sortBy string, features model.FeatureSet) string {
	direction := "ASC"
	if strings.HasPrefix(sortBy, "-") {
		direction = "DESC"
		sortBy = strings.TrimPrefix(sortBy, "-")
	}
	column, ok := model.PartnerSortFields[sortBy]
	if !ok {
		return "name ASC"
	}
	if (column == "accrued_commission" || column == "lifetime_paid_commission") && !features.AccrualEnabled() {
		return "name ASC"
	}
	return fmt.Sprintf("%s %s, id ASC", column, direction)
}

func (d Datasource) GetAllPartners(ctx context.Context, features model.FeatureSet, sortBy string) ([]model.Partner, error) {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Fetching all partners from db")
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM rtledger.partners ORDER BY %s`, partnerColumns(features), partnerOrderBy(sortBy, features))
	rows, err := d.Conn.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve partners", err)
	}
	defer rows.Close()

	return d.collectPartners(rows, features)
}

func (d Datasource) GetPartnersByIDs(ctx context.Context, ids []string, features model.FeatureSet) ([]model.Partner, error) {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Fetching partners by ids from db")
	defer span.End()

	if len(ids) == 0 {
		return []model.Partner{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM rtledger.partners WHERE id = ANY($1)`, partnerColumns(features))
	rows, err := d.Conn.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to retrieve partners", err)
	}
	defer rows.Close()

	return d.collectPartners(rows, features)
}

func (d Datasource) collectPartners(rows *sql.Rows, features model.FeatureSet) ([]model.Partner, error) {
	partners := []model.Partner{}
	for rows.Next() {
		p, err := scanPartner(rows, features)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan partner data", err)
		}
		if err := d.revealPayoutKey(&p); err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over partners", err)
	}
	return partners, nil
}

func (d Datasource) UpdatePartner(ctx context.Context, p *model.Partner) error {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Updating partner in db")
	defer span.End()

	payoutKey, err := d.protectPayoutKey(p.PayoutKey)
	if err != nil {
		return err
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE rtledger.partners
		SET name = $2, email = $3, phone = $4, payout_key = $5, payout_key_type = $6, commission_rate = $7
		WHERE id = $1
	`, p.ID, p.Name, p.Email, p.Phone, payoutKey, p.PayoutKeyType, p.CommissionRate)
	if err != nil {
		span.RecordError(err)
		return apierror.NewStoreWriteError("failed to update partner", err)
	}
	return expectAffected(result, fmt.Sprintf("partner %s not found", p.ID))
}

// ApplyPartnerDelta adds the delta to the stored counters in a single statement, so
// concurrent imports never overwrite each other's increments.
func (d Datasource) ApplyPartnerDelta(ctx context.Context, delta model.PartnerDelta, features model.FeatureSet) error {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Applying partner delta in db")
	defer span.End()

	query := `UPDATE rtledger.partners SET sales_count = sales_count + $2, total_sales_value = total_sales_value + $3, points = points + $4`
	args := []interface{}{delta.PartnerID, delta.SalesCount, delta.SalesValue, delta.Points}
	if features.AccrualEnabled() {
		query += `, accrued_commission = accrued_commission + $5`
		args = append(args, delta.Accrued)
	}
	query += ` WHERE id = $1`

	result, err := d.Conn.ExecContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return apierror.NewStoreWriteError(fmt.Sprintf("failed to update partner %s", delta.PartnerID), err)
	}
	return expectAffected(result, fmt.Sprintf("partner %s not found", delta.PartnerID))
}

// SettlePartnerAccrual moves amount from the accrued balance to the lifetime paid total.
// It refuses to drive the accrual below zero.
func (d Datasource) SettlePartnerAccrual(ctx context.Context, id string, amount decimal.Decimal) error {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Settling partner accrual in db")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE rtledger.partners
		SET accrued_commission = accrued_commission - $2, lifetime_paid_commission = lifetime_paid_commission + $2
		WHERE id = $1 AND accrued_commission >= $2
	`, id, amount)
	if err != nil {
		span.RecordError(err)
		return apierror.NewStoreWriteError(fmt.Sprintf("failed to settle partner %s", id), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewStoreWriteError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("partner %s not found or accrual below %s", id, amount.StringFixed(2)), nil)
	}
	return nil
}

func (d Datasource) AdjustPartnerPoints(ctx context.Context, id string, delta int64) (int64, error) {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Adjusting partner points in db")
	defer span.End()

	var points int64
	err := d.Conn.QueryRowContext(ctx, `
		UPDATE rtledger.partners SET points = GREATEST(points + $2, 0) WHERE id = $1 RETURNING points
	`, id, delta).Scan(&points)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("partner %s not found", id), nil)
		}
		span.RecordError(err)
		return 0, apierror.NewStoreWriteError("failed to adjust points", err)
	}
	return points, nil
}

func (d Datasource) DeletePartner(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("Partner").Start(ctx, "Deleting partner from db")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `DELETE FROM rtledger.partners WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return apierror.NewStoreWriteError("failed to delete partner", err)
	}
	return expectAffected(result, fmt.Sprintf("partner %s not found", id))
}

func (d Datasource) DeleteAllPartners(ctx context.Context) (int64, error) {
	return d.deleteAll(ctx, "rtledger.partners")
}

func (d Datasource) deleteAll(ctx context.Context, table string) (int64, error) {
	ctx, span := otel.Tracer("Store").Start(ctx, "Deleting all rows of "+table)
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		span.RecordError(err)
		return 0, apierror.NewStoreWriteError("failed to clear "+table, err)
	}
	return result.RowsAffected()
}

// expectAffected turns a zero row update into a NOT_FOUND error.
func expectAffected(result sql.Result, notFound string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewStoreWriteError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, notFound, nil)
	}
	return nil
}
