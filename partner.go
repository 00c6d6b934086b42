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

package rtledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/internal/money"
	"github.com/rtledger/rtledger/internal/sheet"
	"github.com/rtledger/rtledger/model"
)

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "commission rate must be between 0 and 1", nil)
	}
	return nil
}

// CreatePartner registers a partner with zeroed balances. The id must be new.
func (l *RTLedger) CreatePartner(ctx context.Context, p model.Partner, actor string) (*model.Partner, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "partner id and name are required", nil)
	}
	if err := validateRate(p.CommissionRate); err != nil {
		return nil, err
	}
	if p.CommissionRate.IsZero() {
		p.CommissionRate = l.config.Commission.DefaultRate
	}
	p.SalesCount, p.Points = 0, 0
	p.TotalSalesValue, p.AccruedCommission, p.LifetimePaidCommission = decimal.Zero, decimal.Zero, decimal.Zero

	created, err := l.datasource.CreatePartner(ctx, p)
	if err != nil {
		return nil, err
	}
	l.invalidate()
	l.logAction(actor, "Created partner %s (%s)", created.Name, created.ID)
	return &created, nil
}

func (l *RTLedger) GetPartner(ctx context.Context, id string) (*model.Partner, error) {
	return l.datasource.GetPartner(ctx, id, l.features)
}

// ListPartners returns every partner sorted by sortBy ("-field" for descending).
func (l *RTLedger) ListPartners(ctx context.Context, sortBy string) ([]model.Partner, error) {
	return l.datasource.GetAllPartners(ctx, l.features, sortBy)
}

// UpdatePartner changes contact fields and the commission rate. A new rate only applies
// to sales imported after the change.
func (l *RTLedger) UpdatePartner(ctx context.Context, id string, update model.PartnerUpdate, actor string) (*model.Partner, error) {
	p, err := l.datasource.GetPartner(ctx, id, l.features)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "partner name cannot be empty", nil)
		}
		p.Name = name
	}
	if update.Email != nil {
		p.Email = strings.TrimSpace(*update.Email)
	}
	if update.Phone != nil {
		p.Phone = strings.TrimSpace(*update.Phone)
	}
	if update.PayoutKey != nil {
		p.PayoutKey = strings.TrimSpace(*update.PayoutKey)
	}
	if update.PayoutKeyType != nil {
		p.PayoutKeyType = strings.TrimSpace(*update.PayoutKeyType)
	}
	if update.CommissionRate != nil {
		if err := validateRate(*update.CommissionRate); err != nil {
			return nil, err
		}
		p.CommissionRate = *update.CommissionRate
	}

	if err := l.datasource.UpdatePartner(ctx, p); err != nil {
		return nil, err
	}
	l.invalidate()
	l.logAction(actor, "Updated partner %s (%s)", p.Name, p.ID)
	return p, nil
}

// DeletePartner removes the partner only. Its payouts, requests and ledger entries stay.
func (l *RTLedger) DeletePartner(ctx context.Context, id, actor string) error {
	if err := l.datasource.DeletePartner(ctx, id); err != nil {
		return err
	}
	l.invalidate()
	l.logAction(actor, "Deleted partner %s", id)
	return nil
}

// DeleteAllData deletes partners, payouts, imported files and manual requests, one
// table at a time. The sale ledger is kept so past orders are never imported again.
func (l *RTLedger) DeleteAllData(ctx context.Context, actor string) (map[string]int64, error) {
	deleted := map[string]int64{}
	steps := []struct {
		name string
		fn   func(context.Context) (int64, error)
	}{
		{"payouts", l.datasource.DeleteAllPayouts},
		{"manual_commissions", l.datasource.DeleteAllManualCommissions},
		{"imported_files", l.datasource.DeleteAllImportedFiles},
		{"partners", l.datasource.DeleteAllPartners},
	}
	for _, step := range steps {
		n, err := step.fn(ctx)
		if err != nil {
			l.invalidate()
			return deleted, err
		}
		deleted[step.name] = n
	}
	l.invalidate()
	l.logAction(actor, "Deleted all data: %d partner(s), %d payout(s), %d file(s), %d manual request(s)",
		deleted["partners"], deleted["payouts"], deleted["imported_files"], deleted["manual_commissions"])
	return deleted, nil
}

// ImportPartners creates the partners of a sheet whose id is not registered yet. Known
// ids are skipped, never overwritten.
func (l *RTLedger) ImportPartners(ctx context.Context, rows []model.RawRow, mapping ColumnMapping, actor string) (*model.PartnerImportResult, error) {
	if err := validatePartnerMapping(mapping); err != nil {
		return nil, err
	}

	var candidates []model.Partner
	for _, row := range rows {
		p := partnerFromRow(row, mapping)
		if p.ID == "" || p.Name == "" {
			continue
		}
		candidates = append(candidates, p)
	}

	ids := make([]string, 0, len(candidates))
	for _, p := range candidates {
		ids = append(ids, p.ID)
	}
	existing, err := l.datasource.GetPartnersByIDs(ctx, uniqueStrings(ids), l.features)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.ID] = true
	}

	result := &model.PartnerImportResult{Created: []string{}, Skipped: []string{}, Failed: map[string]string{}}
	for _, p := range candidates {
		if known[p.ID] {
			result.Skipped = append(result.Skipped, p.ID)
			continue
		}
		if p.CommissionRate.IsZero() || validateRate(p.CommissionRate) != nil {
			p.CommissionRate = l.config.Commission.DefaultRate
		}
		if _, err := l.datasource.CreatePartner(ctx, p); err != nil {
			result.Failed[p.ID] = err.Error()
			continue
		}
		known[p.ID] = true
		result.Created = append(result.Created, p.ID)
	}

	l.invalidate()
	l.logAction(actor, "Imported partners: %d created, %d already registered, %d failed", len(result.Created), len(result.Skipped), len(result.Failed))
	return result, nil
}

// ImportPartnersFile parses a partner sheet and imports it. A nil mapping is suggested
// from the sheet headers.
func (l *RTLedger) ImportPartnersFile(ctx context.Context, filename string, content []byte, mapping ColumnMapping, actor string) (*model.PartnerImportResult, error) {
	table, err := sheet.Parse(filename, content)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
	}
	if len(mapping) == 0 {
		mapping = SuggestPartnerMapping(table.Headers)
	}
	return l.ImportPartners(ctx, toRawRows(table.Rows), mapping, actor)
}

func partnerFromRow(row model.RawRow, mapping ColumnMapping) model.Partner {
	get := func(field string) string {
		column := mapping[field]
		if column == "" {
			return ""
		}
		return sheet.Cell(row[column])
	}

	rate := money.ParseCurrency(get(PartnerFieldCommissionRate))
	// rates written as percentages, e.g. 5 for 5%
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		rate = rate.Div(decimal.NewFromInt(100))
	}
	return model.Partner{
		ID:             get(PartnerFieldID),
		Name:           get(PartnerFieldName),
		Email:          get(PartnerFieldEmail),
		Phone:          get(PartnerFieldPhone),
		PayoutKey:      get(PartnerFieldPayoutKey),
		PayoutKeyType:  get(PartnerFieldPayoutKeyType),
		CommissionRate: rate,
	}
}

// AddSaleValue applies a sale without an order id straight to a partner. It does not
// enter the sale ledger.
func (l *RTLedger) AddSaleValue(ctx context.Context, partnerID string, amount decimal.Decimal, actor string) (*model.ApplyResult, error) {
	if !amount.IsPositive() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "amount must be greater than zero", nil)
	}
	if _, err := l.datasource.GetPartner(ctx, partnerID, l.features); err != nil {
		return nil, err
	}

	batch := &model.ReconcileResult{
		Source:     model.SourceManual,
		NewRecords: []model.NormalizedSale{{PartnerID: partnerID, Amount: amount, SaleDate: model.Today()}},
	}
	return l.ApplyBatch(ctx, batch, ApplyOptions{Actor: actor, SkipFile: true})
}

// AdjustPoints adds delta (negative to remove) to a partner's points. Points stop at zero.
func (l *RTLedger) AdjustPoints(ctx context.Context, partnerID string, delta int64, actor string) (int64, error) {
	if delta == 0 {
		return 0, apierror.NewAPIError(apierror.ErrInvalidInput, "point adjustment cannot be zero", nil)
	}
	points, err := l.datasource.AdjustPartnerPoints(ctx, partnerID, delta)
	if err != nil {
		return 0, err
	}
	l.invalidate()
	l.logAction(actor, "Adjusted points of partner %s by %d, now %d", partnerID, delta, points)
	return points, nil
}

var partnerExportHeaders = []string{"id", "name", "email", "phone", "payout_key", "payout_key_type", "sales_count", "total_sales_value", "points", "commission_rate"}

// ExportPartners renders every partner as CSV.
func (l *RTLedger) ExportPartners(ctx context.Context) ([]byte, error) {
	partners, err := l.datasource.GetAllPartners(ctx, l.features, "name")
	if err != nil {
		return nil, err
	}

	headers := partnerExportHeaders
	if l.features.AccrualEnabled() {
		headers = append(append([]string{}, partnerExportHeaders...), "accrued_commission", "lifetime_paid_commission")
	}

	rows := make([]map[string]interface{}, 0, len(partners))
	for _, p := range partners {
		rows = append(rows, map[string]interface{}{
			"id":                       p.ID,
			"name":                     p.Name,
			"email":                    p.Email,
			"phone":                    p.Phone,
			"payout_key":               p.PayoutKey,
			"payout_key_type":          p.PayoutKeyType,
			"sales_count":              p.SalesCount,
			"total_sales_value":        money.FormatCurrency(p.TotalSalesValue),
			"points":                   p.Points,
			"commission_rate":          p.CommissionRate.String(),
			"accrued_commission":       money.FormatCurrency(p.AccruedCommission),
			"lifetime_paid_commission": money.FormatCurrency(p.LifetimePaidCommission),
		})
	}
	return sheet.EncodeCSV(headers, rows)
}

func toRawRows(rows []map[string]interface{}) []model.RawRow {
	out := make([]model.RawRow, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

// ImportSpreadsheet parses an uploaded sales sheet, reconciles it with mapping and
// applies it, keeping the file for re-download.
func (l *RTLedger) ImportSpreadsheet(ctx context.Context, filename string, content []byte, mapping ColumnMapping, actor string) (*model.ApplyResult, error) {
	table, err := sheet.Parse(filename, content)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), nil)
	}
	if len(mapping) == 0 {
		mapping = SuggestMapping(table.Headers)
	}

	res, err := l.Reconcile(ctx, toRawRows(table.Rows), mapping, model.SourceSpreadsheet)
	if err != nil {
		return nil, err
	}

	contentType, _ := sheet.DetectFileType(content, filename)
	file := &model.ImportedFile{Name: filename, ContentType: contentType, Content: content}
	return l.ApplyBatch(ctx, res, ApplyOptions{Actor: actor, File: file})
}

// PreviewSpreadsheet reconciles an uploaded sales sheet without applying it.
func (l *RTLedger) PreviewSpreadsheet(ctx context.Context, filename string, content []byte, mapping ColumnMapping) (*model.ImportPreview, ColumnMapping, error) {
	table, err := sheet.Parse(filename, content)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("could not read %s: %v", filename, err), nil)
	}
	if len(mapping) == 0 {
		mapping = SuggestMapping(table.Headers)
	}
	preview, err := l.PreviewImport(ctx, toRawRows(table.Rows), mapping, model.SourceSpreadsheet)
	return preview, mapping, err
}
