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

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rtledger/rtledger/internal/money"
	"github.com/rtledger/rtledger/internal/sheet"
	"github.com/rtledger/rtledger/model"
)

// Reconcile normalizes raw rows through mapping and, for sales API batches, drops the
// rows whose order id is already in the sale ledger.
//
// Rows without a partner id are skipped. Sales API rows without an order id are skipped
// too, since they cannot be deduplicated. When the same order id appears more than once
// in a batch, only its first row is new.
func (l *RTLedger) Reconcile(ctx context.Context, rows []model.RawRow, mapping ColumnMapping, source model.ImportSource) (*model.ReconcileResult, error) {
	ctx, span := otel.Tracer("rtledger.import").Start(ctx, "Reconcile")
	defer span.End()

	if err := ValidateMapping(mapping, source); err != nil {
		return nil, err
	}

	result := &model.ReconcileResult{
		Source:     source,
		NewRecords: []model.NormalizedSale{},
		Duplicates: []string{},
	}

	normalized := make([]model.NormalizedSale, 0, len(rows))
	for _, row := range rows {
		sale := normalizeRow(row, mapping, source)
		if sale.PartnerID == "" {
			result.Skipped++
			continue
		}
		if source == model.SourceSalesAPI && sale.ExternalOrderID == "" {
			result.Skipped++
			continue
		}
		normalized = append(normalized, sale)
	}

	if source != model.SourceSalesAPI {
		result.NewRecords = normalized
		span.SetAttributes(attribute.Int("records.new", len(normalized)))
		return result, nil
	}

	ids := make([]string, 0, len(normalized))
	for _, sale := range normalized {
		ids = append(ids, sale.ExternalOrderID)
	}
	existing, err := l.datasource.FindExistingOrderIDs(ctx, uniqueStrings(ids))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	for _, sale := range normalized {
		if seen[sale.ExternalOrderID] {
			result.Duplicates = append(result.Duplicates, sale.ExternalOrderID)
			continue
		}
		seen[sale.ExternalOrderID] = true
		result.NewRecords = append(result.NewRecords, sale)
	}

	span.SetAttributes(
		attribute.Int("records.new", len(result.NewRecords)),
		attribute.Int("records.duplicate", len(result.Duplicates)),
	)
	return result, nil
}

// normalizeRow reads the mapped columns of row. Sales API amounts use the feed's number
// format; spreadsheet amounts use the domestic currency format.
func normalizeRow(row model.RawRow, mapping ColumnMapping, source model.ImportSource) model.NormalizedSale {
	get := func(field string) interface{} {
		column := mapping[field]
		if column == "" {
			return nil
		}
		return row[column]
	}

	sale := model.NormalizedSale{
		ExternalOrderID: sheet.Cell(get(FieldExternalOrderID)),
		PartnerID:       sheet.Cell(get(FieldPartnerID)),
		PartnerName:     sheet.Cell(get(FieldPartnerName)),
		CustomerName:    sheet.Cell(get(FieldCustomerName)),
		Salesperson:     sheet.Cell(get(FieldSalesperson)),
		Store:           sheet.Cell(get(FieldStore)),
		Raw:             row,
	}

	if source == model.SourceSalesAPI {
		sale.Amount = money.ParseAPINumber(get(FieldAmount))
	} else {
		sale.Amount = money.ParseCurrencyValue(get(FieldAmount))
	}
	// balances never go below zero, so a negative amount counts as an empty sale
	if sale.Amount.IsNegative() {
		sale.Amount = decimal.Zero
	}

	if date, ok := money.ParseDate(get(FieldSaleDate)); ok {
		sale.SaleDate = date
	}
	return sale
}

// PreviewImport reconciles rows without applying them and lists the partners the batch
// would create.
func (l *RTLedger) PreviewImport(ctx context.Context, rows []model.RawRow, mapping ColumnMapping, source model.ImportSource) (*model.ImportPreview, error) {
	result, err := l.Reconcile(ctx, rows, mapping, source)
	if err != nil {
		return nil, err
	}

	unknown, err := l.unknownPartners(ctx, result.NewRecords)
	if err != nil {
		return nil, err
	}
	return &model.ImportPreview{ReconcileResult: result, UnknownPartners: unknown}, nil
}

func (l *RTLedger) unknownPartners(ctx context.Context, sales []model.NormalizedSale) ([]model.Partner, error) {
	order, groups := groupByPartner(sales)
	existing, err := l.datasource.GetPartnersByIDs(ctx, order, l.features)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.ID] = true
	}

	unknown := []model.Partner{}
	for _, id := range order {
		if known[id] {
			continue
		}
		unknown = append(unknown, l.newPartnerFor(id, groups[id]))
	}
	return unknown, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
