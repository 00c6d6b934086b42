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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/internal/notification"
	"github.com/rtledger/rtledger/internal/sheet"
	"github.com/rtledger/rtledger/model"
)

const newPartnerName = "New Partner"

// ApplyOptions controls the side effects of ApplyBatch.
type ApplyOptions struct {
	Actor string
	// File is stored as the imported file record when set.
	File *model.ImportedFile
	// SkipFile disables the synthesized file of sales API batches.
	SkipFile bool
}

// pointsFor returns one point per full divisor of amount.
func (l *RTLedger) pointsFor(amount decimal.Decimal) int64 {
	if !amount.IsPositive() {
		return 0
	}
	return amount.Div(l.config.Commission.PointsDivisor).Floor().IntPart()
}

// commissionFor uses the partner's rate at the time of the sale. A zero rate means the
// partner never had one set and gets the default.
func (l *RTLedger) commissionFor(amount, rate decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	if rate.IsZero() {
		rate = l.config.Commission.DefaultRate
	}
	return amount.Mul(rate).Round(2)
}

func (l *RTLedger) newPartnerFor(id string, sales []model.NormalizedSale) model.Partner {
	name := ""
	for _, s := range sales {
		if s.PartnerName != "" {
			name = s.PartnerName
			break
		}
	}
	if name == "" {
		name = newPartnerName
	}
	return model.Partner{
		ID:             id,
		Name:           name,
		CommissionRate: l.config.Commission.DefaultRate,
		CreatedAt:      time.Now(),
	}
}

// groupByPartner groups sales by partner id, keeping the order partners first appear in.
func groupByPartner(sales []model.NormalizedSale) ([]string, map[string][]model.NormalizedSale) {
	var order []string
	groups := map[string][]model.NormalizedSale{}
	for _, s := range sales {
		if _, ok := groups[s.PartnerID]; !ok {
			order = append(order, s.PartnerID)
		}
		groups[s.PartnerID] = append(groups[s.PartnerID], s)
	}
	return order, groups
}

// ApplyBatch adds the new records of a reconciled batch to partner balances, creating
// the partners that do not exist yet. Each partner gets one update with the summed
// delta; updates run concurrently and fail independently.
//
// Records carrying an order id are then appended to the sale ledger. A ledger failure
// does not undo the balance updates; it is reported in LedgerWarning.
func (l *RTLedger) ApplyBatch(ctx context.Context, res *model.ReconcileResult, opts ApplyOptions) (*model.ApplyResult, error) {
	ctx, span := otel.Tracer("rtledger.import").Start(ctx, "ApplyBatch")
	defer span.End()

	result := &model.ApplyResult{
		PartnersCreated: []string{},
		PartnersUpdated: []string{},
		Failed:          map[string]string{},
	}
	if res == nil || len(res.NewRecords) == 0 {
		if res != nil {
			result.Duplicates = res.Duplicates
		}
		return result, nil
	}
	result.Duplicates = res.Duplicates

	order, groups := groupByPartner(res.NewRecords)
	existing, err := l.datasource.GetPartnersByIDs(ctx, order, l.features)
	if err != nil {
		return nil, err
	}
	partners := make(map[string]model.Partner, len(existing))
	for _, p := range existing {
		partners[p.ID] = p
	}

	created := map[string]bool{}
	for _, id := range order {
		if _, ok := partners[id]; ok {
			continue
		}
		p, err := l.createImportedPartner(ctx, id, groups[id])
		if err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		partners[id] = p
		created[id] = true
	}

	var deltas []model.PartnerDelta
	for _, id := range order {
		p, ok := partners[id]
		if !ok {
			continue
		}
		delta := model.PartnerDelta{PartnerID: id}
		for _, sale := range groups[id] {
			commission := decimal.Zero
			if l.features.AccrualEnabled() {
				commission = l.commissionFor(sale.Amount, p.CommissionRate)
			}
			delta.Add(sale.Amount, l.pointsFor(sale.Amount), commission)
		}
		deltas = append(deltas, delta)
	}

	errs := make([]error, len(deltas))
	var wg sync.WaitGroup
	for i, delta := range deltas {
		wg.Add(1)
		go func(i int, delta model.PartnerDelta) {
			defer wg.Done()
			errs[i] = l.datasource.ApplyPartnerDelta(ctx, delta, l.features)
		}(i, delta)
	}
	wg.Wait()

	var applied []model.NormalizedSale
	var firstErr error
	for i, delta := range deltas {
		if errs[i] != nil {
			result.Failed[delta.PartnerID] = errs[i].Error()
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		result.RecordsApplied += len(groups[delta.PartnerID])
		applied = append(applied, groups[delta.PartnerID]...)
		if created[delta.PartnerID] {
			result.PartnersCreated = append(result.PartnersCreated, delta.PartnerID)
		} else {
			result.PartnersUpdated = append(result.PartnersUpdated, delta.PartnerID)
		}
	}

	if len(applied) > 0 {
		l.appendLedger(ctx, applied, result)
		l.saveImportFile(ctx, res.Source, applied, opts, result)
	}

	l.invalidate()
	l.logAction(opts.Actor, "Applied %d sale(s) from %s: %d partner(s) updated, %d created, %d duplicate(s), %d failed",
		result.RecordsApplied, res.Source, len(result.PartnersUpdated), len(result.PartnersCreated), len(result.Duplicates), len(result.Failed))

	if result.RecordsApplied == 0 {
		if firstErr == nil {
			firstErr = errors.New(strings.Join(failedMessages(result.Failed), "; "))
		}
		return result, apierror.NewStoreWriteError("no sales were applied", firstErr)
	}
	return result, nil
}

// createImportedPartner registers a partner first seen in an import. A partner created
// concurrently by another import is fetched instead.
func (l *RTLedger) createImportedPartner(ctx context.Context, id string, sales []model.NormalizedSale) (model.Partner, error) {
	p, err := l.datasource.CreatePartner(ctx, l.newPartnerFor(id, sales))
	if err == nil {
		return p, nil
	}
	if apierror.Is(err, apierror.ErrConflict) {
		existing, getErr := l.datasource.GetPartner(ctx, id, l.features)
		if getErr == nil {
			return *existing, nil
		}
	}
	return model.Partner{}, err
}

func (l *RTLedger) appendLedger(ctx context.Context, applied []model.NormalizedSale, result *model.ApplyResult) {
	now := time.Now()
	var entries []model.SaleImport
	for _, sale := range applied {
		if sale.ExternalOrderID == "" {
			continue
		}
		entries = append(entries, model.SaleImport{
			ExternalOrderID: sale.ExternalOrderID,
			PartnerID:       sale.PartnerID,
			Amount:          sale.Amount,
			SaleDate:        sale.SaleDate,
			Salesperson:     sale.Salesperson,
			CreatedAt:       now,
		})
	}
	if len(entries) == 0 {
		return
	}

	if err := l.datasource.RecordSaleImports(ctx, entries); err != nil {
		result.LedgerWarning = fmt.Sprintf("balances were updated but %d sale(s) could not be added to the sale ledger; importing these orders again may count them twice: %v", len(entries), err)
		logrus.WithError(err).Error("sale ledger write failed after balances were applied")
		notification.NotifyError(errors.Wrap(err, "sale ledger write failed after balances were applied"))
	}
}

// saveImportFile keeps the uploaded file, or a CSV of the applied sales API rows, for
// re-download. Failures are logged only.
func (l *RTLedger) saveImportFile(ctx context.Context, source model.ImportSource, applied []model.NormalizedSale, opts ApplyOptions, result *model.ApplyResult) {
	file := opts.File
	if file == nil {
		if source != model.SourceSalesAPI || opts.SkipFile {
			return
		}
		rows := make([]map[string]interface{}, 0, len(applied))
		for _, sale := range applied {
			rows = append(rows, sale.Raw)
		}
		content, err := sheet.EncodeCSV(sheet.HeadersOf(rows), rows)
		if err != nil {
			logrus.WithError(err).Warn("failed to build sales api import file")
			return
		}
		file = &model.ImportedFile{
			Name:        fmt.Sprintf("importacao_sales_api_%s.csv", time.Now().Format("02-01-2006")),
			ContentType: sheet.MimeCSV,
			Content:     content,
		}
	}

	saved, err := l.datasource.SaveImportedFile(ctx, *file)
	if err != nil {
		logrus.WithError(err).Warn("failed to save imported file")
		return
	}
	result.FileID = saved.ID
}

func failedMessages(failed map[string]string) []string {
	messages := make([]string, 0, len(failed))
	for id, msg := range failed {
		messages = append(messages, id+": "+msg)
	}
	sort.Strings(messages)
	return messages
}

// ListImportedFiles returns the imported sheets without their content, newest first.
func (l *RTLedger) ListImportedFiles(ctx context.Context) ([]model.ImportedFile, error) {
	return l.datasource.GetImportedFiles(ctx)
}

// GetImportedFile returns an imported sheet with its content, for download.
func (l *RTLedger) GetImportedFile(ctx context.Context, id string) (*model.ImportedFile, error) {
	return l.datasource.GetImportedFile(ctx, id)
}
