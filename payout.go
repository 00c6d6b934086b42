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
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rtledger/rtledger/database"
	"github.com/rtledger/rtledger/internal/apierror"
	redlock "github.com/rtledger/rtledger/internal/lock"
	"github.com/rtledger/rtledger/internal/money"
	"github.com/rtledger/rtledger/internal/notification"
	"github.com/rtledger/rtledger/internal/sheet"
	"github.com/rtledger/rtledger/model"
)

func (l *RTLedger) requirePayouts() error {
	if !l.features.PayoutsEnabled() {
		return apierror.NewAPIError(apierror.ErrFeatureUnavailable, "payouts need the accrued and lifetime paid commission columns, run the migrations first", nil)
	}
	return nil
}

const (
	payoutLockKey = "rtledger:payout-commit"
	payoutLockTTL = time.Minute
)

var payoutLockWait = 5 * time.Second

// lockPayouts serializes payout generation, so the same accrual is never swept by two
// commits at once. The returned func releases the lock.
func (l *RTLedger) lockPayouts(ctx context.Context) (func(), error) {
	l.payoutMu.Lock()
	if l.locks == nil {
		return l.payoutMu.Unlock, nil
	}

	locker := redlock.NewLocker(l.locks, payoutLockKey, model.GenerateUUIDWithSuffix("lock"))
	if err := locker.WaitLock(ctx, payoutLockTTL, payoutLockWait); err != nil {
		l.payoutMu.Unlock()
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "another payout commit is running, try again shortly", nil)
		}
		return nil, err
	}
	return func() {
		if err := locker.Unlock(context.Background()); err != nil {
			logrus.WithError(err).Warn("failed to release payout lock")
		}
		l.payoutMu.Unlock()
	}, nil
}

// PayoutTransaction writes a set of payouts and then settles the partner accrual each one
// pays. The two steps are separate store calls. When a settlement fails the payout is
// flagged reconciliation_pending for follow-up; when even the flag cannot be written an
// operator notification is sent.
type PayoutTransaction struct {
	datasource database.IDataSource
	payouts    []model.Payout
}

func newPayoutTransaction(ds database.IDataSource, payouts []model.Payout) *PayoutTransaction {
	return &PayoutTransaction{datasource: ds, payouts: payouts}
}

// Commit returns the payouts with their final reconciliation flag. An error means
// nothing was written.
func (t *PayoutTransaction) Commit(ctx context.Context) ([]model.Payout, error) {
	ctx, span := otel.Tracer("rtledger.payout").Start(ctx, "PayoutTransaction.Commit")
	defer span.End()

	if err := t.datasource.CreatePayouts(ctx, t.payouts); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var wg sync.WaitGroup
	for i := range t.payouts {
		wg.Add(1)
		go func(p *model.Payout) {
			defer wg.Done()
			err := t.datasource.SettlePartnerAccrual(ctx, p.PartnerID, p.Amount)
			if err == nil {
				return
			}
			logrus.WithError(err).WithField("payout_id", p.ID).Error("partner settlement failed, flagging payout for reconciliation")
			p.ReconciliationPending = true
			if flagErr := t.datasource.SetReconciliationPending(ctx, p.ID, true); flagErr != nil {
				notification.NotifyError(errors.Wrapf(flagErr, "payout %s for partner %s was created but neither the partner settlement (%v) nor the reconciliation flag could be written", p.ID, p.PartnerID, err))
			}
		}(&t.payouts[i])
	}
	wg.Wait()

	return t.payouts, nil
}

// SweepEligiblePayouts returns the partners whose accrued commission reaches threshold
// (the configured threshold when it is not positive). Partners are always read fresh from
// the store.
func (l *RTLedger) SweepEligiblePayouts(ctx context.Context, threshold decimal.Decimal) ([]model.Partner, error) {
	if err := l.requirePayouts(); err != nil {
		return nil, err
	}
	if !threshold.IsPositive() {
		threshold = l.config.Commission.PayoutThreshold
	}

	partners, err := l.datasource.GetAllPartners(ctx, l.features, "-accrued_commission")
	if err != nil {
		return nil, err
	}

	eligible := []model.Partner{}
	for _, p := range partners {
		if p.AccruedCommission.GreaterThanOrEqual(threshold) {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}

func (l *RTLedger) newPayout(p model.Partner, kind model.PayoutKind, salesperson string, day time.Time) model.Payout {
	return model.Payout{
		ID:             model.GenerateUUIDWithSuffix("pay"),
		PartnerID:      p.ID,
		PartnerName:    p.Name,
		Amount:         p.AccruedCommission,
		GenerationDate: day,
		Salesperson:    salesperson,
		Kind:           kind,
		CreatedAt:      time.Now(),
	}
}

// latestSalespeople is best effort: payouts are generated without the salesperson when
// the lookup fails.
func (l *RTLedger) latestSalespeople(ctx context.Context, ids []string) map[string]string {
	people, err := l.datasource.GetLatestSalespeople(ctx, ids)
	if err != nil {
		logrus.WithError(err).Warn("salesperson lookup failed, payouts will not carry it")
		return map[string]string{}
	}
	return people
}

// CommitPayoutBatch generates today's payouts for the confirmed partners. Each partner is
// checked again against a fresh sweep and paid its current accrual; partners no longer
// eligible are reported in Skipped. An empty partnerIDs pays every eligible partner.
func (l *RTLedger) CommitPayoutBatch(ctx context.Context, partnerIDs []string, actor string) (*model.PayoutCommitResult, error) {
	ctx, span := otel.Tracer("rtledger.payout").Start(ctx, "CommitPayoutBatch")
	defer span.End()

	unlock, err := l.lockPayouts(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	eligible, err := l.SweepEligiblePayouts(ctx, decimal.Zero)
	if err != nil {
		return nil, err
	}

	selected := eligible
	var skipped []string
	if len(partnerIDs) > 0 {
		byID := make(map[string]model.Partner, len(eligible))
		for _, p := range eligible {
			byID[p.ID] = p
		}
		selected = nil
		for _, id := range uniqueStrings(partnerIDs) {
			p, ok := byID[id]
			if !ok {
				skipped = append(skipped, id)
				continue
			}
			selected = append(selected, p)
		}
	}
	if len(selected) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrNothingToPay, "no partner is eligible for payout", skipped)
	}

	ids := make([]string, 0, len(selected))
	for _, p := range selected {
		ids = append(ids, p.ID)
	}
	salespeople := l.latestSalespeople(ctx, ids)

	today := model.Today()
	payouts := make([]model.Payout, 0, len(selected))
	for _, p := range selected {
		payouts = append(payouts, l.newPayout(p, model.PayoutKindPayout, salespeople[p.ID], today))
	}

	committed, err := newPayoutTransaction(l.datasource, payouts).Commit(ctx)
	if err != nil {
		return nil, err
	}
	l.invalidate()

	result := &model.PayoutCommitResult{GenerationDate: today, Payouts: committed, Skipped: skipped}
	total := decimal.Zero
	for _, p := range committed {
		total = total.Add(p.Amount)
		if p.ReconciliationPending {
			result.ReconciliationPending = append(result.ReconciliationPending, p.ID)
		}
	}
	span.SetAttributes(attribute.Int("payouts.count", len(committed)))

	l.logAction(actor, "Generated %d payout(s) totalling %s", len(committed), money.FormatCurrency(total))
	return result, nil
}

// CommitSinglePayout pays out the whole accrual of one partner as a payout or a
// redemption. It needs a positive accrual, not the batch threshold.
func (l *RTLedger) CommitSinglePayout(ctx context.Context, partnerID string, kind model.PayoutKind, actor string) (*model.Payout, error) {
	if err := l.requirePayouts(); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid payout kind %q", kind), nil)
	}

	unlock, err := l.lockPayouts(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := l.datasource.GetPartner(ctx, partnerID, l.features)
	if err != nil {
		return nil, err
	}
	if !p.AccruedCommission.IsPositive() {
		return nil, apierror.NewAPIError(apierror.ErrNothingToPay, fmt.Sprintf("partner %s has nothing to pay", partnerID), nil)
	}

	salespeople := l.latestSalespeople(ctx, []string{p.ID})
	payout := l.newPayout(*p, kind, salespeople[p.ID], model.Today())

	committed, err := newPayoutTransaction(l.datasource, []model.Payout{payout}).Commit(ctx)
	if err != nil {
		return nil, err
	}
	l.invalidate()

	l.logAction(actor, "Generated %s of %s for partner %s (%s)", kind, money.FormatCurrency(payout.Amount), p.Name, p.ID)
	return &committed[0], nil
}

// ListPayouts returns the payouts of kind grouped by generation date, newest first.
func (l *RTLedger) ListPayouts(ctx context.Context, kind model.PayoutKind) ([]model.PayoutBatch, error) {
	if !kind.Valid() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid payout kind %q", kind), nil)
	}
	payouts, err := l.datasource.GetPayouts(ctx, kind)
	if err != nil {
		return nil, err
	}
	return groupPayouts(payouts, kind), nil
}

func (l *RTLedger) GetPayout(ctx context.Context, id string) (*model.Payout, error) {
	return l.datasource.GetPayout(ctx, id)
}

// SetPayoutPaid toggles the paid flag. It can be flipped back and forth.
func (l *RTLedger) SetPayoutPaid(ctx context.Context, id string, paid bool, actor string) error {
	if err := l.datasource.SetPayoutPaid(ctx, id, paid); err != nil {
		return err
	}
	l.invalidate()
	l.logAction(actor, "Marked payout %s as %s", id, map[bool]string{true: "paid", false: "unpaid"}[paid])
	return nil
}

// UpdatePayoutAmount corrects the amount of a payout. The partner balances are not touched.
func (l *RTLedger) UpdatePayoutAmount(ctx context.Context, id string, amount decimal.Decimal, actor string) error {
	if amount.IsNegative() {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "payout amount cannot be negative", nil)
	}
	if err := l.datasource.UpdatePayoutAmount(ctx, id, amount.Round(2)); err != nil {
		return err
	}
	l.invalidate()
	l.logAction(actor, "Changed payout %s amount to %s", id, money.FormatCurrency(amount))
	return nil
}

func (l *RTLedger) AttachReceipt(ctx context.Context, id string, receipt model.Receipt, actor string) error {
	receipt.Name = strings.TrimSpace(receipt.Name)
	if receipt.Name == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "receipt name is required", nil)
	}
	if len(receipt.Content) == 0 && receipt.URL == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "receipt needs a file or a url", nil)
	}
	if err := l.datasource.AttachPayoutReceipt(ctx, id, receipt); err != nil {
		return err
	}
	l.invalidate()
	l.logAction(actor, "Attached receipt %s to payout %s", receipt.Name, id)
	return nil
}

// ResolveReconciliation retries the partner settlement of a payout flagged
// reconciliation_pending and clears the flag once it succeeds.
func (l *RTLedger) ResolveReconciliation(ctx context.Context, id string, actor string) error {
	if err := l.requirePayouts(); err != nil {
		return err
	}
	p, err := l.datasource.GetPayout(ctx, id)
	if err != nil {
		return err
	}
	if !p.ReconciliationPending {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("payout %s is not pending reconciliation", id), nil)
	}
	if err := l.datasource.SettlePartnerAccrual(ctx, p.PartnerID, p.Amount); err != nil {
		return err
	}
	if err := l.datasource.SetReconciliationPending(ctx, id, false); err != nil {
		return err
	}
	l.invalidate()
	l.logAction(actor, "Reconciled payout %s for partner %s", id, p.PartnerID)
	return nil
}

// DeletePayoutBatch deletes every payout of kind generated on date. Accruals already
// settled by those payouts are not restored.
func (l *RTLedger) DeletePayoutBatch(ctx context.Context, date time.Time, kind model.PayoutKind, actor string) (int64, error) {
	if !kind.Valid() {
		return 0, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid payout kind %q", kind), nil)
	}
	deleted, err := l.datasource.DeletePayoutsByDate(ctx, date, kind)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("no %s batch on %s", kind, date.Format("02/01/2006")), nil)
	}
	l.invalidate()
	l.logAction(actor, "Deleted %s batch of %s (%d record(s))", kind, date.Format("02/01/2006"), deleted)
	return deleted, nil
}

var payoutExportHeaders = []string{"partner_id", "partner_name", "payout_key", "payout_key_type", "amount", "paid", "salesperson", "generation_date"}

// ExportPayoutBatch renders a batch as CSV with each partner's current payout key.
func (l *RTLedger) ExportPayoutBatch(ctx context.Context, date time.Time, kind model.PayoutKind) ([]byte, error) {
	payouts, err := l.datasource.GetPayoutsByDate(ctx, date, kind)
	if err != nil {
		return nil, err
	}
	if len(payouts) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("no %s batch on %s", kind, date.Format("02/01/2006")), nil)
	}

	ids := make([]string, 0, len(payouts))
	for _, p := range payouts {
		ids = append(ids, p.PartnerID)
	}
	partners, err := l.datasource.GetPartnersByIDs(ctx, uniqueStrings(ids), l.features)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Partner, len(partners))
	for _, p := range partners {
		byID[p.ID] = p
	}

	rows := make([]map[string]interface{}, 0, len(payouts))
	for _, p := range payouts {
		partner := byID[p.PartnerID]
		rows = append(rows, map[string]interface{}{
			"partner_id":      p.PartnerID,
			"partner_name":    p.PartnerName,
			"payout_key":      partner.PayoutKey,
			"payout_key_type": partner.PayoutKeyType,
			"amount":          money.FormatCurrency(p.Amount),
			"paid":            p.Paid,
			"salesperson":     p.Salesperson,
			"generation_date": p.GenerationDate.Format("02/01/2006"),
		})
	}
	return sheet.EncodeCSV(payoutExportHeaders, rows)
}
