package rtledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wacul/ptr"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/internal/money"
	"github.com/rtledger/rtledger/model"
)

// checkOrderFree fails with a duplicate error when orderID is already in the sale ledger
// or on another manual request with one of statuses.
func (l *RTLedger) checkOrderFree(ctx context.Context, orderID, excludeID string, statuses []string) error {
	exists, err := l.datasource.OrderExists(ctx, orderID)
	if err != nil {
		return err
	}
	if exists {
		return apierror.NewDuplicateError([]string{orderID})
	}

	exists, err = l.datasource.ManualOrderExists(ctx, orderID, excludeID, statuses)
	if err != nil {
		return err
	}
	if exists {
		return apierror.NewDuplicateError([]string{orderID})
	}
	return nil
}

// SubmitManualCommission records a pending request. The partner must exist and an order
// id, when given, must not be in the ledger or on another pending or approved request.
func (l *RTLedger) SubmitManualCommission(ctx context.Context, req model.ManualCommission, actor string) (*model.ManualCommission, error) {
	req.PartnerID = strings.TrimSpace(req.PartnerID)
	req.ExternalOrderID = strings.TrimSpace(req.ExternalOrderID)

	if req.PartnerID == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "partner id is required", nil)
	}
	if !req.Amount.IsPositive() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "amount must be greater than zero", nil)
	}

	if _, err := l.datasource.GetPartner(ctx, req.PartnerID, l.features); err != nil {
		if apierror.Is(err, apierror.ErrNotFound) {
			return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("partner %s does not exist", req.PartnerID), nil)
		}
		return nil, err
	}

	if req.ExternalOrderID != "" {
		statuses := []string{model.ManualCommissionPending, model.ManualCommissionApproved}
		if err := l.checkOrderFree(ctx, req.ExternalOrderID, "", statuses); err != nil {
			return nil, err
		}
	}

	if req.SaleDate.IsZero() {
		req.SaleDate = model.Today()
	}
	req.ID = ""
	req.Status = model.ManualCommissionPending
	req.SubmittedBy = actor
	req.ReviewedBy, req.RejectionReason, req.ReviewedAt = "", "", nil

	created, err := l.datasource.CreateManualCommission(ctx, req)
	if err != nil {
		return nil, err
	}
	l.invalidate()
	l.logAction(actor, "Submitted manual commission of %s for partner %s", money.FormatCurrency(created.Amount), created.PartnerID)
	return &created, nil
}

// ApproveManualCommission applies a pending request to its partner and marks it approved.
// The order id is checked again, since the same sale may have been imported after the
// request was submitted.
func (l *RTLedger) ApproveManualCommission(ctx context.Context, id string, actor string) (*model.ManualCommission, error) {
	mc, err := l.datasource.GetManualCommission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !mc.IsPending() {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("manual commission %s is already %s", id, mc.Status), nil)
	}

	if mc.ExternalOrderID != "" {
		if err := l.checkOrderFree(ctx, mc.ExternalOrderID, mc.ID, []string{model.ManualCommissionApproved}); err != nil {
			return nil, err
		}
	}

	batch := &model.ReconcileResult{
		Source: model.SourceManual,
		NewRecords: []model.NormalizedSale{{
			ExternalOrderID: mc.ExternalOrderID,
			PartnerID:       mc.PartnerID,
			Amount:          mc.Amount,
			SaleDate:        mc.SaleDate,
			Salesperson:     mc.Salesperson,
		}},
	}
	if _, err := l.ApplyBatch(ctx, batch, ApplyOptions{Actor: actor, SkipFile: true}); err != nil {
		return nil, err
	}

	reviewedAt := ptr.Time(time.Now())
	if err := l.datasource.UpdateManualCommissionStatus(ctx, mc.ID, model.ManualCommissionApproved, actor, "", reviewedAt); err != nil {
		return nil, err
	}

	mc.Status = model.ManualCommissionApproved
	mc.ReviewedBy = actor
	mc.ReviewedAt = reviewedAt
	l.invalidate()
	l.logAction(actor, "Approved manual commission %s of %s for partner %s", mc.ID, money.FormatCurrency(mc.Amount), mc.PartnerID)
	return mc, nil
}

// RejectManualCommission closes a pending request without touching balances.
func (l *RTLedger) RejectManualCommission(ctx context.Context, id, reason, actor string) (*model.ManualCommission, error) {
	mc, err := l.datasource.GetManualCommission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !mc.IsPending() {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("manual commission %s is already %s", id, mc.Status), nil)
	}

	reviewedAt := ptr.Time(time.Now())
	reason = strings.TrimSpace(reason)
	if err := l.datasource.UpdateManualCommissionStatus(ctx, mc.ID, model.ManualCommissionRejected, actor, reason, reviewedAt); err != nil {
		return nil, err
	}

	mc.Status = model.ManualCommissionRejected
	mc.ReviewedBy = actor
	mc.RejectionReason = reason
	mc.ReviewedAt = reviewedAt
	l.invalidate()
	l.logAction(actor, "Rejected manual commission %s for partner %s", mc.ID, mc.PartnerID)
	return mc, nil
}

func (l *RTLedger) ListManualCommissions(ctx context.Context) ([]model.ManualCommission, error) {
	return l.datasource.GetManualCommissions(ctx)
}
