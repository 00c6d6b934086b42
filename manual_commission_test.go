package rtledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

func TestSubmitManualCommissionRejectsLedgerOrder(t *testing.T) {
	ds := newMemStore()
	seedPartner(t, ds, "A", "Ana", "0")
	require.NoError(t, ds.RecordSaleImports(context.Background(), []model.SaleImport{{ExternalOrderID: "ORD-1", PartnerID: "A"}}))
	l, _ := newTestLedger(t, ds)

	_, err := l.SubmitManualCommission(context.Background(), model.ManualCommission{
		PartnerID:       "A",
		ExternalOrderID: "ORD-1",
		Amount:          dec("500"),
		Justification:   "sale closed at the store",
	}, "ops")
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.ErrDuplicate))

	requests, err := ds.GetManualCommissions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestApproveManualCommissionRechecksLedger(t *testing.T) {
	ds := newMemStore()
	seedPartner(t, ds, "A", "Ana", "0")
	l, _ := newTestLedger(t, ds)
	ctx := context.Background()

	mc, err := l.SubmitManualCommission(ctx, model.ManualCommission{PartnerID: "A", ExternalOrderID: "ORD-1", Amount: dec("500")}, "seller")
	require.NoError(t, err)
	assert.Equal(t, model.ManualCommissionPending, mc.Status)
	assert.Equal(t, "seller", mc.SubmittedBy)
	assert.Equal(t, model.Today(), mc.SaleDate)

	// the same order arrives through an import before the request is reviewed
	require.NoError(t, ds.RecordSaleImports(ctx, []model.SaleImport{{ExternalOrderID: "ORD-1", PartnerID: "A"}}))

	_, err = l.ApproveManualCommission(ctx, mc.ID, "manager")
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.ErrDuplicate))

	stored, err := ds.GetManualCommission(ctx, mc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ManualCommissionPending, stored.Status)
	assert.Zero(t, ds.partner("A").SalesCount)
}

func TestApproveManualCommissionAppliesBalance(t *testing.T) {
	ds := newMemStore()
	seedPartner(t, ds, "A", "Ana", "0")
	l, sink := newTestLedger(t, ds)
	ctx := context.Background()

	mc, err := l.SubmitManualCommission(ctx, model.ManualCommission{PartnerID: "A", ExternalOrderID: "ORD-7", Amount: dec("2500"), Salesperson: "Carlos"}, "seller")
	require.NoError(t, err)

	approved, err := l.ApproveManualCommission(ctx, mc.ID, "manager")
	require.NoError(t, err)
	assert.Equal(t, model.ManualCommissionApproved, approved.Status)
	assert.Equal(t, "manager", approved.ReviewedBy)
	require.NotNil(t, approved.ReviewedAt)

	p := ds.partner("A")
	assert.Equal(t, int64(1), p.SalesCount)
	assert.Equal(t, int64(2), p.Points)
	assert.True(t, dec("125").Equal(p.AccruedCommission))

	exists, err := ds.OrderExists(ctx, "ORD-7")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = l.ApproveManualCommission(ctx, mc.ID, "manager")
	assert.True(t, apierror.Is(err, apierror.ErrConflict))
	_, err = l.RejectManualCommission(ctx, mc.ID, "late", "manager")
	assert.True(t, apierror.Is(err, apierror.ErrConflict))

	assert.Contains(t, sink.descriptions(), "Approved manual commission "+mc.ID+" of R$ 2.500,00 for partner A")
}

func TestSubmitManualCommissionValidation(t *testing.T) {
	ds := newMemStore()
	seedPartner(t, ds, "A", "Ana", "0")
	l, _ := newTestLedger(t, ds)
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.ManualCommission
		code apierror.ErrorCode
	}{
		{"missing partner", model.ManualCommission{Amount: dec("10")}, apierror.ErrInvalidInput},
		{"zero amount", model.ManualCommission{PartnerID: "A"}, apierror.ErrInvalidInput},
		{"negative amount", model.ManualCommission{PartnerID: "A", Amount: dec("-10")}, apierror.ErrInvalidInput},
		{"unknown partner", model.ManualCommission{PartnerID: "Q", Amount: dec("10")}, apierror.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.SubmitManualCommission(ctx, tt.req, "ops")
			assert.True(t, apierror.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestSubmitManualCommissionPendingOrderTaken(t *testing.T) {
	ds := newMemStore()
	seedPartner(t, ds, "A", "Ana", "0")
	l, _ := newTestLedger(t, ds)
	ctx := context.Background()

	first, err := l.SubmitManualCommission(ctx, model.ManualCommission{PartnerID: "A", ExternalOrderID: "ORD-2", Amount: dec("10")}, "ops")
	require.NoError(t, err)

	_, err = l.SubmitManualCommission(ctx, model.ManualCommission{PartnerID: "A", ExternalOrderID: "ORD-2", Amount: dec("10")}, "ops")
	assert.True(t, apierror.Is(err, apierror.ErrDuplicate))

	// a rejected request frees the order id
	_, err = l.RejectManualCommission(ctx, first.ID, "wrong partner", "manager")
	require.NoError(t, err)
	_, err = l.SubmitManualCommission(ctx, model.ManualCommission{PartnerID: "A", ExternalOrderID: "ORD-2", Amount: dec("10")}, "ops")
	assert.NoError(t, err)
}

func TestRejectManualCommission(t *testing.T) {
	ds := newMemStore()
	seedPartner(t, ds, "A", "Ana", "0")
	l, _ := newTestLedger(t, ds)
	ctx := context.Background()

	mc, err := l.SubmitManualCommission(ctx, model.ManualCommission{PartnerID: "A", Amount: dec("10")}, "ops")
	require.NoError(t, err)

	rejected, err := l.RejectManualCommission(ctx, mc.ID, "  no proof  ", "manager")
	require.NoError(t, err)
	assert.Equal(t, model.ManualCommissionRejected, rejected.Status)
	assert.Equal(t, "no proof", rejected.RejectionReason)
	assert.Zero(t, ds.partner("A").SalesCount)

	list, err := l.ListManualCommissions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.ManualCommissionRejected, list[0].Status)
}
