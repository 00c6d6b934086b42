package rtledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/internal/salesapi"
	"github.com/rtledger/rtledger/model"
)

func feedSale(orderID, partnerID, date, status string, amount interface{}) salesapi.Sale {
	return salesapi.Sale{
		salesapi.FieldOrderID:        orderID,
		salesapi.FieldPartnerID:      partnerID,
		salesapi.FieldPartnerName:    "Partner " + partnerID,
		salesapi.FieldAmount:         amount,
		salesapi.FieldCompletionDate: date,
		salesapi.FieldPaymentStatus:  status,
		salesapi.FieldSalesperson:    "Ana",
	}
}

func ledgerWithFeed(t *testing.T, ds *memStore, sales ...salesapi.Sale) (*RTLedger, *fakeFeed) {
	l, _ := newTestLedger(t, ds)
	feed := &fakeFeed{sales: sales}
	l.sales = feed
	return l, feed
}

func TestImportFromSalesAPIIsIdempotent(t *testing.T) {
	ds := newMemStore()
	l, _ := ledgerWithFeed(t, ds,
		feedSale("ORD-1", "10", "2024-03-09", "1", "1500,50"),
		feedSale("ORD-2", "11", "2024-03-10", "1", "300"),
	)
	ctx := context.Background()

	first, err := l.ImportFromSalesAPI(ctx, SalesFeedFilter{}, "ops")
	require.NoError(t, err)
	assert.Equal(t, 2, first.RecordsApplied)
	assert.ElementsMatch(t, []string{"10", "11"}, first.PartnersCreated)

	before := *ds.partner("10")

	second, err := l.ImportFromSalesAPI(ctx, SalesFeedFilter{}, "ops")
	require.NoError(t, err)
	assert.Zero(t, second.RecordsApplied)
	assert.ElementsMatch(t, []string{"ORD-1", "ORD-2"}, second.Duplicates)

	after := ds.partner("10")
	assert.Equal(t, before.SalesCount, after.SalesCount)
	assert.True(t, before.TotalSalesValue.Equal(after.TotalSalesValue))
	assert.True(t, before.AccruedCommission.Equal(after.AccruedCommission))
	assert.Equal(t, before.Points, after.Points)
}

func TestSalesFeedFilter(t *testing.T) {
	paid := "1"
	sale := feedSale("ORD-1", "10", "2024-03-09T15:04:05", "1", "10")

	tests := []struct {
		name   string
		filter SalesFeedFilter
		want   bool
	}{
		{"empty", SalesFeedFilter{}, true},
		{"partner match", SalesFeedFilter{PartnerID: "10"}, true},
		{"partner mismatch", SalesFeedFilter{PartnerID: "11"}, false},
		{"excluded", SalesFeedFilter{ExcludePartners: []string{"12", " 10 "}}, false},
		{"inside range", SalesFeedFilter{From: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)}, true},
		{"before range", SalesFeedFilter{From: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}, false},
		{"after range", SalesFeedFilter{To: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)}, false},
		{"paid only", SalesFeedFilter{PaidOnly: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.matches(sale, paid))
		})
	}

	unpaid := feedSale("ORD-2", "10", "2024-03-09", "0", "10")
	assert.False(t, SalesFeedFilter{PaidOnly: true}.matches(unpaid, paid))
	undated := feedSale("ORD-3", "10", "", "1", "10")
	assert.False(t, SalesFeedFilter{From: time.Now()}.matches(undated, paid))
}

func TestImportFromSalesAPIFilters(t *testing.T) {
	ds := newMemStore()
	l, feed := ledgerWithFeed(t, ds,
		feedSale("ORD-1", "10", "2024-03-09", "1", "100"),
		feedSale("ORD-2", "11", "2024-03-09", "1", "100"),
		feedSale("ORD-3", "12", "2024-03-09", "0", "100"),
	)

	result, err := l.ImportFromSalesAPI(context.Background(), SalesFeedFilter{ExcludePartners: []string{"11"}, PaidOnly: true, Refresh: true}, "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsApplied)
	assert.Equal(t, []string{"10"}, result.PartnersCreated)
	assert.Equal(t, 1, feed.refreshes)
}

func TestPreviewSalesAPIImport(t *testing.T) {
	ds := newMemStore()
	l, _ := ledgerWithFeed(t, ds, feedSale("ORD-1", "10", "2024-03-09", "1", "100"))

	preview, err := l.PreviewSalesAPIImport(context.Background(), SalesFeedFilter{})
	require.NoError(t, err)
	require.Len(t, preview.UnknownPartners, 1)
	assert.Equal(t, "Partner 10", preview.UnknownPartners[0].Name)
	assert.Nil(t, ds.partner("10"))
}

func TestImportSingleSale(t *testing.T) {
	ds := newMemStore()
	l, _ := ledgerWithFeed(t, ds,
		feedSale("ORD-1", "10", "2024-03-09", "1", "2000"),
		feedSale("ORD-2", "", "2024-03-09", "1", "2000"),
	)
	ctx := context.Background()

	result, err := l.ImportSingleSale(ctx, " ORD-1 ", "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsApplied)
	assert.Empty(t, result.FileID)
	assert.Equal(t, int64(2), ds.partner("10").Points)

	_, err = l.ImportSingleSale(ctx, "ORD-1", "ops")
	assert.True(t, apierror.Is(err, apierror.ErrDuplicate))

	_, err = l.ImportSingleSale(ctx, "ORD-404", "ops")
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))

	_, err = l.ImportSingleSale(ctx, "ORD-2", "ops")
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))

	_, err = l.ImportSingleSale(ctx, "", "ops")
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))
}

func TestExternalSalesHistory(t *testing.T) {
	l, _ := ledgerWithFeed(t, newMemStore(),
		feedSale("ORD-1", "10", "2024-03-09", "1", "100"),
		feedSale("ORD-2", "10", "2024-03-10", "0", "100"),
		feedSale("ORD-3", "11", "2024-03-10", "1", "100"),
	)

	sales, err := l.ExternalSalesHistory(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "ORD-1", sales[0].Get(salesapi.FieldOrderID))
}

func TestSalesHistory(t *testing.T) {
	ds := newMemStore()
	require.NoError(t, ds.RecordSaleImports(context.Background(), []model.SaleImport{
		{ExternalOrderID: "ORD-1", PartnerID: "10", SaleDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ExternalOrderID: "ORD-2", PartnerID: "10", SaleDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{ExternalOrderID: "ORD-3", PartnerID: "11"},
	}))
	l, _ := newTestLedger(t, ds)

	history, err := l.SalesHistory(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "ORD-2", history[0].ExternalOrderID)
}

func TestFetchSalesFeedError(t *testing.T) {
	l, _ := newTestLedger(t, newMemStore())
	l.sales = &fakeFeed{err: errors.New("sales api returned status 503")}

	_, err := l.FetchSalesFeed(context.Background(), true)
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.ErrBadRequest))
	assert.Contains(t, err.Error(), "503")
}
