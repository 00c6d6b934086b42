package rtledger

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rtledger/rtledger/config"
	"github.com/rtledger/rtledger/database"
	"github.com/rtledger/rtledger/internal/salesapi"
	"github.com/rtledger/rtledger/model"
)

var _ database.IDataSource = (*memStore)(nil)

type recordingSink struct {
	mu      sync.Mutex
	entries []model.ActionLog
}

func (s *recordingSink) Record(entry model.ActionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) descriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Description
	}
	return out
}

type fakeFeed struct {
	sales       []salesapi.Sale
	err         error
	refreshes   int
	invalidated int
}

func (f *fakeFeed) FetchSales(_ context.Context, refresh bool) ([]salesapi.Sale, error) {
	if refresh {
		f.refreshes++
	}
	return f.sales, f.err
}

func (f *fakeFeed) Invalidate(_ context.Context) error {
	f.invalidated++
	return nil
}

// newTestLedger wires a ledger over ds with default commission settings and a recording
// audit sink.
func newTestLedger(t *testing.T, ds database.IDataSource) (*RTLedger, *recordingSink) {
	t.Helper()
	config.MockConfig(&config.Configuration{})
	conf, err := config.Fetch()
	require.NoError(t, err)

	features, err := ds.DetectFeatures(context.Background())
	require.NoError(t, err)

	sink := &recordingSink{}
	l := &RTLedger{
		datasource: ds,
		config:     conf,
		features:   features,
		sales:      &fakeFeed{},
		audit:      sink,
	}
	l.state = newStateStore(l.loadState)
	return l, sink
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedPartner(t *testing.T, ds *memStore, id, name string, accrued string) {
	t.Helper()
	_, err := ds.CreatePartner(context.Background(), model.Partner{
		ID:                     id,
		Name:                   name,
		CommissionRate:         dec("0.05"),
		TotalSalesValue:        decimal.Zero,
		AccruedCommission:      dec(accrued),
		LifetimePaidCommission: decimal.Zero,
	})
	require.NoError(t, err)
}

func saleRow(orderID, partnerID, partnerName string, amount interface{}) model.RawRow {
	return model.RawRow{
		salesapi.FieldOrderID:        orderID,
		salesapi.FieldPartnerID:      partnerID,
		salesapi.FieldPartnerName:    partnerName,
		salesapi.FieldAmount:         amount,
		salesapi.FieldSalesperson:    "Ana",
		salesapi.FieldCompletionDate: "2024-03-09",
	}
}
