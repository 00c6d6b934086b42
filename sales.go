package rtledger

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/internal/money"
	"github.com/rtledger/rtledger/internal/salesapi"
	"github.com/rtledger/rtledger/model"
)

// SalesFeedFilter narrows a sales API import. Zero dates leave that side of the range open.
type SalesFeedFilter struct {
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	PartnerID       string    `json:"partner_id,omitempty"`
	ExcludePartners []string  `json:"exclude_partners,omitempty"`
	// PaidOnly keeps the sales whose payment status is the configured paid status.
	PaidOnly bool `json:"paid_only"`
	Refresh  bool `json:"refresh"`
}

func (f SalesFeedFilter) matches(sale salesapi.Sale, paidStatus string) bool {
	partnerID := sale.Get(salesapi.FieldPartnerID)
	if f.PartnerID != "" && partnerID != f.PartnerID {
		return false
	}
	for _, excluded := range f.ExcludePartners {
		if strings.TrimSpace(excluded) == partnerID {
			return false
		}
	}
	if f.PaidOnly && sale.Get(salesapi.FieldPaymentStatus) != paidStatus {
		return false
	}

	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	date, ok := money.ParseDate(sale.Get(salesapi.FieldCompletionDate))
	if !ok {
		return false
	}
	date = model.DateOnly(date)
	if !f.From.IsZero() && date.Before(model.DateOnly(f.From)) {
		return false
	}
	if !f.To.IsZero() && date.After(model.DateOnly(f.To)) {
		return false
	}
	return true
}

func (l *RTLedger) fetchSales(ctx context.Context, refresh bool) ([]salesapi.Sale, error) {
	sales, err := l.sales.FetchSales(ctx, refresh)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "could not read the sales api: "+err.Error(), err)
	}
	return sales, nil
}

// FetchSalesFeed returns the whole sales feed. refresh bypasses the feed cache.
func (l *RTLedger) FetchSalesFeed(ctx context.Context, refresh bool) ([]salesapi.Sale, error) {
	return l.fetchSales(ctx, refresh)
}

// SalesHistory returns the ledger entries of a partner, newest sale first.
func (l *RTLedger) SalesHistory(ctx context.Context, partnerID string) ([]model.SaleImport, error) {
	return l.datasource.GetSalesByPartner(ctx, partnerID)
}

// ExternalSalesHistory returns the paid feed sales of a partner.
func (l *RTLedger) ExternalSalesHistory(ctx context.Context, partnerID string) ([]salesapi.Sale, error) {
	sales, err := l.fetchSales(ctx, false)
	if err != nil {
		return nil, err
	}
	return salesapi.FilterPaid(sales, partnerID, l.config.SalesAPI.PaidStatus), nil
}

func (l *RTLedger) filteredSalesRows(ctx context.Context, filter SalesFeedFilter) ([]model.RawRow, error) {
	sales, err := l.fetchSales(ctx, filter.Refresh)
	if err != nil {
		return nil, err
	}
	rows := make([]model.RawRow, 0, len(sales))
	for _, s := range sales {
		if filter.matches(s, l.config.SalesAPI.PaidStatus) {
			rows = append(rows, model.RawRow(s))
		}
	}
	return rows, nil
}

// PreviewSalesAPIImport reconciles the filtered feed without applying it.
func (l *RTLedger) PreviewSalesAPIImport(ctx context.Context, filter SalesFeedFilter) (*model.ImportPreview, error) {
	rows, err := l.filteredSalesRows(ctx, filter)
	if err != nil {
		return nil, err
	}
	return l.PreviewImport(ctx, rows, SalesFeedMapping, model.SourceSalesAPI)
}

// ImportFromSalesAPI imports the filtered feed. Orders already in the ledger are reported
// as duplicates and leave balances untouched.
func (l *RTLedger) ImportFromSalesAPI(ctx context.Context, filter SalesFeedFilter, actor string) (*model.ApplyResult, error) {
	ctx, span := otel.Tracer("rtledger.import").Start(ctx, "ImportFromSalesAPI")
	defer span.End()

	rows, err := l.filteredSalesRows(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))

	res, err := l.Reconcile(ctx, rows, SalesFeedMapping, model.SourceSalesAPI)
	if err != nil {
		return nil, err
	}
	if len(res.NewRecords) == 0 {
		l.logAction(actor, "Sales API import found nothing new (%d duplicate(s))", len(res.Duplicates))
		return &model.ApplyResult{
			PartnersCreated: []string{},
			PartnersUpdated: []string{},
			Duplicates:      res.Duplicates,
		}, nil
	}
	return l.ApplyBatch(ctx, res, ApplyOptions{Actor: actor})
}

// ImportSingleSale imports one order of the feed by id.
func (l *RTLedger) ImportSingleSale(ctx context.Context, orderID, actor string) (*model.ApplyResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "order id is required", nil)
	}

	exists, err := l.datasource.OrderExists(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apierror.NewDuplicateError([]string{orderID})
	}

	sales, err := l.fetchSales(ctx, false)
	if err != nil {
		return nil, err
	}
	sale, ok := salesapi.FindOrder(sales, orderID)
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "order "+orderID+" not found in the sales api", nil)
	}

	res, err := l.Reconcile(ctx, []model.RawRow{model.RawRow(sale)}, SalesFeedMapping, model.SourceSalesAPI)
	if err != nil {
		return nil, err
	}
	if len(res.NewRecords) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "order "+orderID+" has no partner in the sales api", nil)
	}
	return l.ApplyBatch(ctx, res, ApplyOptions{Actor: actor, SkipFile: true})
}
