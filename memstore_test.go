package rtledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

// memStore is an in-memory IDataSource with the same guards as the Postgres store.
// Setting fail[method] makes that method return the error.
type memStore struct {
	mu          sync.Mutex
	features    model.FeatureSet
	partners    map[string]*model.Partner
	ledger      map[string]model.SaleImport
	ledgerOrder []string
	manual      map[string]*model.ManualCommission
	manualOrder []string
	payouts     map[string]*model.Payout
	payoutOrder []string
	files       []model.ImportedFile
	logs        []model.ActionLog
	fail        map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		features: model.FeatureSet{AccruedCommission: true, LifetimePaidCommission: true},
		partners: map[string]*model.Partner{},
		ledger:   map[string]model.SaleImport{},
		manual:   map[string]*model.ManualCommission{},
		payouts:  map[string]*model.Payout{},
		fail:     map[string]error{},
	}
}

func (m *memStore) failure(method string) error {
	return m.fail[method]
}

func (m *memStore) partner(id string) *model.Partner {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func notFound(what, id string) error {
	return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("%s with ID '%s' not found", what, id), nil)
}

func (m *memStore) CreatePartner(_ context.Context, p model.Partner) (model.Partner, error) {
	if err := m.failure("CreatePartner"); err != nil {
		return model.Partner{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.partners[p.ID]; ok {
		return model.Partner{}, apierror.NewAPIError(apierror.ErrConflict, "partner already exists", nil)
	}
	p.CreatedAt = time.Now()
	cp := p
	m.partners[p.ID] = &cp
	return p, nil
}

func (m *memStore) GetPartner(_ context.Context, id string, _ model.FeatureSet) (*model.Partner, error) {
	if err := m.failure("GetPartner"); err != nil {
		return nil, err
	}
	p := m.partner(id)
	if p == nil {
		return nil, notFound("partner", id)
	}
	return p, nil
}

func (m *memStore) GetAllPartners(_ context.Context, _ model.FeatureSet, sortBy string) ([]model.Partner, error) {
	if err := m.failure("GetAllPartners"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	out := make([]model.Partner, 0, len(m.partners))
	for _, p := range m.partners {
		out = append(out, *p)
	}
	m.mu.Unlock()

	desc := strings.HasPrefix(sortBy, "-")
	field := strings.TrimPrefix(sortBy, "-")
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if field == "accrued_commission" && !a.AccruedCommission.Equal(b.AccruedCommission) {
			if desc {
				return a.AccruedCommission.GreaterThan(b.AccruedCommission)
			}
			return a.AccruedCommission.LessThan(b.AccruedCommission)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (m *memStore) GetPartnersByIDs(_ context.Context, ids []string, _ model.FeatureSet) ([]model.Partner, error) {
	if err := m.failure("GetPartnersByIDs"); err != nil {
		return nil, err
	}
	var out []model.Partner
	for _, id := range ids {
		if p := m.partner(id); p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) UpdatePartner(_ context.Context, p *model.Partner) error {
	if err := m.failure("UpdatePartner"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.partners[p.ID]; !ok {
		return notFound("partner", p.ID)
	}
	cp := *p
	m.partners[p.ID] = &cp
	return nil
}

func (m *memStore) ApplyPartnerDelta(_ context.Context, delta model.PartnerDelta, features model.FeatureSet) error {
	if err := m.failure("ApplyPartnerDelta"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[delta.PartnerID]
	if !ok {
		return notFound("partner", delta.PartnerID)
	}
	p.SalesCount += delta.SalesCount
	p.TotalSalesValue = p.TotalSalesValue.Add(delta.SalesValue)
	p.Points += delta.Points
	if features.AccrualEnabled() {
		p.AccruedCommission = p.AccruedCommission.Add(delta.Accrued)
	}
	return nil
}

func (m *memStore) SettlePartnerAccrual(_ context.Context, id string, amount decimal.Decimal) error {
	if err := m.failure("SettlePartnerAccrual"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[id]
	if !ok || p.AccruedCommission.LessThan(amount) {
		return apierror.NewAPIError(apierror.ErrConflict, "partner accrual is lower than the payout", nil)
	}
	p.AccruedCommission = p.AccruedCommission.Sub(amount)
	p.LifetimePaidCommission = p.LifetimePaidCommission.Add(amount)
	return nil
}

func (m *memStore) AdjustPartnerPoints(_ context.Context, id string, delta int64) (int64, error) {
	if err := m.failure("AdjustPartnerPoints"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[id]
	if !ok {
		return 0, notFound("partner", id)
	}
	p.Points += delta
	if p.Points < 0 {
		p.Points = 0
	}
	return p.Points, nil
}

func (m *memStore) DeletePartner(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.partners[id]; !ok {
		return notFound("partner", id)
	}
	delete(m.partners, id)
	return nil
}

func (m *memStore) DeleteAllPartners(_ context.Context) (int64, error) {
	if err := m.failure("DeleteAllPartners"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.partners))
	m.partners = map[string]*model.Partner{}
	return n, nil
}

func (m *memStore) FindExistingOrderIDs(_ context.Context, orderIDs []string) ([]string, error) {
	if err := m.failure("FindExistingOrderIDs"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range orderIDs {
		if _, ok := m.ledger[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStore) OrderExists(_ context.Context, orderID string) (bool, error) {
	if err := m.failure("OrderExists"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ledger[orderID]
	return ok, nil
}

func (m *memStore) RecordSaleImports(_ context.Context, entries []model.SaleImport) error {
	if err := m.failure("RecordSaleImports"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if _, ok := m.ledger[e.ExternalOrderID]; ok {
			continue
		}
		m.ledger[e.ExternalOrderID] = e
		m.ledgerOrder = append(m.ledgerOrder, e.ExternalOrderID)
	}
	return nil
}

func (m *memStore) GetSalesByPartner(_ context.Context, partnerID string) ([]model.SaleImport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.SaleImport{}
	for _, id := range m.ledgerOrder {
		if e := m.ledger[id]; e.PartnerID == partnerID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SaleDate.After(out[j].SaleDate) })
	return out, nil
}

func (m *memStore) GetLatestSalespeople(_ context.Context, partnerIDs []string) (map[string]string, error) {
	if err := m.failure("GetLatestSalespeople"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	latest := map[string]time.Time{}
	for _, id := range m.ledgerOrder {
		e := m.ledger[id]
		for _, pid := range partnerIDs {
			if e.PartnerID == pid && e.Salesperson != "" && !e.SaleDate.Before(latest[pid]) {
				latest[pid] = e.SaleDate
				out[pid] = e.Salesperson
			}
		}
	}
	return out, nil
}

func (m *memStore) CreateManualCommission(_ context.Context, mc model.ManualCommission) (model.ManualCommission, error) {
	if err := m.failure("CreateManualCommission"); err != nil {
		return model.ManualCommission{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mc.ID = model.GenerateUUIDWithSuffix("mcr")
	mc.CreatedAt = time.Now()
	cp := mc
	m.manual[mc.ID] = &cp
	m.manualOrder = append(m.manualOrder, mc.ID)
	return mc, nil
}

func (m *memStore) GetManualCommission(_ context.Context, id string) (*model.ManualCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.manual[id]
	if !ok {
		return nil, notFound("manual commission", id)
	}
	cp := *mc
	return &cp, nil
}

func (m *memStore) GetManualCommissions(_ context.Context) ([]model.ManualCommission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ManualCommission{}
	for i := len(m.manualOrder) - 1; i >= 0; i-- {
		out = append(out, *m.manual[m.manualOrder[i]])
	}
	return out, nil
}

func (m *memStore) ManualOrderExists(_ context.Context, orderID, excludeID string, statuses []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mc := range m.manual {
		if mc.ExternalOrderID != orderID || mc.ID == excludeID {
			continue
		}
		for _, s := range statuses {
			if mc.Status == s {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memStore) UpdateManualCommissionStatus(_ context.Context, id, status, reviewedBy, reason string, reviewedAt *time.Time) error {
	if err := m.failure("UpdateManualCommissionStatus"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.manual[id]
	if !ok || mc.Status != model.ManualCommissionPending {
		return apierror.NewAPIError(apierror.ErrConflict, "manual commission is not pending", nil)
	}
	mc.Status, mc.ReviewedBy, mc.RejectionReason, mc.ReviewedAt = status, reviewedBy, reason, reviewedAt
	return nil
}

func (m *memStore) DeleteAllManualCommissions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.manual))
	m.manual, m.manualOrder = map[string]*model.ManualCommission{}, nil
	return n, nil
}

func (m *memStore) CreatePayouts(_ context.Context, payouts []model.Payout) error {
	if err := m.failure("CreatePayouts"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range payouts {
		cp := p
		m.payouts[p.ID] = &cp
		m.payoutOrder = append(m.payoutOrder, p.ID)
	}
	return nil
}

func (m *memStore) payout(id string) (*model.Payout, error) {
	p, ok := m.payouts[id]
	if !ok {
		return nil, notFound("payout", id)
	}
	return p, nil
}

func (m *memStore) GetPayout(_ context.Context, id string) (*model.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.payout(id)
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetPayouts(_ context.Context, kind model.PayoutKind) ([]model.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Payout{}
	for _, id := range m.payoutOrder {
		if p := m.payouts[id]; p.Kind == kind {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GenerationDate.After(out[j].GenerationDate) })
	return out, nil
}

func (m *memStore) GetPayoutsByDate(ctx context.Context, date time.Time, kind model.PayoutKind) ([]model.Payout, error) {
	all, _ := m.GetPayouts(ctx, kind)
	out := []model.Payout{}
	for _, p := range all {
		if model.DateOnly(p.GenerationDate).Equal(model.DateOnly(date)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) SetPayoutPaid(_ context.Context, id string, paid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.payout(id)
	if err != nil {
		return err
	}
	p.Paid = paid
	return nil
}

func (m *memStore) UpdatePayoutAmount(_ context.Context, id string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.payout(id)
	if err != nil {
		return err
	}
	p.Amount = amount
	return nil
}

func (m *memStore) AttachPayoutReceipt(_ context.Context, id string, receipt model.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.payout(id)
	if err != nil {
		return err
	}
	p.Receipt = &receipt
	return nil
}

func (m *memStore) SetReconciliationPending(_ context.Context, id string, pending bool) error {
	if err := m.failure("SetReconciliationPending"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.payout(id)
	if err != nil {
		return err
	}
	p.ReconciliationPending = pending
	return nil
}

func (m *memStore) DeletePayoutsByDate(_ context.Context, date time.Time, kind model.PayoutKind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	var kept []string
	for _, id := range m.payoutOrder {
		p := m.payouts[id]
		if p.Kind == kind && model.DateOnly(p.GenerationDate).Equal(model.DateOnly(date)) {
			delete(m.payouts, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	m.payoutOrder = kept
	return n, nil
}

func (m *memStore) DeleteAllPayouts(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.payouts))
	m.payouts, m.payoutOrder = map[string]*model.Payout{}, nil
	return n, nil
}

func (m *memStore) SaveImportedFile(_ context.Context, file model.ImportedFile) (model.ImportedFile, error) {
	if err := m.failure("SaveImportedFile"); err != nil {
		return model.ImportedFile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	file.ID = model.GenerateUUIDWithSuffix("file")
	file.ImportDate = time.Now()
	m.files = append(m.files, file)
	return file, nil
}

func (m *memStore) GetImportedFiles(_ context.Context) ([]model.ImportedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ImportedFile, 0, len(m.files))
	for i := len(m.files) - 1; i >= 0; i-- {
		f := m.files[i]
		f.Content = nil
		out = append(out, f)
	}
	return out, nil
}

func (m *memStore) GetImportedFile(_ context.Context, id string) (*model.ImportedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.ID == id {
			cp := f
			return &cp, nil
		}
	}
	return nil, notFound("imported file", id)
}

func (m *memStore) DeleteAllImportedFiles(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.files))
	m.files = nil
	return n, nil
}

func (m *memStore) RecordActionLog(_ context.Context, entry model.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memStore) GetActionLogs(_ context.Context, limit int) ([]model.ActionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ActionLog{}
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}

func (m *memStore) ClearActionLogs(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = nil
	return nil
}

func (m *memStore) DetectFeatures(_ context.Context) (model.FeatureSet, error) {
	return m.features, nil
}
