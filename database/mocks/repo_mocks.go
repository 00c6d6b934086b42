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
package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/rtledger/rtledger/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Partner methods

func (m *MockDataSource) CreatePartner(ctx context.Context, p model.Partner) (model.Partner, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(model.Partner), args.Error(1)
}

func (m *MockDataSource) GetPartner(ctx context.Context, id string, features model.FeatureSet) (*model.Partner, error) {
	args := m.Called(ctx, id, features)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Partner), args.Error(1)
}

func (m *MockDataSource) GetAllPartners(ctx context.Context, features model.FeatureSet, sortBy string) ([]model.Partner, error) {
	args := m.Called(ctx, features, sortBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Partner), args.Error(1)
}

func (m *MockDataSource) GetPartnersByIDs(ctx context.Context, ids []string, features model.FeatureSet) ([]model.Partner, error) {
	args := m.Called(ctx, ids, features)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Partner), args.Error(1)
}

func (m *MockDataSource) UpdatePartner(ctx context.Context, p *model.Partner) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockDataSource) ApplyPartnerDelta(ctx context.Context, delta model.PartnerDelta, features model.FeatureSet) error {
	args := m.Called(ctx, delta, features)
	return args.Error(0)
}

func (m *MockDataSource) SettlePartnerAccrual(ctx context.Context, id string, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockDataSource) AdjustPartnerPoints(ctx context.Context, id string, delta int64) (int64, error) {
	args := m.Called(ctx, id, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) DeletePartner(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) DeleteAllPartners(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Sale ledger methods

func (m *MockDataSource) FindExistingOrderIDs(ctx context.Context, orderIDs []string) ([]string, error) {
	args := m.Called(ctx, orderIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDataSource) OrderExists(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) RecordSaleImports(ctx context.Context, entries []model.SaleImport) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockDataSource) GetSalesByPartner(ctx context.Context, partnerID string) ([]model.SaleImport, error) {
	args := m.Called(ctx, partnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SaleImport), args.Error(1)
}

func (m *MockDataSource) GetLatestSalespeople(ctx context.Context, partnerIDs []string) (map[string]string, error) {
	args := m.Called(ctx, partnerIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// Manual commission methods

func (m *MockDataSource) CreateManualCommission(ctx context.Context, mc model.ManualCommission) (model.ManualCommission, error) {
	args := m.Called(ctx, mc)
	return args.Get(0).(model.ManualCommission), args.Error(1)
}

func (m *MockDataSource) GetManualCommission(ctx context.Context, id string) (*model.ManualCommission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ManualCommission), args.Error(1)
}

func (m *MockDataSource) GetManualCommissions(ctx context.Context) ([]model.ManualCommission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ManualCommission), args.Error(1)
}

func (m *MockDataSource) ManualOrderExists(ctx context.Context, orderID, excludeID string, statuses []string) (bool, error) {
	args := m.Called(ctx, orderID, excludeID, statuses)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) UpdateManualCommissionStatus(ctx context.Context, id, status, reviewedBy, reason string, reviewedAt *time.Time) error {
	args := m.Called(ctx, id, status, reviewedBy, reason, reviewedAt)
	return args.Error(0)
}

func (m *MockDataSource) DeleteAllManualCommissions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Payout methods

func (m *MockDataSource) CreatePayouts(ctx context.Context, payouts []model.Payout) error {
	args := m.Called(ctx, payouts)
	return args.Error(0)
}

func (m *MockDataSource) GetPayout(ctx context.Context, id string) (*model.Payout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payout), args.Error(1)
}

func (m *MockDataSource) GetPayouts(ctx context.Context, kind model.PayoutKind) ([]model.Payout, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Payout), args.Error(1)
}

func (m *MockDataSource) GetPayoutsByDate(ctx context.Context, date time.Time, kind model.PayoutKind) ([]model.Payout, error) {
	args := m.Called(ctx, date, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Payout), args.Error(1)
}

func (m *MockDataSource) SetPayoutPaid(ctx context.Context, id string, paid bool) error {
	args := m.Called(ctx, id, paid)
	return args.Error(0)
}

func (m *MockDataSource) UpdatePayoutAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockDataSource) AttachPayoutReceipt(ctx context.Context, id string, receipt model.Receipt) error {
	args := m.Called(ctx, id, receipt)
	return args.Error(0)
}

func (m *MockDataSource) SetReconciliationPending(ctx context.Context, id string, pending bool) error {
	args := m.Called(ctx, id, pending)
	return args.Error(0)
}

func (m *MockDataSource) DeletePayoutsByDate(ctx context.Context, date time.Time, kind model.PayoutKind) (int64, error) {
	args := m.Called(ctx, date, kind)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDataSource) DeleteAllPayouts(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Imported file methods

func (m *MockDataSource) SaveImportedFile(ctx context.Context, file model.ImportedFile) (model.ImportedFile, error) {
	args := m.Called(ctx, file)
	return args.Get(0).(model.ImportedFile), args.Error(1)
}

func (m *MockDataSource) GetImportedFiles(ctx context.Context) ([]model.ImportedFile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ImportedFile), args.Error(1)
}

func (m *MockDataSource) GetImportedFile(ctx context.Context, id string) (*model.ImportedFile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportedFile), args.Error(1)
}

func (m *MockDataSource) DeleteAllImportedFiles(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Action log methods

func (m *MockDataSource) RecordActionLog(ctx context.Context, entry model.ActionLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDataSource) GetActionLogs(ctx context.Context, limit int) ([]model.ActionLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ActionLog), args.Error(1)
}

func (m *MockDataSource) ClearActionLogs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDataSource) DetectFeatures(ctx context.Context) (model.FeatureSet, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.FeatureSet), args.Error(1)
}
