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

package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rtledger/rtledger/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	partner          // Interface for partner (architect) records
	saleLedger       // Interface for the imported sale ledger
	manualCommission // Interface for manual commission requests
	payout           // Interface for payout and redemption records
	importedFile     // Interface for imported file records
	actionLog        // Interface for the audit log
	features         // Interface for schema capability detection
}

// partner defines methods for handling partners. Methods that read or write the optional
// accrual columns take the feature set resolved at startup.
type partner interface {
	CreatePartner(ctx context.Context, p model.Partner) (model.Partner, error)                                 // Creates a new partner
	GetPartner(ctx context.Context, id string, features model.FeatureSet) (*model.Partner, error)              // Retrieves a partner by ID
	GetAllPartners(ctx context.Context, features model.FeatureSet, sortBy string) ([]model.Partner, error)     // Retrieves every partner
	GetPartnersByIDs(ctx context.Context, ids []string, features model.FeatureSet) ([]model.Partner, error)    // Retrieves partners by ID in one query
	UpdatePartner(ctx context.Context, p *model.Partner) error                                                 // Updates contact fields and commission rate
	ApplyPartnerDelta(ctx context.Context, delta model.PartnerDelta, features model.FeatureSet) error          // Increments the balance counters of a partner
	SettlePartnerAccrual(ctx context.Context, id string, amount decimal.Decimal) error                         // Moves amount from accrued to lifetime paid
	AdjustPartnerPoints(ctx context.Context, id string, delta int64) (int64, error)                            // Adds delta to points, clamped at zero
	DeletePartner(ctx context.Context, id string) error                                                        // Deletes a partner
	DeleteAllPartners(ctx context.Context) (int64, error)                                                      // Deletes every partner
}

// saleLedger defines methods for the append-only ledger of imported external sales.
type saleLedger interface {
	FindExistingOrderIDs(ctx context.Context, orderIDs []string) ([]string, error)         // Returns the subset of orderIDs already in the ledger
	OrderExists(ctx context.Context, orderID string) (bool, error)                         // Checks a single order id
	RecordSaleImports(ctx context.Context, entries []model.SaleImport) error               // Appends ledger entries
	GetSalesByPartner(ctx context.Context, partnerID string) ([]model.SaleImport, error)   // Ledger entries of a partner, newest first
	GetLatestSalespeople(ctx context.Context, partnerIDs []string) (map[string]string, error) // Salesperson of each partner's most recent sale
}

// manualCommission defines methods for manual commission requests.
type manualCommission interface {
	CreateManualCommission(ctx context.Context, mc model.ManualCommission) (model.ManualCommission, error)
	GetManualCommission(ctx context.Context, id string) (*model.ManualCommission, error)
	GetManualCommissions(ctx context.Context) ([]model.ManualCommission, error)
	ManualOrderExists(ctx context.Context, orderID, excludeID string, statuses []string) (bool, error)
	UpdateManualCommissionStatus(ctx context.Context, id, status, reviewedBy, reason string, reviewedAt *time.Time) error
	DeleteAllManualCommissions(ctx context.Context) (int64, error)
}

// payout defines methods for payout and redemption records.
type payout interface {
	CreatePayouts(ctx context.Context, payouts []model.Payout) error                                         // Inserts payouts in one transaction
	GetPayout(ctx context.Context, id string) (*model.Payout, error)                                         // Retrieves a payout with its receipt content
	GetPayouts(ctx context.Context, kind model.PayoutKind) ([]model.Payout, error)                           // Retrieves payouts of a kind, newest batch first
	GetPayoutsByDate(ctx context.Context, date time.Time, kind model.PayoutKind) ([]model.Payout, error)     // Retrieves one batch
	SetPayoutPaid(ctx context.Context, id string, paid bool) error                                           // Toggles the paid flag
	UpdatePayoutAmount(ctx context.Context, id string, amount decimal.Decimal) error                         // Manual amount correction
	AttachPayoutReceipt(ctx context.Context, id string, receipt model.Receipt) error                         // Stores the receipt
	SetReconciliationPending(ctx context.Context, id string, pending bool) error                             // Flags a payout whose partner settlement failed
	DeletePayoutsByDate(ctx context.Context, date time.Time, kind model.PayoutKind) (int64, error)           // Deletes a batch
	DeleteAllPayouts(ctx context.Context) (int64, error)                                                     // Deletes every payout
}

// importedFile defines methods for imported file records.
type importedFile interface {
	SaveImportedFile(ctx context.Context, file model.ImportedFile) (model.ImportedFile, error)
	GetImportedFiles(ctx context.Context) ([]model.ImportedFile, error) // Metadata only
	GetImportedFile(ctx context.Context, id string) (*model.ImportedFile, error)
	DeleteAllImportedFiles(ctx context.Context) (int64, error)
}

// actionLog defines methods for the audit log.
type actionLog interface {
	RecordActionLog(ctx context.Context, entry model.ActionLog) error
	GetActionLogs(ctx context.Context, limit int) ([]model.ActionLog, error)
	ClearActionLogs(ctx context.Context) error
}

type features interface {
	DetectFeatures(ctx context.Context) (model.FeatureSet, error)
}
