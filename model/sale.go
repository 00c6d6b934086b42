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
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one row of an uploaded sheet or of the sales feed, keyed by source column.
type RawRow map[string]interface{}

// ImportSource tells where a batch of sales came from.
type ImportSource string

const (
	SourceSpreadsheet ImportSource = "spreadsheet"
	SourceSalesAPI    ImportSource = "sales_api"
	SourceManual      ImportSource = "manual"
)

// SaleImport is an entry of the append-only ledger of external order ids that were
// already applied to a partner's balance.
type SaleImport struct {
	ExternalOrderID string          `json:"external_order_id"`
	PartnerID       string          `json:"partner_id"`
	Amount          decimal.Decimal `json:"amount"`
	SaleDate        time.Time       `json:"sale_date"`
	Salesperson     string          `json:"salesperson,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NormalizedSale is a raw row after the column mapping and number parsing were applied.
type NormalizedSale struct {
	ExternalOrderID string          `json:"external_order_id,omitempty"`
	PartnerID       string          `json:"partner_id"`
	PartnerName     string          `json:"partner_name,omitempty"`
	CustomerName    string          `json:"customer_name,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	SaleDate        time.Time       `json:"sale_date"`
	Salesperson     string          `json:"salesperson,omitempty"`
	Store           string          `json:"store,omitempty"`
	Raw             RawRow          `json:"-"`
}

// ReconcileResult is the outcome of reconciling a batch against the ledger.
type ReconcileResult struct {
	Source     ImportSource     `json:"source"`
	NewRecords []NormalizedSale `json:"new_records"`
	Duplicates []string         `json:"duplicates"`
	Skipped    int              `json:"skipped"`
}

// ImportPreview is a reconcile result plus the partners that would be created when applied.
type ImportPreview struct {
	*ReconcileResult
	UnknownPartners []Partner `json:"unknown_partners"`
}

// ApplyResult reports what an applied batch changed.
type ApplyResult struct {
	RecordsApplied  int               `json:"records_applied"`
	PartnersCreated []string          `json:"partners_created"`
	PartnersUpdated []string          `json:"partners_updated"`
	Failed          map[string]string `json:"failed,omitempty"`
	Duplicates      []string          `json:"duplicates,omitempty"`
	LedgerWarning   string            `json:"ledger_warning,omitempty"`
	FileID          string            `json:"file_id,omitempty"`
}
