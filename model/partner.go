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

// Partner is a sales partner (architect) that earns commission on the sales attributed to it.
// AccruedCommission and LifetimePaidCommission are only meaningful when the store
// carries the accrual columns (see FeatureSet).
type Partner struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	Email                  string          `json:"email,omitempty"`
	Phone                  string          `json:"phone,omitempty"`
	PayoutKey              string          `json:"payout_key,omitempty"`
	PayoutKeyType          string          `json:"payout_key_type,omitempty"`
	SalesCount             int64           `json:"sales_count"`
	TotalSalesValue        decimal.Decimal `json:"total_sales_value"`
	Points                 int64           `json:"points"`
	CommissionRate         decimal.Decimal `json:"commission_rate"`
	AccruedCommission      decimal.Decimal `json:"accrued_commission"`
	LifetimePaidCommission decimal.Decimal `json:"lifetime_paid_commission"`
	CreatedAt              time.Time       `json:"created_at"`
}

// PartnerDelta is the aggregated balance change for one partner produced by a batch of sales.
type PartnerDelta struct {
	PartnerID  string          `json:"partner_id"`
	SalesCount int64           `json:"sales_count"`
	SalesValue decimal.Decimal `json:"sales_value"`
	Points     int64           `json:"points"`
	Accrued    decimal.Decimal `json:"accrued"`
}

// Add folds one sale into the delta.
func (d *PartnerDelta) Add(amount decimal.Decimal, points int64, commission decimal.Decimal) {
	d.SalesCount++
	d.SalesValue = d.SalesValue.Add(amount)
	d.Points += points
	d.Accrued = d.Accrued.Add(commission)
}

// PartnerSortFields lists the columns partners may be ordered by.
var PartnerSortFields = map[string]string{
	"name":                     "name",
	"sales_count":              "sales_count",
	"total_sales_value":        "total_sales_value",
	"points":                   "points",
	"accrued_commission":       "accrued_commission",
	"lifetime_paid_commission": "lifetime_paid_commission",
	"created_at":               "created_at",
}

// PartnerUpdate carries the editable partner fields. Nil fields are left unchanged.
type PartnerUpdate struct {
	Name           *string          `json:"name,omitempty"`
	Email          *string          `json:"email,omitempty"`
	Phone          *string          `json:"phone,omitempty"`
	PayoutKey      *string          `json:"payout_key,omitempty"`
	PayoutKeyType  *string          `json:"payout_key_type,omitempty"`
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty"`
}

type PartnerImportResult struct {
	Created []string          `json:"created"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed,omitempty"`
}
