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

type PayoutKind string

const (
	PayoutKindPayout     PayoutKind = "payout"
	PayoutKindRedemption PayoutKind = "redemption"
)

func (k PayoutKind) Valid() bool {
	return k == PayoutKindPayout || k == PayoutKindRedemption
}

// Receipt is the proof of payment attached to a payout.
type Receipt struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Content []byte `json:"content,omitempty"`
}

// Payout is a payout or redemption generated from a partner's accrued commission.
// Salesperson is a snapshot taken at generation time.
type Payout struct {
	ID                    string          `json:"id"`
	PartnerID             string          `json:"partner_id"`
	PartnerName           string          `json:"partner_name"`
	Amount                decimal.Decimal `json:"amount"`
	Paid                  bool            `json:"paid"`
	GenerationDate        time.Time       `json:"generation_date"`
	Salesperson           string          `json:"salesperson,omitempty"`
	Kind                  PayoutKind      `json:"kind"`
	Receipt               *Receipt        `json:"receipt,omitempty"`
	ReconciliationPending bool            `json:"reconciliation_pending"`
	CreatedAt             time.Time       `json:"created_at"`
}

// PayoutBatch groups the payouts of one kind that share a generation date.
type PayoutBatch struct {
	GenerationDate time.Time       `json:"generation_date"`
	Kind           PayoutKind      `json:"kind"`
	Payouts        []Payout        `json:"payouts"`
	Total          decimal.Decimal `json:"total"`
	AllPaid        bool            `json:"all_paid"`
}

// PayoutCommitResult reports the outcome of committing a payout sweep.
type PayoutCommitResult struct {
	GenerationDate        time.Time `json:"generation_date"`
	Payouts               []Payout  `json:"payouts"`
	Skipped               []string  `json:"skipped,omitempty"`
	ReconciliationPending []string  `json:"reconciliation_pending,omitempty"`
}
