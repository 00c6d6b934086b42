package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ManualCommissionPending  = "pending"
	ManualCommissionApproved = "approved"
	ManualCommissionRejected = "rejected"
)

// ManualCommission is a commission entered by hand that only reaches the partner
// balance once approved. Approved and rejected are terminal.
type ManualCommission struct {
	ID              string          `json:"id"`
	PartnerID       string          `json:"partner_id"`
	ExternalOrderID string          `json:"external_order_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	SaleDate        time.Time       `json:"sale_date"`
	Salesperson     string          `json:"salesperson,omitempty"`
	Justification   string          `json:"justification"`
	Status          string          `json:"status"`
	SubmittedBy     string          `json:"submitted_by,omitempty"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (m ManualCommission) IsPending() bool {
	return m.Status == ManualCommissionPending
}
