package model

import (
	"github.com/shopspring/decimal"

	"github.com/rtledger/rtledger/model"
)

type CommitPayouts struct {
	PartnerIDs []string `json:"partner_ids"`
}

type SinglePayout struct {
	PartnerID string `json:"partner_id"`
	Kind      string `json:"kind"`
}

type SetPayoutPaid struct {
	Paid *bool `json:"paid"`
}

type UpdatePayoutAmount struct {
	Amount *decimal.Decimal `json:"amount"`
}

// AttachReceipt is the JSON form of a receipt, pointing at a stored document.
// Uploaded files go through the multipart form instead.
type AttachReceipt struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *SinglePayout) PayoutKind() model.PayoutKind {
	if s.Kind == "" {
		return model.PayoutKindPayout
	}
	return model.PayoutKind(s.Kind)
}

func (r *AttachReceipt) ToReceipt() model.Receipt {
	return model.Receipt{Name: r.Name, URL: r.URL}
}
