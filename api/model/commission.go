package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rtledger/rtledger"
	"github.com/rtledger/rtledger/model"
)

const dateLayout = "2006-01-02"

type SubmitManualCommission struct {
	PartnerID       string          `json:"partner_id"`
	ExternalOrderID string          `json:"external_order_id"`
	Amount          decimal.Decimal `json:"amount"`
	SaleDate        string          `json:"sale_date"`
	Salesperson     string          `json:"salesperson"`
	Justification   string          `json:"justification"`
}

type RejectManualCommission struct {
	Reason string `json:"reason"`
}

// SalesAPIImport selects the feed rows to import. Dates are YYYY-MM-DD.
type SalesAPIImport struct {
	From            string   `json:"from"`
	To              string   `json:"to"`
	PartnerID       string   `json:"partner_id"`
	ExcludePartners []string `json:"exclude_partners"`
	PaidOnly        bool     `json:"paid_only"`
	Refresh         bool     `json:"refresh"`
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, value)
	return t
}

func (s *SubmitManualCommission) ToManualCommission() model.ManualCommission {
	return model.ManualCommission{
		PartnerID:       s.PartnerID,
		ExternalOrderID: s.ExternalOrderID,
		Amount:          s.Amount,
		SaleDate:        parseDate(s.SaleDate),
		Salesperson:     s.Salesperson,
		Justification:   s.Justification,
	}
}

func (s *SalesAPIImport) ToFilter() rtledger.SalesFeedFilter {
	return rtledger.SalesFeedFilter{
		From:            parseDate(s.From),
		To:              parseDate(s.To),
		PartnerID:       s.PartnerID,
		ExcludePartners: s.ExcludePartners,
		PaidOnly:        s.PaidOnly,
		Refresh:         s.Refresh,
	}
}
