package model

import (
	"github.com/shopspring/decimal"

	"github.com/rtledger/rtledger/model"
)

type CreatePartner struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	PayoutKey      string          `json:"payout_key"`
	PayoutKeyType  string          `json:"payout_key_type"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

type UpdatePartner struct {
	Name           *string          `json:"name"`
	Email          *string          `json:"email"`
	Phone          *string          `json:"phone"`
	PayoutKey      *string          `json:"payout_key"`
	PayoutKeyType  *string          `json:"payout_key_type"`
	CommissionRate *decimal.Decimal `json:"commission_rate"`
}

type AddSaleValue struct {
	Amount decimal.Decimal `json:"amount"`
}

type AdjustPoints struct {
	Delta int64 `json:"delta"`
}

func (p *CreatePartner) ToPartner() model.Partner {
	return model.Partner{
		ID:             p.ID,
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Phone,
		PayoutKey:      p.PayoutKey,
		PayoutKeyType:  p.PayoutKeyType,
		CommissionRate: p.CommissionRate,
	}
}

func (p *UpdatePartner) ToPartnerUpdate() model.PartnerUpdate {
	return model.PartnerUpdate{
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Phone,
		PayoutKey:      p.PayoutKey,
		PayoutKeyType:  p.PayoutKeyType,
		CommissionRate: p.CommissionRate,
	}
}
