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
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"

	"github.com/rtledger/rtledger/model"
)

func validateDateFormat(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return errors.New("invalid type for date")
	}
	if s == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return errors.New("please format the date as 'YYYY-MM-DD' (e.g., 2024-03-09)")
	}
	return nil
}

func rateInRange(value interface{}) error {
	var rate decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		rate = v
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		rate = *v
	default:
		return errors.New("invalid type for commission rate")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("commission rate must be between 0 and 1")
	}
	return nil
}

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("invalid type for amount")
	}
	if !amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func (p *CreatePartner) ValidateCreatePartner() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Email, is.EmailFormat),
		validation.Field(&p.CommissionRate, validation.By(rateInRange)),
	)
}

func (p *UpdatePartner) ValidateUpdatePartner() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.NilOrNotEmpty),
		validation.Field(&p.Email, validation.When(p.Email != nil && *p.Email != "", is.EmailFormat)),
		validation.Field(&p.CommissionRate, validation.By(rateInRange)),
	)
}

func (s *AddSaleValue) ValidateAddSaleValue() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Amount, validation.By(positiveAmount)),
	)
}

func (a *AdjustPoints) ValidateAdjustPoints() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Delta, validation.Required.Error("delta cannot be zero")),
	)
}

func (s *SubmitManualCommission) ValidateSubmitManualCommission() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.PartnerID, validation.Required),
		validation.Field(&s.Amount, validation.By(positiveAmount)),
		validation.Field(&s.SaleDate, validation.By(validateDateFormat)),
		validation.Field(&s.Justification, validation.Required),
	)
}

func (s *SinglePayout) ValidateSinglePayout() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.PartnerID, validation.Required),
		validation.Field(&s.Kind, validation.In(string(model.PayoutKindPayout), string(model.PayoutKindRedemption))),
	)
}

func (s *SetPayoutPaid) ValidateSetPayoutPaid() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Paid, validation.NotNil),
	)
}

func (u *UpdatePayoutAmount) ValidateUpdatePayoutAmount() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Amount, validation.NotNil, validation.By(func(value interface{}) error {
			amount, ok := value.(*decimal.Decimal)
			if ok && amount != nil && amount.IsNegative() {
				return errors.New("amount cannot be negative")
			}
			return nil
		})),
	)
}

func (r *AttachReceipt) ValidateAttachReceipt() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.URL, validation.Required, is.URL),
	)
}

func (s *SalesAPIImport) ValidateSalesAPIImport() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.From, validation.By(validateDateFormat)),
		validation.Field(&s.To, validation.By(validateDateFormat)),
	)
}
