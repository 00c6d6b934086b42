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
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("payout")
	assert.True(t, strings.HasPrefix(id, "payout_"))
	assert.Len(t, id, len("payout_")+36)
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("payout"))
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 3, 9, 17, 45, 12, 99, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), DateOnly(in))
}

func TestPartnerDeltaAdd(t *testing.T) {
	d := PartnerDelta{PartnerID: "A1"}
	d.Add(decimal.NewFromInt(1500), 1, decimal.NewFromInt(75))
	d.Add(decimal.NewFromInt(500), 0, decimal.NewFromInt(25))

	assert.Equal(t, int64(2), d.SalesCount)
	assert.True(t, d.SalesValue.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, int64(1), d.Points)
	assert.True(t, d.Accrued.Equal(decimal.NewFromInt(100)))
}

func TestFeatureSet(t *testing.T) {
	assert.True(t, FeatureSet{AccruedCommission: true, LifetimePaidCommission: true}.PayoutsEnabled())
	assert.False(t, FeatureSet{AccruedCommission: true}.PayoutsEnabled())
	assert.False(t, FeatureSet{}.AccrualEnabled())
}

func TestPayoutKindValid(t *testing.T) {
	assert.True(t, PayoutKindPayout.Valid())
	assert.True(t, PayoutKindRedemption.Valid())
	assert.False(t, PayoutKind("refund").Valid())
}
