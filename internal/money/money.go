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

// Package money converts between display formatted amounts and decimals, both for the
// domestic currency format ("R$ 1.234,56") and for the sales feed, which sends amounts
// with a comma as decimal separator and no grouping.
//
// Parsing never fails: anything that cannot be read as a number is zero.
package money

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const currencySymbol = "R$"

// ParseCurrency reads a domestic currency string. Dots are thousands separators and
// the comma is the decimal separator; the "R$" prefix is optional.
func ParseCurrency(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSpace(strings.TrimPrefix(s, currencySymbol))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Neg()
	}
	return d
}

// ParseCurrencyValue reads a sheet cell. Numeric cells are taken as they are, text
// cells go through ParseCurrency.
func ParseCurrencyValue(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case string:
		return ParseCurrency(val)
	case nil:
		return decimal.Zero
	default:
		return numeric(val)
	}
}

// FormatCurrency renders d as "R$ 1.234,56". Negative values are rendered as "-R$ 1,00".
func FormatCurrency(d decimal.Decimal) string {
	return format(d, currencySymbol+" ")
}

// ParseAPINumber reads an amount from the sales feed. Strings have their first comma
// replaced by a dot before parsing.
func ParseAPINumber(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(val), ",", ".", 1))
		if err != nil {
			return decimal.Zero
		}
		return d
	case nil:
		return decimal.Zero
	default:
		return numeric(val)
	}
}

// FormatAPINumber renders a feed amount as "1.234,56".
func FormatAPINumber(v interface{}) string {
	return format(ParseAPINumber(v), "")
}

// FormatAPIDate turns a feed date ("2024-03-09" or "2024-03-09T10:00:00") into "09/03/2024".
// Anything else is returned unchanged.
func FormatAPIDate(s string) string {
	if len(s) < 10 {
		return s
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseDate reads a sale date in any of the formats seen in sheets and in the feed.
func ParseDate(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func numeric(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case int32:
		return decimal.NewFromInt32(val)
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case decimal.Decimal:
		return val
	}
	return decimal.Zero
}

func format(d decimal.Decimal, prefix string) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	s := d.StringFixed(2)
	whole, cents := s[:len(s)-3], s[len(s)-2:]
	return sign + prefix + groupThousands(whole) + "," + cents
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
