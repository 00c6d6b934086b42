package model

import "time"

// ActionLog is an entry of the operator audit trail.
type ActionLog struct {
	ID          string    `json:"id"`
	Actor       string    `json:"actor"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImportedFile keeps the content of an imported sheet for later download.
type ImportedFile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Content     []byte    `json:"content,omitempty"`
	ImportDate  time.Time `json:"import_date"`
}

// FeatureSet holds the optional schema capabilities, resolved once at startup.
type FeatureSet struct {
	AccruedCommission      bool `json:"accrued_commission"`
	LifetimePaidCommission bool `json:"lifetime_paid_commission"`
}

// AccrualEnabled reports whether commission accrual can be tracked.
func (f FeatureSet) AccrualEnabled() bool {
	return f.AccruedCommission && f.LifetimePaidCommission
}

// PayoutsEnabled reports whether payouts and redemptions can be generated.
func (f FeatureSet) PayoutsEnabled() bool {
	return f.AccrualEnabled()
}
