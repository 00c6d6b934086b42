package database

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

// DetectFeatures checks which optional partner columns the schema carries. Payout
// features need both accrual columns; a schema with only one of them is reported and
// treated as having neither.
func (d Datasource) DetectFeatures(ctx context.Context) (model.FeatureSet, error) {
	ctx, span := otel.Tracer("Features").Start(ctx, "Detecting schema features")
	defer span.End()

	var features model.FeatureSet
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'rtledger' AND table_name = 'partners'
		AND column_name IN ('accrued_commission', 'lifetime_paid_commission')
	`)
	if err != nil {
		span.RecordError(err)
		return features, apierror.NewAPIError(apierror.ErrInternalServer, "failed to inspect partner columns", err)
	}
	defer rows.Close()

	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return features, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan column name", err)
		}
		switch column {
		case "accrued_commission":
			features.AccruedCommission = true
		case "lifetime_paid_commission":
			features.LifetimePaidCommission = true
		}
	}
	if err := rows.Err(); err != nil {
		return features, err
	}

	if features.AccruedCommission != features.LifetimePaidCommission {
		logrus.WithField("features", features).Warn("partner accrual columns are only partially present, payouts disabled")
	}
	return features, nil
}
