package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

func TestFindExistingOrderIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	ids := []string{"ORD-1", "ORD-2", "ORD-3"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT external_order_id FROM rtledger.sale_imports WHERE external_order_id = ANY($1)")).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"external_order_id"}).AddRow("ORD-2"))

	existing, err := ds.FindExistingOrderIDs(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, []string{"ORD-2"}, existing)

	empty, err := ds.FindExistingOrderIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT EXISTS").WithArgs("ORD-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := ds.OrderExists(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRecordSaleImports(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	saleDate := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	entries := []model.SaleImport{
		{ExternalOrderID: "ORD-1", PartnerID: "A1", Amount: decimal.NewFromInt(1500), SaleDate: saleDate, Salesperson: "Ana"},
		{ExternalOrderID: "ORD-2", PartnerID: "A1", Amount: decimal.NewFromInt(300)},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO rtledger.sale_imports")
	prep.ExpectExec().
		WithArgs("ORD-1", "A1", entries[0].Amount, saleDate, "Ana", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("ORD-2", "A1", entries[1].Amount, nil, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, ds.RecordSaleImports(context.Background(), entries))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSaleImports_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO rtledger.sale_imports")
	prep.ExpectExec().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = ds.RecordSaleImports(context.Background(), []model.SaleImport{{ExternalOrderID: "ORD-1", PartnerID: "A1"}})
	assert.True(t, apierror.Is(err, apierror.ErrStoreWrite))
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSalesByPartner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("FROM rtledger.sale_imports WHERE partner_id = .* ORDER BY sale_date DESC").
		WithArgs("A1").
		WillReturnRows(sqlmock.NewRows([]string{"external_order_id", "partner_id", "amount", "sale_date", "salesperson", "created_at"}).
			AddRow("ORD-2", "A1", "300", now, "Ana", now).
			AddRow("ORD-1", "A1", "1500", nil, "", now))

	sales, err := ds.GetSalesByPartner(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "ORD-2", sales[0].ExternalOrderID)
	assert.True(t, sales[1].SaleDate.IsZero())
}

func TestGetLatestSalespeople(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT DISTINCT ON \\(partner_id\\)").
		WithArgs(pq.Array([]string{"A1", "B2"})).
		WillReturnRows(sqlmock.NewRows([]string{"partner_id", "salesperson"}).AddRow("A1", "Ana"))

	people, err := ds.GetLatestSalespeople(context.Background(), []string{"A1", "B2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A1": "Ana"}, people)
}
