package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	model2 "github.com/rtledger/rtledger/api/model"
	"github.com/rtledger/rtledger/internal/apierror"
	"github.com/rtledger/rtledger/model"
)

func TestCreatePartner(t *testing.T) {
	router, ds := setupRouter(t)

	name := gofakeit.Name()
	ds.On("CreatePartner", mock.Anything, mock.MatchedBy(func(p model.Partner) bool {
		return p.ID == "P1" && p.Name == name && p.CommissionRate.Equal(decimal.RequireFromString("0.05"))
	})).Return(model.Partner{ID: "P1", Name: name, CommissionRate: decimal.RequireFromString("0.05")}, nil).Once()

	var response model.Partner
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodPost,
		Route:    "/partners",
		Payload:  jsonBody(t, model2.CreatePartner{ID: "P1", Name: name, Email: gofakeit.Email()}),
		Response: &response,
		Header:   map[string]string{"X-Actor": "maria"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "P1", response.ID)
	ds.AssertExpectations(t)
}

func TestCreatePartnerValidation(t *testing.T) {
	router, ds := setupRouter(t)

	tests := []struct {
		name    string
		payload model2.CreatePartner
	}{
		{name: "missing id", payload: model2.CreatePartner{Name: "Jane Doe"}},
		{name: "missing name", payload: model2.CreatePartner{ID: "P1"}},
		{name: "bad email", payload: model2.CreatePartner{ID: "P1", Name: "Jane Doe", Email: "not-an-email"}},
		{name: "rate above one", payload: model2.CreatePartner{ID: "P1", Name: "Jane Doe", CommissionRate: decimal.NewFromInt(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var response map[string]interface{}
			resp, err := SetUpTestRequest(TestRequest{
				Router:   router,
				Method:   http.MethodPost,
				Route:    "/partners",
				Payload:  jsonBody(t, tt.payload),
				Response: &response,
			})
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.NotEmpty(t, response["error"])
		})
	}
	ds.AssertNotCalled(t, "CreatePartner", mock.Anything, mock.Anything)
}

func TestCreatePartnerConflict(t *testing.T) {
	router, ds := setupRouter(t)
	ds.On("CreatePartner", mock.Anything, mock.Anything).
		Return(model.Partner{}, apierror.NewAPIError(apierror.ErrConflict, "partner P1 already exists", nil)).Once()

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodPost,
		Route:    "/partners",
		Payload:  jsonBody(t, model2.CreatePartner{ID: "P1", Name: "Jane Doe"}),
		Response: &response,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestGetPartnerNotFound(t *testing.T) {
	router, ds := setupRouter(t)
	ds.On("GetPartner", mock.Anything, "P404", fullFeatures).
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "partner P404 not found", nil)).Once()

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/partners/P404", Response: &response})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, response["error"], "P404")
}

func TestListPartnersSort(t *testing.T) {
	router, ds := setupRouter(t)
	ds.On("GetAllPartners", mock.Anything, fullFeatures, "-accrued_commission").Return([]model.Partner{
		{ID: "P2", Name: "Bruno", AccruedCommission: decimal.NewFromInt(900)},
		{ID: "P1", Name: "Ana", AccruedCommission: decimal.NewFromInt(100)},
	}, nil).Once()

	var response []model.Partner
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/partners?sort=-accrued_commission", Response: &response})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, response, 2)
	assert.Equal(t, "P2", response[0].ID)
	ds.AssertExpectations(t)
}

func TestAddSaleValueRejectsNonPositive(t *testing.T) {
	router, _ := setupRouter(t)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodPost,
		Route:    "/partners/P1/sales",
		Payload:  strings.NewReader(`{"amount": "0"}`),
		Response: &response,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdjustPoints(t *testing.T) {
	router, ds := setupRouter(t)
	ds.On("GetPartner", mock.Anything, "P1", fullFeatures).Return(&model.Partner{ID: "P1", Name: "Jane Doe", Points: 10}, nil).Maybe()
	ds.On("AdjustPartnerPoints", mock.Anything, "P1", int64(-4)).Return(int64(6), nil).Once()

	var response map[string]int64
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodPost,
		Route:    "/partners/P1/points",
		Payload:  strings.NewReader(`{"delta": -4}`),
		Response: &response,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, int64(6), response["points"])
}

func TestExportPartners(t *testing.T) {
	router, ds := setupRouter(t)
	ds.On("GetAllPartners", mock.Anything, fullFeatures, mock.Anything).Return([]model.Partner{
		{ID: "P1", Name: "Jane Doe", CommissionRate: decimal.RequireFromString("0.05"), AccruedCommission: decimal.NewFromInt(150)},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/partners/export", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "parceiros_")
	assert.Contains(t, resp.Body.String(), "Jane Doe")
}

func TestImportPartnersNeedsFile(t *testing.T) {
	router, _ := setupRouter(t)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: "/partners/import", Response: &response})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, response["error"], "file")
}
