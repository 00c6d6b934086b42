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
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rtledger/rtledger/api/middleware"
	model2 "github.com/rtledger/rtledger/api/model"
	"github.com/rtledger/rtledger/internal/sheet"
)

// CreatePartner registers a partner. A zero commission rate takes the configured default.
//
// Responses:
// - 201 Created: the partner.
// - 400 Bad Request: invalid body.
// - 409 Conflict: a partner with that id already exists.
func (a Api) CreatePartner(c *gin.Context) {
	var newPartner model2.CreatePartner
	if err := c.ShouldBindJSON(&newPartner); err != nil {
		badRequest(c, err)
		return
	}
	if err := newPartner.ValidateCreatePartner(); err != nil {
		badRequest(c, err)
		return
	}

	partner, err := a.rt.CreatePartner(c.Request.Context(), newPartner.ToPartner(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, partner)
}

// ListPartners returns every partner. ?sort=-accrued_commission orders by accrual,
// the default is by name.
func (a Api) ListPartners(c *gin.Context) {
	partners, err := a.rt.ListPartners(c.Request.Context(), c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partners)
}

func (a Api) GetPartner(c *gin.Context) {
	partner, err := a.rt.GetPartner(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partner)
}

// UpdatePartner changes the fields present in the body. Balances are never set here.
func (a Api) UpdatePartner(c *gin.Context) {
	var update model2.UpdatePartner
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, err)
		return
	}
	if err := update.ValidateUpdatePartner(); err != nil {
		badRequest(c, err)
		return
	}

	partner, err := a.rt.UpdatePartner(c.Request.Context(), c.Param("id"), update.ToPartnerUpdate(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partner)
}

func (a Api) DeletePartner(c *gin.Context) {
	if err := a.rt.DeletePartner(c.Request.Context(), c.Param("id"), middleware.Actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "partner deleted"})
}

// AddSaleValue records a manual sale for the partner, accruing its commission and points.
func (a Api) AddSaleValue(c *gin.Context) {
	var req model2.AddSaleValue
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.ValidateAddSaleValue(); err != nil {
		badRequest(c, err)
		return
	}

	result, err := a.rt.AddSaleValue(c.Request.Context(), c.Param("id"), req.Amount, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a Api) AdjustPoints(c *gin.Context) {
	var req model2.AdjustPoints
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.ValidateAdjustPoints(); err != nil {
		badRequest(c, err)
		return
	}

	points, err := a.rt.AdjustPoints(c.Request.Context(), c.Param("id"), req.Delta, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

// SalesHistory returns the ledger entries of the partner.
func (a Api) SalesHistory(c *gin.Context) {
	sales, err := a.rt.SalesHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

// ExternalSalesHistory returns the paid sales of the partner as reported by the sales API.
func (a Api) ExternalSalesHistory(c *gin.Context) {
	sales, err := a.rt.ExternalSalesHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

// ImportPartners registers the partners of an uploaded sheet. Known ids are skipped.
func (a Api) ImportPartners(c *gin.Context) {
	filename, content, mapping, err := readUpload(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := a.rt.ImportPartnersFile(c.Request.Context(), filename, content, mapping, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a Api) ExportPartners(c *gin.Context) {
	content, err := a.rt.ExportPartners(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, "parceiros_"+time.Now().Format("02-01-2006")+".csv", sheet.MimeCSV, content)
}
