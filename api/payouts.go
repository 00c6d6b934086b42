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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rtledger/rtledger/api/middleware"
	model2 "github.com/rtledger/rtledger/api/model"
	"github.com/rtledger/rtledger/internal/sheet"
	"github.com/rtledger/rtledger/model"
)

func payoutKind(value string) (model.PayoutKind, error) {
	if value == "" {
		return model.PayoutKindPayout, nil
	}
	kind := model.PayoutKind(value)
	if !kind.Valid() {
		return "", fmt.Errorf("invalid payout kind %q", value)
	}
	return kind, nil
}

func batchParams(c *gin.Context) (model.PayoutKind, time.Time, error) {
	kind, err := payoutKind(c.Param("kind"))
	if err != nil {
		return "", time.Time{}, err
	}
	date, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		return "", time.Time{}, errors.New("please format the date as 'YYYY-MM-DD' (e.g., 2024-03-09)")
	}
	return kind, date, nil
}

// EligiblePayouts lists the partners whose accrual reaches ?threshold=, or the configured
// threshold when absent. Nothing is written.
func (a Api) EligiblePayouts(c *gin.Context) {
	threshold := decimal.Zero
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			badRequest(c, errors.New("threshold must be a number"))
			return
		}
		threshold = parsed
	}

	partners, err := a.rt.SweepEligiblePayouts(c.Request.Context(), threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partners)
}

// CommitPayouts generates today's payouts for the confirmed partners.
//
// Responses:
// - 201 Created: the commit result, with skipped and reconciliation pending partners.
// - 412 Precondition Failed: accrual is not available on this schema.
// - 422 Unprocessable Entity: nothing to pay.
func (a Api) CommitPayouts(c *gin.Context) {
	var req model2.CommitPayouts
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	result, err := a.rt.CommitPayoutBatch(c.Request.Context(), req.PartnerIDs, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (a Api) CommitSinglePayout(c *gin.Context) {
	var req model2.SinglePayout
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.ValidateSinglePayout(); err != nil {
		badRequest(c, err)
		return
	}

	payout, err := a.rt.CommitSinglePayout(c.Request.Context(), req.PartnerID, req.PayoutKind(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payout)
}

// ListPayouts returns the batches of ?kind= (payout by default), newest first.
func (a Api) ListPayouts(c *gin.Context) {
	kind, err := payoutKind(c.Query("kind"))
	if err != nil {
		badRequest(c, err)
		return
	}

	batches, err := a.rt.ListPayouts(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

func (a Api) GetPayout(c *gin.Context) {
	payout, err := a.rt.GetPayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if payout.Receipt != nil {
		payout.Receipt.Content = nil
	}
	c.JSON(http.StatusOK, payout)
}

func (a Api) SetPayoutPaid(c *gin.Context) {
	var req model2.SetPayoutPaid
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.ValidateSetPayoutPaid(); err != nil {
		badRequest(c, err)
		return
	}

	if err := a.rt.SetPayoutPaid(c.Request.Context(), c.Param("id"), *req.Paid, middleware.Actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "paid": *req.Paid})
}

func (a Api) UpdatePayoutAmount(c *gin.Context) {
	var req model2.UpdatePayoutAmount
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.ValidateUpdatePayoutAmount(); err != nil {
		badRequest(c, err)
		return
	}

	if err := a.rt.UpdatePayoutAmount(c.Request.Context(), c.Param("id"), *req.Amount, middleware.Actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "amount": req.Amount.Round(2)})
}

// AttachReceipt stores the proof of payment, either an uploaded "file" or a JSON body
// pointing at a URL.
func (a Api) AttachReceipt(c *gin.Context) {
	var receipt model.Receipt
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			badRequest(c, errors.New("a file is required in the \"file\" form field"))
			return
		}
		f, err := header.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		defer f.Close()
		content, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
		if err != nil {
			badRequest(c, err)
			return
		}
		receipt = model.Receipt{Name: header.Filename, Content: content}
	} else {
		var req model2.AttachReceipt
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := req.ValidateAttachReceipt(); err != nil {
			badRequest(c, err)
			return
		}
		receipt = req.ToReceipt()
	}

	if err := a.rt.AttachReceipt(c.Request.Context(), c.Param("id"), receipt, middleware.Actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "receipt": receipt.Name})
}

func (a Api) DownloadReceipt(c *gin.Context) {
	payout, err := a.rt.GetPayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if payout.Receipt == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payout has no receipt"})
		return
	}
	if len(payout.Receipt.Content) == 0 {
		c.Redirect(http.StatusFound, payout.Receipt.URL)
		return
	}
	attachment(c, payout.Receipt.Name, http.DetectContentType(payout.Receipt.Content), payout.Receipt.Content)
}

// ResolveReconciliation retries the partner settlement of a payout flagged as pending.
func (a Api) ResolveReconciliation(c *gin.Context) {
	if err := a.rt.ResolveReconciliation(c.Request.Context(), c.Param("id"), middleware.Actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "reconciliation_pending": false})
}

// DeletePayoutBatch removes one batch. Partner balances are left as they are.
func (a Api) DeletePayoutBatch(c *gin.Context) {
	kind, date, err := batchParams(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	deleted, err := a.rt.DeletePayoutBatch(c.Request.Context(), date, kind, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (a Api) ExportPayoutBatch(c *gin.Context) {
	kind, date, err := batchParams(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	content, err := a.rt.ExportPayoutBatch(c.Request.Context(), date, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, fmt.Sprintf("%s_%s.csv", kind, date.Format("02-01-2006")), sheet.MimeCSV, content)
}
