package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rtledger/rtledger/api/middleware"
	model2 "github.com/rtledger/rtledger/api/model"
)

// SubmitManualCommission records a pending commission request. Nothing is credited
// until it is approved.
func (a Api) SubmitManualCommission(c *gin.Context) {
	var req model2.SubmitManualCommission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.ValidateSubmitManualCommission(); err != nil {
		badRequest(c, err)
		return
	}

	mc, err := a.rt.SubmitManualCommission(c.Request.Context(), req.ToManualCommission(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mc)
}

func (a Api) ListManualCommissions(c *gin.Context) {
	requests, err := a.rt.ListManualCommissions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (a Api) ApproveManualCommission(c *gin.Context) {
	mc, err := a.rt.ApproveManualCommission(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mc)
}

func (a Api) RejectManualCommission(c *gin.Context) {
	var req model2.RejectManualCommission
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	mc, err := a.rt.RejectManualCommission(c.Request.Context(), c.Param("id"), req.Reason, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mc)
}
