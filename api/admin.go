package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rtledger/rtledger/api/middleware"
)

// ListActionLogs returns the newest audit entries. ?limit= is capped at the configured
// list limit.
func (a Api) ListActionLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := a.rt.ListActionLogs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (a Api) ClearActionLogs(c *gin.Context) {
	if err := a.rt.ClearActionLogs(c.Request.Context(), middleware.Actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "action log cleared"})
}

func (a Api) Features(c *gin.Context) {
	features := a.rt.Features()
	c.JSON(http.StatusOK, gin.H{
		"accrued_commission":       features.AccruedCommission,
		"lifetime_paid_commission": features.LifetimePaidCommission,
		"payouts_enabled":          features.PayoutsEnabled(),
	})
}

func (a Api) State(c *gin.Context) {
	state, err := a.rt.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (a Api) ReloadState(c *gin.Context) {
	state, err := a.rt.Reload(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// DeleteAllData removes partners, payouts, manual commissions and imported files. The
// sale ledger is kept so orders can never be imported twice.
func (a Api) DeleteAllData(c *gin.Context) {
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pass confirm=true to delete all data"})
		return
	}
	deleted, err := a.rt.DeleteAllData(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
