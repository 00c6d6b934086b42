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

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/rtledger/rtledger"
	"github.com/rtledger/rtledger/api/middleware"
	"github.com/rtledger/rtledger/config"
	"github.com/rtledger/rtledger/internal/apierror"
)

type Api struct {
	rt     *rtledger.RTLedger
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/partners", a.CreatePartner)
	router.GET("/partners", a.ListPartners)
	router.GET("/partners/export", a.ExportPartners)
	router.POST("/partners/import", a.ImportPartners)
	router.GET("/partners/:id", a.GetPartner)
	router.PUT("/partners/:id", a.UpdatePartner)
	router.DELETE("/partners/:id", a.DeletePartner)
	router.POST("/partners/:id/sales", a.AddSaleValue)
	router.GET("/partners/:id/sales", a.SalesHistory)
	router.GET("/partners/:id/external-sales", a.ExternalSalesHistory)
	router.POST("/partners/:id/points", a.AdjustPoints)

	router.POST("/imports/spreadsheet/preview", a.PreviewSpreadsheet)
	router.POST("/imports/spreadsheet", a.ImportSpreadsheet)
	router.POST("/imports/sales-api/preview", a.PreviewSalesAPIImport)
	router.POST("/imports/sales-api", a.ImportFromSalesAPI)
	router.POST("/imports/sales-api/orders/:order_id", a.ImportSingleSale)
	router.GET("/sales-feed", a.SalesFeed)
	router.GET("/imported-files", a.ListImportedFiles)
	router.GET("/imported-files/:id", a.DownloadImportedFile)

	router.GET("/payouts", a.ListPayouts)
	router.GET("/payouts/eligible", a.EligiblePayouts)
	router.POST("/payouts/commit", a.CommitPayouts)
	router.POST("/payouts/single", a.CommitSinglePayout)
	router.GET("/payouts/batches/:kind/:date/export", a.ExportPayoutBatch)
	router.DELETE("/payouts/batches/:kind/:date", a.DeletePayoutBatch)
	router.GET("/payouts/:id", a.GetPayout)
	router.PUT("/payouts/:id/paid", a.SetPayoutPaid)
	router.PUT("/payouts/:id/amount", a.UpdatePayoutAmount)
	router.POST("/payouts/:id/receipt", a.AttachReceipt)
	router.GET("/payouts/:id/receipt", a.DownloadReceipt)
	router.POST("/payouts/:id/reconcile", a.ResolveReconciliation)

	router.POST("/manual-commissions", a.SubmitManualCommission)
	router.GET("/manual-commissions", a.ListManualCommissions)
	router.POST("/manual-commissions/:id/approve", a.ApproveManualCommission)
	router.POST("/manual-commissions/:id/reject", a.RejectManualCommission)

	router.GET("/action-logs", a.ListActionLogs)
	router.DELETE("/action-logs", a.ClearActionLogs)
	router.GET("/features", a.Features)
	router.GET("/state", a.State)
	router.POST("/state/reload", a.ReloadState)
	router.DELETE("/data", a.DeleteAllData)

	return a.router
}

func NewAPI(rt *rtledger.RTLedger) *Api {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	conf, err := config.Fetch()
	if err != nil {
		logrus.WithError(err).Fatal("configuration is not loaded")
	}

	r.Use(otelgin.Middleware("rtledger"))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}
	r.Use(middleware.ActorMiddleware())
	return &Api{rt: rt, router: r}
}

func respondError(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		entry := logrus.WithError(err).WithField("path", c.FullPath())
		if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.HasTraceID() {
			entry = entry.WithField("trace_id", sc.TraceID().String())
		}
		entry.Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func attachment(c *gin.Context, name, contentType string, content []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, content)
}
