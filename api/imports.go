package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rtledger/rtledger/api/middleware"
	model2 "github.com/rtledger/rtledger/api/model"
)

// PreviewSpreadsheet parses an uploaded sheet and reports what an import would do. When
// no mapping is sent the suggested one is used and returned alongside the preview.
func (a Api) PreviewSpreadsheet(c *gin.Context) {
	filename, content, mapping, err := readUpload(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	preview, used, err := a.rt.PreviewSpreadsheet(c.Request.Context(), filename, content, mapping)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preview": preview, "mapping": used})
}

// ImportSpreadsheet applies an uploaded sheet. Every row is applied, including orders
// already in the ledger.
func (a Api) ImportSpreadsheet(c *gin.Context) {
	filename, content, mapping, err := readUpload(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := a.rt.ImportSpreadsheet(c.Request.Context(), filename, content, mapping, middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func bindSalesAPIImport(c *gin.Context) (*model2.SalesAPIImport, bool) {
	var req model2.SalesAPIImport
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return nil, false
		}
	}
	if err := req.ValidateSalesAPIImport(); err != nil {
		badRequest(c, err)
		return nil, false
	}
	return &req, true
}

func (a Api) PreviewSalesAPIImport(c *gin.Context) {
	req, ok := bindSalesAPIImport(c)
	if !ok {
		return
	}

	preview, err := a.rt.PreviewSalesAPIImport(c.Request.Context(), req.ToFilter())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// ImportFromSalesAPI imports the filtered sales feed. Orders already in the ledger are
// returned as duplicates.
func (a Api) ImportFromSalesAPI(c *gin.Context) {
	req, ok := bindSalesAPIImport(c)
	if !ok {
		return
	}

	result, err := a.rt.ImportFromSalesAPI(c.Request.Context(), req.ToFilter(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a Api) ImportSingleSale(c *gin.Context) {
	result, err := a.rt.ImportSingleSale(c.Request.Context(), c.Param("order_id"), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SalesFeed returns the raw sales feed. ?refresh=true bypasses the cache.
func (a Api) SalesFeed(c *gin.Context) {
	sales, err := a.rt.FetchSalesFeed(c.Request.Context(), c.Query("refresh") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (a Api) ListImportedFiles(c *gin.Context) {
	files, err := a.rt.ListImportedFiles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (a Api) DownloadImportedFile(c *gin.Context) {
	file, err := a.rt.GetImportedFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, file.Name, file.ContentType, file.Content)
}
