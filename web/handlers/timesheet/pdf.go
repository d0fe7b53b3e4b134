package timesheet

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autolog.dev/autolog/core"
	"autolog.dev/autolog/export"
	"autolog.dev/autolog/web/common"
)

// GeneratePDF streams the printed timesheet page.
//
//	GET /api/generate-pdf?path=<path>
func (ep *Endpoint) GeneratePDF(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, common.NewFailureResponse("Path is required"))
		return
	}

	res, err := ep.pdf.Generate(c.Request.Context(), path)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, common.NewFailureResponse("Failed to generate PDF"))
		return
	}

	cache := "MISS"
	if res.CacheHit {
		cache = "HIT"
	}
	c.Header("X-Cache", cache)
	c.Header("Content-Disposition", "attachment; filename=timesheet.pdf")
	c.Data(http.StatusOK, "application/pdf", res.Data)
}

// ExportXLSX returns the timesheet as a spreadsheet.
//
//	GET /api/export-xlsx?path=<path>
func (ep *Endpoint) ExportXLSX(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, common.NewFailureResponse("Path is required"))
		return
	}

	record, err := ep.store.FindByPath(c.Request.Context(), path)
	if err != nil {
		status := ep.statusOf(c, err)
		msg := "Timesheet not found"
		if status != http.StatusNotFound {
			msg = core.Upstream("Failed to export timesheet", err).Error()
		}
		c.JSON(status, common.NewFailureResponse(msg))
		return
	}

	buf, err := export.Workbook(record)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, common.NewFailureResponse("Failed to export timesheet"))
		return
	}

	c.Header("Content-Disposition", "attachment; filename=timesheet.xlsx")
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
