package controllers

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/tracer-study/exporter"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/services"
)

type ExportController struct {
	reports *services.ReportService
	log     *logger.Logger
}

func NewExportController(reports *services.ReportService, log *logger.Logger) *ExportController {
	return &ExportController{reports: reports, log: log}
}

// Export renders the questionnaire report and streams the file back. The
// format comes from the path (xlsx or pdf); from/to/completed filter the
// responses.
func (h *ExportController) Export(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	format, err := exporter.ParseFormat(c.Param("format"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "format must be xlsx or pdf"})
		return
	}
	f, ok := responseFilter(c)
	if !ok {
		return
	}

	path, err := h.reports.Export(c.Request.Context(), id, format, f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Header("Content-Type", format.ContentType())
	c.FileAttachment(path, filepath.Base(path))
}
