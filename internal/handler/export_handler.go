package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, req service.ExportRequest) (*service.ExportFile, error)
}

// ExportHandler serves attendance downloads.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Export godoc
// @Summary Download attendance
// @Tags Export
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce application/pdf
// @Security BearerAuth
// @Param format path string true "csv, xlsx or pdf"
// @Param date path string true "Day (YYYY-MM-DD)"
// @Param className query string false "Class"
// @Param busNumber query string false "Bus number"
// @Param view query string false "events (default) or status"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /export/{format}/{date} [get]
func (h *ExportHandler) Export(c *gin.Context) {
	file, err := h.exports.Export(c.Request.Context(), service.ExportRequest{
		Format:    c.Param("format"),
		Date:      c.Param("date"),
		ClassName: c.Query("className"),
		BusNumber: c.Query("busNumber"),
		View:      service.ExportView(c.Query("view")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}
