package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

type attendanceService interface {
	RecordCheckIn(ctx context.Context, req models.ScanRequest) (*models.CheckInResult, error)
	DailyStatus(ctx context.Context, day string) (*models.DailyStatusReport, bool, error)
	List(ctx context.Context, req models.AttendanceListRequest) ([]models.Attendance, error)
}

// AttendanceHandler exposes the check-in and daily view endpoints.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Scan godoc
// @Summary Record a QR check-in
// @Description Records at most one check-in per student per day. A repeated scan returns the stored check-in with outcome already_recorded.
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ScanRequest true "Scanned student"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /attendance/scan [post]
func (h *AttendanceHandler) Scan(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scan payload"))
		return
	}

	res, err := h.attendance.RecordCheckIn(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Recorded() {
		response.JSON(c, http.StatusCreated, res)
		return
	}
	response.OK(c, res)
}

// List godoc
// @Summary List check-ins
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param date query string false "Day (YYYY-MM-DD)"
// @Param className query string false "Class"
// @Param busNumber query string false "Bus number"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	var req models.AttendanceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	h.list(c, req)
}

// ByDate godoc
// @Summary List check-ins for a day
// @Description Public when PUBLIC_PORTAL_ENABLED is set.
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param date path string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/date/{date} [get]
func (h *AttendanceHandler) ByDate(c *gin.Context) {
	h.list(c, models.AttendanceListRequest{Date: c.Param("date")})
}

// ByBus godoc
// @Summary List check-ins for a bus on a day
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param busNumber path string true "Bus number"
// @Param date path string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/bus/{busNumber}/{date} [get]
func (h *AttendanceHandler) ByBus(c *gin.Context) {
	h.list(c, models.AttendanceListRequest{Date: c.Param("date"), BusNumber: c.Param("busNumber")})
}

// ByClass godoc
// @Summary List check-ins for a class on a day
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param className path string true "Class"
// @Param date path string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/class/{className}/{date} [get]
func (h *AttendanceHandler) ByClass(c *gin.Context) {
	h.list(c, models.AttendanceListRequest{Date: c.Param("date"), ClassName: c.Param("className")})
}

// Summary godoc
// @Summary Daily present/absent view
// @Description Every roster member appears exactly once, ordered by class, bus and name.
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param date path string true "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/summary/{date} [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	report, hit, err := h.attendance.DailyStatus(c.Request.Context(), c.Param("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, report, middleware.ExtractMeta(c))
}

func (h *AttendanceHandler) list(c *gin.Context, req models.AttendanceListRequest) {
	rows, err := h.attendance.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows, map[string]interface{}{"count": len(rows)})
}
