package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/pkg/civilday"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/export"
)

// ExportHeaders is the column layout shared by every export format.
var ExportHeaders = []string{"Student ID", "Name", "Class", "Bus Number", "Status", "Check-in Time"}

const (
	exportTimeLayout = "2006-01-02 15:04:05"
	exportNoTime     = "N/A"
)

// ExportView selects the rows of an export.
type ExportView string

const (
	// ExportViewEvents lists the check-ins recorded on the day.
	ExportViewEvents ExportView = "events"
	// ExportViewStatus lists every roster member as present or absent.
	ExportViewStatus ExportView = "status"
)

// ExportRequest describes a download.
type ExportRequest struct {
	Format    string
	Date      string
	ClassName string
	BusNumber string
	View      ExportView
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

type attendanceReader interface {
	List(ctx context.Context, req models.AttendanceListRequest) ([]models.Attendance, error)
	DailyStatus(ctx context.Context, day string) (*models.DailyStatusReport, bool, error)
}

// ExportService renders attendance as CSV, XLSX or PDF.
type ExportService struct {
	attendance attendanceReader
	renderers  map[string]export.Renderer
	location   *time.Location
	logger     *zap.Logger
}

// NewExportService constructs an ExportService. Without renderers it serves csv, xlsx and pdf.
func NewExportService(attendance attendanceReader, location *time.Location, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.Local
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewXLSXExporter(), export.NewPDFExporter()}
	}
	byExt := make(map[string]export.Renderer, len(renderers))
	for _, r := range renderers {
		byExt[r.Extension()] = r
	}
	return &ExportService{attendance: attendance, renderers: byExt, location: location, logger: logger}
}

// Export builds the dataset for req and renders it.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}
	day, err := civilday.Parse(strings.TrimSpace(req.Date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	req.Date = day
	req.ClassName = strings.TrimSpace(req.ClassName)
	req.BusNumber = strings.TrimSpace(req.BusNumber)

	var rows [][]string
	switch req.View {
	case "", ExportViewEvents:
		rows, err = s.eventRows(ctx, req)
	case ExportViewStatus:
		rows, err = s.statusRows(ctx, req)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export view %q", req.View))
	}
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(export.Dataset{
		Title:   "Attendance " + day,
		Headers: ExportHeaders,
		Rows:    rows,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Debug("export rendered", zap.String("format", format), zap.String("date", day), zap.Int("rows", len(rows)))
	return &ExportFile{
		Filename:    fmt.Sprintf("attendance-%s.%s", day, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
		Rows:        len(rows),
	}, nil
}

func (s *ExportService) eventRows(ctx context.Context, req ExportRequest) ([][]string, error) {
	events, err := s.attendance.List(ctx, models.AttendanceListRequest{Date: req.Date, ClassName: req.ClassName, BusNumber: req.BusNumber})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.BusNumber != b.BusNumber {
			return a.BusNumber < b.BusNumber
		}
		if a.ClassName != b.ClassName {
			return a.ClassName < b.ClassName
		}
		return a.StudentName < b.StudentName
	})

	rows := make([][]string, 0, len(events))
	for _, evt := range events {
		checkIn := evt.CheckInTime
		rows = append(rows, []string{evt.StudentID, evt.StudentName, evt.ClassName, evt.BusNumber, string(evt.Status), s.formatTime(&checkIn)})
	}
	return rows, nil
}

func (s *ExportService) statusRows(ctx context.Context, req ExportRequest) ([][]string, error) {
	report, _, err := s.attendance.DailyStatus(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(report.Students))
	for _, st := range report.Students {
		if req.ClassName != "" && st.ClassName != req.ClassName {
			continue
		}
		if req.BusNumber != "" && st.BusNumber != req.BusNumber {
			continue
		}
		rows = append(rows, []string{st.StudentID, st.Name, st.ClassName, st.BusNumber, string(st.Status), s.formatTime(st.CheckInTime)})
	}
	return rows, nil
}

func (s *ExportService) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return exportNoTime
	}
	return t.In(s.location).Format(exportTimeLayout)
}
