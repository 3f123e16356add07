package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

func newExportFixture(t *testing.T) (*ExportService, *attendanceFixture) {
	t.Helper()
	carl := models.Student{StudentID: "STU003", Name: "Carl", ClassName: "4A", BusNumber: "B2"}
	f := newAttendanceFixture(t, false, ann, ben, carl)
	ctx := context.Background()
	for _, id := range []string{"STU003", "STU001"} {
		_, err := f.svc.RecordCheckIn(ctx, models.ScanRequest{StudentID: id, Date: "2024-05-01"})
		require.NoError(t, err)
	}
	return NewExportService(f.svc, time.UTC, nil), f
}

func TestExportCSVEventsView(t *testing.T) {
	svc, _ := newExportFixture(t)

	file, err := svc.Export(context.Background(), ExportRequest{Format: "csv", Date: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, "attendance-2024-05-01.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student ID,Name,Class,Bus Number,Status,Check-in Time", lines[0])
	assert.Equal(t, "STU001,Ann,5A,B1,Present,2024-05-01 07:15:00", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "STU003,Carl,4A,B2,Present,"))
}

func TestExportStatusViewMarksAbsent(t *testing.T) {
	svc, _ := newExportFixture(t)

	file, err := svc.Export(context.Background(), ExportRequest{Format: "CSV", Date: "2024-05-01", View: ExportViewStatus, ClassName: "5A"})
	require.NoError(t, err)
	assert.Equal(t, 2, file.Rows)

	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "STU002,Ben,5A,B2,Absent,N/A", lines[2])
}

func TestExportXLSXAndPDF(t *testing.T) {
	svc, _ := newExportFixture(t)
	ctx := context.Background()

	xlsx, err := svc.Export(ctx, ExportRequest{Format: "xlsx", Date: "2024-05-01", View: ExportViewStatus})
	require.NoError(t, err)
	assert.Equal(t, "attendance-2024-05-01.xlsx", xlsx.Filename)

	book, err := excelize.OpenReader(bytes.NewReader(xlsx.Body))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(book.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ExportHeaders, rows[0])

	pdf, err := svc.Export(ctx, ExportRequest{Format: "pdf", Date: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF")))
}

func TestExportRejectsBadInput(t *testing.T) {
	svc, _ := newExportFixture(t)
	ctx := context.Background()

	_, err := svc.Export(ctx, ExportRequest{Format: "docx", Date: "2024-05-01"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Export(ctx, ExportRequest{Format: "csv", Date: "May 1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Export(ctx, ExportRequest{Format: "csv", Date: "2024-05-01", View: "weekly"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
