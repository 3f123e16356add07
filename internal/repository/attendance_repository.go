package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

const attendanceColumns = `id, student_id, student_name, class_name, bus_number, date, check_in_time, status, created_at`

// insertAttempts bounds the insert/read loop when a conflicting row is deleted between the
// two statements.
const insertAttempts = 2

// AttendanceRepository persists check-in events, one per student per day.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// InsertIfAbsent stores record unless an event for the same (student_id, date) exists, in
// which case the stored event is returned with Created=false. The unique constraint makes
// the decision, so concurrent callers across processes agree on a single winner.
func (r *AttendanceRepository) InsertIfAbsent(ctx context.Context, record *models.Attendance) (*models.InsertResult, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = models.AttendanceStatusPresent
	}

	query := r.db.Rebind(`INSERT INTO attendance (` + attendanceColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (student_id, date) DO NOTHING
RETURNING ` + attendanceColumns)

	for attempt := 0; attempt < insertAttempts; attempt++ {
		var stored models.Attendance
		err := r.db.GetContext(ctx, &stored, query,
			record.ID, record.StudentID, record.StudentName, record.ClassName, record.BusNumber,
			record.Date, record.CheckInTime, record.Status, record.CreatedAt)
		if err == nil {
			return &models.InsertResult{Created: true, Attendance: stored}, nil
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("insert attendance: student %s not on roster: %w", record.StudentID, sql.ErrNoRows)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("insert attendance: %w", err)
		}

		existing, err := r.FindByStudentAndDate(ctx, record.StudentID, record.Date)
		if err == nil {
			return &models.InsertResult{Created: false, Attendance: *existing}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("insert attendance for %s on %s: conflicting row vanished", record.StudentID, record.Date)
}

// FindByStudentAndDate returns the event for one student on one day.
func (r *AttendanceRepository) FindByStudentAndDate(ctx context.Context, studentID, date string) (*models.Attendance, error) {
	query := r.db.Rebind(`SELECT ` + attendanceColumns + ` FROM attendance WHERE student_id = ? AND date = ? LIMIT 1`)
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, studentID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance by student and date: %w", err)
	}
	return &record, nil
}

// FindByDate returns every event recorded on date, latest check-in first.
func (r *AttendanceRepository) FindByDate(ctx context.Context, date string) ([]models.Attendance, error) {
	query := r.db.Rebind(`SELECT ` + attendanceColumns + ` FROM attendance WHERE date = ? ORDER BY check_in_time DESC`)
	rows := make([]models.Attendance, 0)
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return nil, fmt.Errorf("find attendance by date: %w", err)
	}
	return rows, nil
}

// List returns events matching any combination of date, class and bus. With a date the
// latest check-in comes first, otherwise the latest day does.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Date != "" {
		where = append(where, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.ClassName != "" {
		where = append(where, "class_name = ?")
		args = append(args, filter.ClassName)
	}
	if filter.BusNumber != "" {
		where = append(where, "bus_number = ?")
		args = append(args, filter.BusNumber)
	}

	order := "date DESC, check_in_time DESC"
	if filter.Date != "" {
		order = "check_in_time DESC"
	}

	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM attendance WHERE %s ORDER BY %s`,
		attendanceColumns, strings.Join(where, " AND "), order))

	rows := make([]models.Attendance, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}
