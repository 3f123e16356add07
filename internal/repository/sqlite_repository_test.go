package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/pkg/config"
	"github.com/noah-isme/qr-attendance-api/pkg/database"
)

func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "attendance.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.EnsureSchema(context.Background(), db))
	return db
}

func seedStudent(t *testing.T, db *sqlx.DB, studentID string) {
	t.Helper()
	created, err := NewStudentRepository(db).Create(context.Background(), &models.Student{
		StudentID: studentID, Name: "Ann", ClassName: "5A", BusNumber: "B1",
	})
	require.NoError(t, err)
	require.True(t, created)
}

func TestSQLiteInsertIfAbsentKeepsFirstEvent(t *testing.T) {
	db := newSQLiteDB(t)
	seedStudent(t, db, "STU001")
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	first, err := repo.InsertIfAbsent(ctx, newRecord())
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "STU001", first.Attendance.StudentID)

	later := newRecord()
	later.CheckInTime = later.CheckInTime.Add(time.Hour)
	second, err := repo.InsertIfAbsent(ctx, later)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Attendance.ID, second.Attendance.ID)
	assert.True(t, first.Attendance.CheckInTime.Equal(second.Attendance.CheckInTime))

	rows, err := repo.FindByDate(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSQLiteInsertIfAbsentConcurrentScansHaveOneWinner(t *testing.T) {
	db := newSQLiteDB(t)
	seedStudent(t, db, "STU001")
	repo := NewAttendanceRepository(db)

	const scans = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[string]struct{}{}
	)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.InsertIfAbsent(context.Background(), newRecord())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Created {
				created++
			}
			ids[res.Attendance.ID] = struct{}{}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
}

func TestSQLiteInsertIfAbsentUnknownStudent(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewAttendanceRepository(db)

	_, err := repo.InsertIfAbsent(context.Background(), newRecord())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSQLiteStudentDeleteRemovesAttendance(t *testing.T) {
	db := newSQLiteDB(t)
	seedStudent(t, db, "STU001")
	seedStudent(t, db, "STU002")
	events := NewAttendanceRepository(db)
	ctx := context.Background()

	for _, day := range []string{"2024-05-01", "2024-05-02"} {
		record := newRecord()
		record.Date = day
		_, err := events.InsertIfAbsent(ctx, record)
		require.NoError(t, err)
	}
	other := newRecord()
	other.StudentID = "STU002"
	_, err := events.InsertIfAbsent(ctx, other)
	require.NoError(t, err)

	removed, err := NewStudentRepository(db).Delete(ctx, "STU001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	rows, err := events.List(ctx, models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "STU002", rows[0].StudentID)

	_, err = NewStudentRepository(db).Delete(ctx, "STU001")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSQLiteForeignKeyCascade(t *testing.T) {
	db := newSQLiteDB(t)
	seedStudent(t, db, "STU001")
	events := NewAttendanceRepository(db)
	ctx := context.Background()

	_, err := events.InsertIfAbsent(ctx, newRecord())
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `DELETE FROM students WHERE student_id = ?`, "STU001")
	require.NoError(t, err)

	_, err = events.FindByStudentAndDate(ctx, "STU001", "2024-05-01")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
