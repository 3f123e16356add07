package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

const studentColumns = `student_id, name, class_name, bus_number, created_at, updated_at`

// StudentRepository provides database access for the roster.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository instantiates the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByStudentID returns a roster member or sql.ErrNoRows.
func (r *StudentRepository) FindByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	query := r.db.Rebind(`SELECT ` + studentColumns + ` FROM students WHERE student_id = ? LIMIT 1`)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ListAll returns the whole roster ordered by class, bus and name.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students ORDER BY class_name, bus_number, name, student_id`
	students := make([]models.Student, 0)
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Create inserts a roster member unless the id is taken. It reports whether a row was written.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) (bool, error) {
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	query := r.db.Rebind(`INSERT INTO students (` + studentColumns + `)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (student_id) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, query, student.StudentID, student.Name, student.ClassName, student.BusNumber, student.CreatedAt, student.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("create student: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create student rows affected: %w", err)
	}
	return n == 1, nil
}

// Update rewrites name, class and bus. The id is immutable. Missing rows yield sql.ErrNoRows.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind(`UPDATE students SET name = ?, class_name = ?, bus_number = ?, updated_at = ? WHERE student_id = ?`)
	res, err := r.db.ExecContext(ctx, query, student.Name, student.ClassName, student.BusNumber, student.UpdatedAt, student.StudentID)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return requireAffected(res, "update student")
}

// Delete removes a roster member and all of its attendance in one transaction and reports how
// many events went with it. Missing rows yield sql.ErrNoRows and nothing is removed.
func (r *StudentRepository) Delete(ctx context.Context, studentID string) (removed int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete student: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM attendance WHERE student_id = ?`), studentID)
	if err != nil {
		return 0, fmt.Errorf("delete attendance for student: %w", err)
	}
	if removed, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("delete attendance rows affected: %w", err)
	}

	res, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM students WHERE student_id = ?`), studentID)
	if err != nil {
		return 0, fmt.Errorf("delete student: %w", err)
	}
	if err = requireAffected(res, "delete student"); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete student: %w", err)
	}
	return removed, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
