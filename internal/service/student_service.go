package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

const qrCodeSize = 300

type studentRepository interface {
	FindByStudentID(ctx context.Context, studentID string) (*models.Student, error)
	ListAll(ctx context.Context) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) (bool, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, studentID string) (int64, error)
}

// StudentService manages the roster.
type StudentService struct {
	repo           studentRepository
	cache          *CacheService
	metrics        *MetricsService
	validator      *validator.Validate
	logger         *zap.Logger
	storageTimeout time.Duration
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, storageTimeout time.Duration) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if storageTimeout <= 0 {
		storageTimeout = 5 * time.Second
	}
	return &StudentService{
		repo:           repo,
		cache:          cache,
		metrics:        metrics,
		validator:      validate,
		logger:         logger,
		storageTimeout: storageTimeout,
	}
}

// List returns the whole roster ordered by student id.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := s.withStorage(ctx, "students.list_all", func(ctx context.Context) error {
		var err error
		students, err = s.repo.ListAll(ctx)
		return err
	}); err != nil {
		return nil, appErrors.Storage(ctx, err, "failed to list students")
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].StudentID < students[j].StudentID })
	return students, nil
}

// Get returns a single roster member.
func (s *StudentService) Get(ctx context.Context, studentID string) (*models.Student, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	var student *models.Student
	err := s.withStorage(ctx, "students.find", func(ctx context.Context) error {
		var err error
		student, err = s.repo.FindByStudentID(ctx, studentID)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Storage(ctx, err, "failed to load student")
	}
	return student, nil
}

// Create registers a new roster member. A taken id yields CONFLICT.
func (s *StudentService) Create(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Name = strings.TrimSpace(req.Name)
	req.ClassName = strings.TrimSpace(req.ClassName)
	req.BusNumber = strings.TrimSpace(req.BusNumber)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student := &models.Student{
		StudentID: req.StudentID,
		Name:      req.Name,
		ClassName: req.ClassName,
		BusNumber: req.BusNumber,
	}
	var created bool
	if err := s.withStorage(ctx, "students.create", func(ctx context.Context) error {
		var err error
		created, err = s.repo.Create(ctx, student)
		return err
	}); err != nil {
		return nil, appErrors.Storage(ctx, err, "failed to create student")
	}
	if !created {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student with this ID already exists")
	}

	s.invalidateStatus(ctx)
	return student, nil
}

// Update replaces name, class and bus. Events already recorded keep their snapshot.
func (s *StudentService) Update(ctx context.Context, studentID string, req models.UpdateStudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.ClassName = strings.TrimSpace(req.ClassName)
	req.BusNumber = strings.TrimSpace(req.BusNumber)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	student.Name = req.Name
	student.ClassName = req.ClassName
	student.BusNumber = req.BusNumber

	if err := s.withStorage(ctx, "students.update", func(ctx context.Context) error {
		return s.repo.Update(ctx, student)
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Storage(ctx, err, "failed to update student")
	}

	s.invalidateStatus(ctx)
	return student, nil
}

// Delete removes a roster member together with all of its attendance. Both go in a single
// repository transaction, so a failure leaves the student and its history untouched.
func (s *StudentService) Delete(ctx context.Context, studentID string) error {
	student, err := s.Get(ctx, studentID)
	if err != nil {
		return err
	}

	var removed int64
	if err := s.withStorage(ctx, "students.delete", func(ctx context.Context) error {
		var err error
		removed, err = s.repo.Delete(ctx, student.StudentID)
		return err
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Storage(ctx, err, "failed to delete student")
	}

	s.logger.Info("student deleted", zap.String("student_id", student.StudentID), zap.Int64("attendance_removed", removed))
	s.invalidateStatus(ctx)
	return nil
}

// QRCode renders the student id as a PNG data URL for printing on a badge.
func (s *StudentService) QRCode(ctx context.Context, studentID string) (*models.StudentQRCode, error) {
	student, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(student.StudentID, qrcode.High, qrCodeSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate QR code")
	}
	return &models.StudentQRCode{
		QRCode:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		StudentID: student.StudentID,
	}, nil
}

// invalidateStatus drops every cached daily view since roster changes affect all days.
func (s *StudentService) invalidateStatus(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, statusCachePattern)
}

func (s *StudentService) withStorage(ctx context.Context, label string, fn func(context.Context) error) error {
	return runStorage(ctx, s.storageTimeout, s.metrics, label, fn)
}
