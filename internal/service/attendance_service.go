package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/pkg/civilday"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/jobs"
)

const (
	messageCheckInRecorded = "Attendance marked successfully"
	messageCheckInExists   = "Attendance already marked for this student today"
)

type attendanceEventStore interface {
	InsertIfAbsent(ctx context.Context, record *models.Attendance) (*models.InsertResult, error)
	FindByDate(ctx context.Context, date string) ([]models.Attendance, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error)
}

type rosterReader interface {
	FindByStudentID(ctx context.Context, studentID string) (*models.Student, error)
	ListAll(ctx context.Context) ([]models.Student, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// AttendanceServiceConfig tunes check-in recording and the daily view.
type AttendanceServiceConfig struct {
	Location       *time.Location
	StorageTimeout time.Duration
	StatusCacheTTL time.Duration
}

// AttendanceServiceParams groups constructor dependencies.
type AttendanceServiceParams struct {
	Events    attendanceEventStore
	Roster    rosterReader
	Cache     *CacheService
	Queue     jobDispatcher
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    AttendanceServiceConfig
}

// AttendanceService records check-ins and builds the reconciled daily view.
type AttendanceService struct {
	events    attendanceEventStore
	roster    rosterReader
	cache     *CacheService
	queue     jobDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AttendanceServiceConfig
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(params AttendanceServiceParams) *AttendanceService {
	cfg := params.Config
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 5 * time.Second
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		events:    params.Events,
		roster:    params.Roster,
		cache:     params.Cache,
		queue:     params.Queue,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Today returns the current civil day in the configured location.
func (s *AttendanceService) Today() string {
	return civilday.Today(s.now(), s.cfg.Location)
}

// RecordCheckIn stores at most one event per student per day. A repeated scan is not an
// error: it returns the already stored event with outcome already_recorded.
func (s *AttendanceService) RecordCheckIn(ctx context.Context, req models.ScanRequest) (*models.CheckInResult, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Date = strings.TrimSpace(req.Date)
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordCheckIn("invalid")
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid studentId")
	}

	day := req.Date
	if day == "" {
		day = s.Today()
	} else if _, err := civilday.Parse(day); err != nil {
		s.metrics.RecordCheckIn("invalid")
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}

	student, err := s.findStudent(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.metrics.RecordCheckIn("not_found")
		} else {
			s.metrics.RecordCheckIn("failed")
		}
		return nil, err
	}

	record := &models.Attendance{
		StudentID:   student.StudentID,
		StudentName: student.Name,
		ClassName:   student.ClassName,
		BusNumber:   student.BusNumber,
		Date:        day,
		CheckInTime: s.now().UTC(),
		Status:      models.AttendanceStatusPresent,
	}

	var inserted *models.InsertResult
	err = s.withStorage(ctx, "attendance.insert_if_absent", func(ctx context.Context) error {
		var err error
		inserted, err = s.events.InsertIfAbsent(ctx, record)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		// the student was removed between the lookup and the insert
		s.metrics.RecordCheckIn("not_found")
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err != nil {
		s.metrics.RecordCheckIn("failed")
		s.logger.Error("record check-in failed", zap.String("student_id", req.StudentID), zap.String("date", day), zap.Error(err))
		return nil, appErrors.Storage(ctx, err, "failed to record attendance")
	}

	if !inserted.Created {
		s.metrics.RecordCheckIn(string(models.CheckInAlreadyRecorded))
		s.logger.Debug("duplicate check-in", zap.String("student_id", req.StudentID), zap.String("date", day))
		return &models.CheckInResult{
			Outcome:    models.CheckInAlreadyRecorded,
			Message:    messageCheckInExists,
			Attendance: inserted.Attendance,
		}, nil
	}

	s.metrics.RecordCheckIn(string(models.CheckInRecorded))
	s.logger.Info("check-in recorded", zap.String("student_id", req.StudentID), zap.String("date", day))
	s.invalidateStatus(ctx, day)
	return &models.CheckInResult{
		Outcome:    models.CheckInRecorded,
		Message:    messageCheckInRecorded,
		Attendance: inserted.Attendance,
	}, nil
}

// DailyStatus returns the reconciled view for day and whether it came from cache.
func (s *AttendanceService) DailyStatus(ctx context.Context, day string) (*models.DailyStatusReport, bool, error) {
	day, err := s.parseDay(day, true)
	if err != nil {
		return nil, false, err
	}

	key := StatusCacheKey(day)
	var cached models.DailyStatusReport
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	var roster []models.Student
	if err := s.withStorage(ctx, "students.list_all", func(ctx context.Context) error {
		var err error
		roster, err = s.roster.ListAll(ctx)
		return err
	}); err != nil {
		return nil, false, appErrors.Storage(ctx, err, "failed to load roster")
	}

	var events []models.Attendance
	if err := s.withStorage(ctx, "attendance.find_by_date", func(ctx context.Context) error {
		var err error
		events, err = s.events.FindByDate(ctx, day)
		return err
	}); err != nil {
		return nil, false, appErrors.Storage(ctx, err, "failed to load attendance")
	}

	report := ReconcileDailyStatus(day, roster, events)
	s.metrics.SetRosterSize(report.Total)
	_ = s.cache.Set(ctx, key, report, s.cfg.StatusCacheTTL)
	return &report, false, nil
}

// List returns recorded events filtered by any combination of day, class and bus.
func (s *AttendanceService) List(ctx context.Context, req models.AttendanceListRequest) ([]models.Attendance, error) {
	day, err := s.parseDay(req.Date, false)
	if err != nil {
		return nil, err
	}
	filter := models.AttendanceFilter{
		Date:      day,
		ClassName: strings.TrimSpace(req.ClassName),
		BusNumber: strings.TrimSpace(req.BusNumber),
	}

	var rows []models.Attendance
	if err := s.withStorage(ctx, "attendance.list", func(ctx context.Context) error {
		var err error
		rows, err = s.events.List(ctx, filter)
		return err
	}); err != nil {
		return nil, appErrors.Storage(ctx, err, "failed to list attendance")
	}
	return rows, nil
}

func (s *AttendanceService) findStudent(ctx context.Context, studentID string) (*models.Student, error) {
	var student *models.Student
	err := s.withStorage(ctx, "students.find", func(ctx context.Context) error {
		var err error
		student, err = s.roster.FindByStudentID(ctx, studentID)
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

func (s *AttendanceService) parseDay(raw string, required bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return "", appErrors.Clone(appErrors.ErrValidation, "date is required")
		}
		return "", nil
	}
	day, err := civilday.Parse(raw)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	return day, nil
}

// invalidateStatus hands the eviction to the queue so the scan response is not held up by
// Redis. It falls back to evicting inline when the queue refuses the job.
func (s *AttendanceService) invalidateStatus(ctx context.Context, day string) {
	if !s.cache.Enabled() {
		return
	}
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{ID: StatusCacheKey(day), Type: JobTypeStatusInvalidate, Payload: day})
		if err == nil {
			return
		}
		s.logger.Warn("status invalidation not queued, evicting inline", zap.String("date", day), zap.Error(err))
	}
	_ = s.cache.Evict(ctx, StatusCacheKey(day))
}

func (s *AttendanceService) withStorage(ctx context.Context, label string, fn func(context.Context) error) error {
	return runStorage(ctx, s.cfg.StorageTimeout, s.metrics, label, fn)
}
