package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type stubTokens struct{}

func (stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{AdminID: "a1", Username: "admin"}, nil
}

type stubAuth struct{}

func (stubAuth) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{Token: "good", Username: req.Username}, nil
}

func (stubAuth) Verify(ctx context.Context, claims *models.JWTClaims) (*models.AdminInfo, error) {
	return &models.AdminInfo{ID: claims.AdminID, Username: claims.Username}, nil
}

type stubStudents struct{}

func (stubStudents) List(ctx context.Context) ([]models.Student, error) {
	return []models.Student{}, nil
}
func (stubStudents) Get(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{StudentID: id}, nil
}
func (stubStudents) Create(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error) {
	return &models.Student{StudentID: req.StudentID}, nil
}
func (stubStudents) Update(ctx context.Context, id string, req models.UpdateStudentRequest) (*models.Student, error) {
	return &models.Student{StudentID: id}, nil
}
func (stubStudents) Delete(ctx context.Context, id string) error { return nil }
func (stubStudents) QRCode(ctx context.Context, id string) (*models.StudentQRCode, error) {
	return &models.StudentQRCode{StudentID: id}, nil
}

type stubAttendance struct{}

func (stubAttendance) RecordCheckIn(ctx context.Context, req models.ScanRequest) (*models.CheckInResult, error) {
	return &models.CheckInResult{Outcome: models.CheckInRecorded}, nil
}
func (stubAttendance) DailyStatus(ctx context.Context, day string) (*models.DailyStatusReport, bool, error) {
	return &models.DailyStatusReport{Date: day, Students: []models.DailyStatus{}}, false, nil
}
func (stubAttendance) List(ctx context.Context, req models.AttendanceListRequest) ([]models.Attendance, error) {
	return []models.Attendance{}, nil
}

type stubExport struct{}

func (stubExport) Export(ctx context.Context, req service.ExportRequest) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "attendance-" + req.Date + ".csv", ContentType: "text/csv", Body: []byte("x")}, nil
}

func newTestEngine(prefix string) *gin.Engine {
	return newTestEngineWith(Options{APIPrefix: prefix})
}

func newTestEngineWith(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	opts.Tokens = stubTokens{}
	Register(r, opts, Handlers{
		Auth:       handler.NewAuthHandler(stubAuth{}),
		Students:   handler.NewStudentHandler(stubStudents{}),
		Attendance: handler.NewAttendanceHandler(stubAttendance{}),
		Export:     handler.NewExportHandler(stubExport{}),
		Metrics:    handler.NewMetricsHandler(service.NewMetricsService(), nil),
	})
	return r
}

func serve(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterPublicRoutes(t *testing.T) {
	r := newTestEngine("/api")

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/health", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/metrics", "", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/docs/index.html", "", "").Code)

	w := serve(r, http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"pw"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterProtectsAPI(t *testing.T) {
	r := newTestEngine("api/")

	paths := []struct{ method, path, body string }{
		{http.MethodGet, "/api/auth/verify", ""},
		{http.MethodGet, "/api/students", ""},
		{http.MethodGet, "/api/students/STU001", ""},
		{http.MethodGet, "/api/students/STU001/qrcode", ""},
		{http.MethodPost, "/api/attendance/scan", `{"studentId":"STU001"}`},
		{http.MethodGet, "/api/attendance/summary/2024-05-01", ""},
		{http.MethodGet, "/api/attendance/date/2024-05-01", ""},
		{http.MethodGet, "/api/attendance/bus/B1/2024-05-01", ""},
		{http.MethodGet, "/api/export/csv/2024-05-01", ""},
	}
	for _, p := range paths {
		assert.Equal(t, http.StatusUnauthorized, serve(r, p.method, p.path, "", p.body).Code, p.path)
		assert.Equal(t, http.StatusUnauthorized, serve(r, p.method, p.path, "bad", p.body).Code, p.path)
		assert.Less(t, serve(r, p.method, p.path, "good", p.body).Code, 300, p.path)
	}
}

func TestRegisterPublicPortalReads(t *testing.T) {
	r := newTestEngineWith(Options{APIPrefix: "/api", PublicPortal: true})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/students/STU001", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/attendance/date/2024-05-01", "", "").Code)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/students", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/students/STU001/qrcode", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodDelete, "/api/students/STU001", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/attendance/summary/2024-05-01", "", "").Code)
}

func TestRegisterWithRootPrefix(t *testing.T) {
	r := newTestEngineWith(Options{APIPrefix: "/"})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/students", "", "").Code)
}

func TestRegisterScanReturnsCreated(t *testing.T) {
	r := newTestEngine("/api")
	w := serve(r, http.MethodPost, "/api/attendance/scan", "good", `{"studentId":"STU001"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"recorded"`)
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "/", normalizePrefix(""))
	assert.Equal(t, "/api", normalizePrefix("api"))
	assert.Equal(t, "/api/v1", normalizePrefix("/api/v1/"))
}
