// Package router maps HTTP routes onto handlers.
package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
)

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Auth       *handler.AuthHandler
	Students   *handler.StudentHandler
	Attendance *handler.AttendanceHandler
	Export     *handler.ExportHandler
	Metrics    *handler.MetricsHandler
}

// Options controls route registration.
type Options struct {
	APIPrefix  string
	EnableDocs bool
	// PublicPortal serves the student lookup and the per-day attendance list without a token.
	PublicPortal bool
	Tokens       middleware.TokenValidator
}

// Register wires all routes on r. Health checks, metrics and docs are mounted at the root
// and health is repeated under the prefix. Everything else under the prefix except login
// and the optional portal reads requires a bearer token.
func Register(r *gin.Engine, opts Options, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := normalizePrefix(opts.APIPrefix)
	api := r.Group(prefix)
	if prefix != "/" {
		api.GET("/health", h.Metrics.Health)
	}
	api.POST("/auth/login", h.Auth.Login)
	if opts.PublicPortal {
		api.GET("/students/:studentId", h.Students.Get)
		api.GET("/attendance/date/:date", h.Attendance.ByDate)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))

	secured.GET("/auth/verify", h.Auth.Verify)

	students := secured.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Create)
	if !opts.PublicPortal {
		students.GET("/:studentId", h.Students.Get)
	}
	students.PUT("/:studentId", h.Students.Update)
	students.DELETE("/:studentId", h.Students.Delete)
	students.GET("/:studentId/qrcode", h.Students.QRCode)

	attendance := secured.Group("/attendance")
	attendance.POST("/scan", h.Attendance.Scan)
	attendance.GET("", h.Attendance.List)
	if !opts.PublicPortal {
		attendance.GET("/date/:date", h.Attendance.ByDate)
	}
	attendance.GET("/bus/:busNumber/:date", h.Attendance.ByBus)
	attendance.GET("/class/:className/:date", h.Attendance.ByClass)
	attendance.GET("/summary/:date", h.Attendance.Summary)

	secured.GET("/export/:format/:date", h.Export.Export)
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return "/"
	}
	return "/" + strings.Trim(prefix, "/")
}
