package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/violin-academy/academy-back/docs"
	"github.com/violin-academy/academy-back/internal/auth"
	"github.com/violin-academy/academy-back/internal/logger"
	"github.com/violin-academy/academy-back/internal/metrics"
)

type RouterDeps struct {
	Handler *Handler
	Auth    *auth.Handler
	Guard   *auth.Guard
	Metrics *metrics.Metrics
	// Gatherer serves /metrics. Nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
	Log      *slog.Logger
}

// @title           Violin Academy API
// @version         1.0
// @description     Student dashboard and admin back office API of the violin academy.
// @host            localhost:8000
// @BasePath        /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func SetupRouter(d RouterDeps) *gin.Engine {
	h := d.Handler

	r := gin.New()
	r.Use(gin.Recovery(), logger.Middleware(d.Log), d.Metrics.Middleware())

	// Public routes
	r.GET("/health", h.Health)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	d.Auth.Register(v1.Group("/auth"))
	v1.POST("/trial-requests", h.SubmitTrialRequest)

	// Students
	user := v1.Group("")
	user.Use(d.Guard.RequireUser())
	{
		user.GET("/me", h.GetMe)
		user.GET("/me/practice", h.ListMyPractice)
		user.POST("/me/practice", h.LogPractice)
		user.GET("/me/practice/stats", h.MyPracticeStats)
		user.GET("/me/practice/weekly", h.MyPracticeWeekly)
		user.GET("/me/points", h.MyPoints)
		user.GET("/me/fees", h.MyFees)
		user.GET("/me/attendance", h.MyAttendance)
		user.GET("/points/leaderboard", h.Leaderboard)
	}

	// Back office
	admin := v1.Group("/admin")
	admin.Use(d.Guard.RequireAdmin())
	{
		admin.GET("/students", h.ListStudents)
		admin.POST("/students", h.CreateStudent)
		admin.POST("/students/import", h.ImportStudents)
		admin.GET("/students/:id", h.GetStudent)
		admin.PATCH("/students/:id", h.UpdateStudent)
		admin.DELETE("/students/:id", h.DeleteStudent)
		admin.GET("/students/:id/practice", h.StudentPractice)
		admin.GET("/students/:id/practice/stats", h.StudentPracticeStats)
		admin.GET("/students/:id/practice/weekly", h.StudentPracticeWeekly)
		admin.GET("/students/:id/points", h.StudentPoints)
		admin.POST("/students/:id/points", h.AddPoints)
		admin.GET("/students/:id/attendance", h.StudentAttendance)

		admin.GET("/fees", h.ListFees)
		admin.POST("/fees", h.CreateFee)
		admin.GET("/fees/export", h.ExportFees)
		admin.PATCH("/fees/:id", h.UpdateFeeStatus)
		admin.DELETE("/fees/:id", h.DeleteFee)

		admin.GET("/trial-requests", h.ListTrialRequests)
		admin.GET("/trial-requests/:id", h.GetTrialRequest)
		admin.PATCH("/trial-requests/:id", h.UpdateTrialRequest)
		admin.POST("/trial-requests/:id/convert", h.ConvertTrialRequest)

		admin.PUT("/attendance", h.MarkAttendance)
		admin.GET("/attendance", h.ListAttendance)
		admin.GET("/attendance/export", h.ExportAttendance)
		admin.DELETE("/attendance/:id", h.DeleteAttendance)
	}

	return r
}
