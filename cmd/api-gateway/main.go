package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/college-admin-api/api/swagger"
	"github.com/noah-isme/college-admin-api/internal/handler"
	"github.com/noah-isme/college-admin-api/internal/middleware"
	"github.com/noah-isme/college-admin-api/internal/models"
	"github.com/noah-isme/college-admin-api/internal/repository"
	"github.com/noah-isme/college-admin-api/internal/service"
	"github.com/noah-isme/college-admin-api/pkg/config"
	"github.com/noah-isme/college-admin-api/pkg/database"
	"github.com/noah-isme/college-admin-api/pkg/jobs"
	"github.com/noah-isme/college-admin-api/pkg/lock"
	"github.com/noah-isme/college-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/college-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/college-admin-api/pkg/middleware/requestid"

	"github.com/noah-isme/college-admin-api/pkg/cache"
)

// @title College Admin API
// @version 0.1.0
// @description Academic term, timetable and assessment workflow engine
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	// Repositories.
	batchRepo := repository.NewBatchRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	scheduleRepo := repository.NewExamScheduleRepository(db)
	markRepo := repository.NewMarkRepository(db)
	tutorRepo := repository.NewTutorAssignmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Services.
	metricsSvc := service.NewMetricsService()
	locker := lock.NewRedisLock(redisClient)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "college-admin-api",
	})
	progressionSvc := service.NewProgressionService(db, batchRepo, allocationRepo, locker, cfg.Sweep.LockTTL, logr)
	batchSvc := service.NewBatchService(batchRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	yearSvc := service.NewAcademicYearService(yearRepo, validate, logr)
	rosterSvc := service.NewRosterService(sectionRepo, studentRepo, facultyRepo, batchRepo, validate, logr)
	allocationSvc := service.NewAllocationService(allocationRepo, yearRepo, subjectRepo, validate, logr)
	timetableSvc := service.NewTimetableService(db, timetableRepo, allocationRepo, allocationSvc, sectionRepo, batchRepo, subjectRepo, yearRepo, validate, logr)
	tutorSvc := service.NewTutorAssignmentService(tutorRepo, sectionRepo, facultyRepo, validate, logr)
	assessmentSvc := service.NewAssessmentService(db, markRepo, scheduleRepo, sectionRepo, subjectRepo, studentRepo, tutorRepo, assignmentRepo, cacheRepo, validate, logr)
	exportSvc := service.NewExportService(assessmentSvc, cfg.Exports.Enabled, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	batchHandler := handler.NewBatchHandler(batchSvc, progressionSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	yearHandler := handler.NewAcademicYearHandler(yearSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	allocationHandler := handler.NewAllocationHandler(allocationSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	tutorHandler := handler.NewTutorAssignmentHandler(tutorSvc)
	assessmentHandler := handler.NewAssessmentHandler(assessmentSvc, exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.POST("/auth/login", authHandler.Login)

	authed := r.Group("/", middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty, models.RoleTutor)
	faculty := middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty)
	tutor := middleware.RequireRoles(models.RoleAdmin, models.RoleTutor)

	authed.GET("/batches", staff, batchHandler.List)
	authed.GET("/batches/:id", staff, batchHandler.Get)
	authed.POST("/batches", admin, batchHandler.Create)
	authed.DELETE("/batches/:id", admin, batchHandler.Delete)
	authed.PUT("/batches/:id/window", admin, batchHandler.SetWindow)
	authed.POST("/batches/:id/advance", admin, batchHandler.Advance)
	authed.POST("/terms/sweep", admin, batchHandler.Sweep)
	authed.GET("/batches/:id/sections", staff, rosterHandler.SectionsForBatch)

	authed.GET("/subjects", staff, subjectHandler.List)
	authed.GET("/subjects/:code", staff, subjectHandler.Get)
	authed.POST("/subjects", admin, subjectHandler.Create)

	authed.GET("/academic-years", staff, yearHandler.List)
	authed.GET("/academic-years/current", staff, yearHandler.Current)
	authed.POST("/academic-years", admin, yearHandler.Create)

	authed.POST("/sections", admin, rosterHandler.CreateSection)
	authed.GET("/sections/:id/students", staff, rosterHandler.Roster)
	authed.GET("/sections/:id/allocations", staff, allocationHandler.ListForSection)
	authed.GET("/sections/:id/timetable", staff, timetableHandler.SectionGrid)
	authed.POST("/students", admin, rosterHandler.AddStudent)
	authed.GET("/faculty", staff, rosterHandler.ListFaculty)
	authed.POST("/faculty", admin, rosterHandler.AddFaculty)
	authed.GET("/faculty/:id/timetable", staff, timetableHandler.FacultyWeek)

	authed.PUT("/allocations/general", admin, allocationHandler.ReplaceGeneral)
	authed.PUT("/timetable/slots", admin, timetableHandler.PlaceSlot)

	authed.POST("/tutor-assignments", admin, tutorHandler.Assign)
	authed.GET("/tutor-assignments/mine", tutor, tutorHandler.ListMine)
	authed.DELETE("/tutor-assignments/:facultyId/:sectionId", admin, tutorHandler.Revoke)

	authed.POST("/marks", faculty, assessmentHandler.EnterMarks)
	authed.GET("/marks", staff, assessmentHandler.List)
	authed.GET("/marks/tutor", tutor, assessmentHandler.ListForTutor)
	authed.POST("/marks/verify", tutor, assessmentHandler.Verify)
	authed.POST("/marks/approve", admin, assessmentHandler.Approve)
	authed.POST("/marks/reject", tutor, assessmentHandler.Reject)
	authed.GET("/marks/status", staff, assessmentHandler.StatusReport)
	authed.GET("/marks/export", admin, assessmentHandler.ExportReport)
	authed.GET("/students/:studentId/internal-score", staff, assessmentHandler.InternalScore)

	// Periodic progression sweep, serialized across instances by the
	// Redis lock inside the service.
	var sweepQueue *jobs.Queue
	if cfg.Sweep.Enabled {
		sweepQueue = jobs.NewQueue("term-sweep", func(ctx context.Context, _ jobs.Job) error {
			start := time.Now()
			result, err := progressionSvc.Sweep(ctx)
			if err != nil {
				return err
			}
			metricsSvc.ObserveSweep(result.Advanced, time.Since(start))
			return nil
		}, jobs.QueueConfig{Workers: 1, Logger: logr})
		sweepQueue.Start(context.Background())
		defer sweepQueue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Sweep.Interval)
			defer ticker.Stop()
			for range ticker.C {
				if err := sweepQueue.Enqueue(jobs.Job{Type: "sweep"}); err != nil {
					logr.Sugar().Warnw("failed to enqueue sweep", "error", err)
				}
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
