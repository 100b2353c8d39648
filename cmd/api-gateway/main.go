package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-records-api/api/swagger"
	"github.com/noah-isme/academic-records-api/internal/grading"
	"github.com/noah-isme/academic-records-api/internal/handler"
	internalmiddleware "github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/cache"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	"github.com/noah-isme/academic-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/requestid"
	"github.com/noah-isme/academic-records-api/pkg/tracing"
)

// @title Academic Records API
// @version 1.0.0
// @description Course registration, grade approval and academic progression.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logr.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	scale, err := grading.LoadScaleFile(cfg.Grading.ScaleFile)
	if err != nil {
		logr.Fatal("failed to load grading scale", zap.Error(err))
	}
	letters := scale.Letters()
	for _, grade := range cfg.Registration.PassingGrades {
		if !slices.Contains(letters, grade) {
			logr.Fatal("passing grade is not defined by the grading scale", zap.String("grade", grade), zap.Strings("letters", letters))
		}
	}

	metricsSvc := service.NewMetricsService()
	retrier := database.NewRetrier(cfg.Retry, logr, metricsSvc)

	db, err := database.NewPostgres(ctx, cfg.Database, retrier)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	checks := map[string]handler.Check{"postgres": db.PingContext}

	var cacheRepo *repository.CacheRepository
	if cfg.Transcript.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, transcript cache disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client, cfg.Redis.Namespace, logr)
			defer cacheRepo.Close() //nolint:errcheck
			checks["redis"] = cacheRepo.Ping
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	calendarRepo := repository.NewAcademicCalendarRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	prerequisiteRepo := repository.NewPrerequisiteRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	var transcriptCache *service.CacheService
	if cacheRepo != nil {
		transcriptCache = service.NewCacheService(cacheRepo, metricsSvc, cfg.Transcript.CacheTTL, logr, true)
	}

	authSvc := service.NewAuthService(userRepo, studentRepo, retrier, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	quotaSvc := service.NewQuotaService(registrationRepo, studentRepo, calendarRepo, retrier, logr)
	prerequisiteSvc := service.NewPrerequisiteService(prerequisiteRepo, courseRepo, retrier, validate, logr)
	registrationSvc := service.NewRegistrationService(service.RegistrationServiceParams{
		Repo:          registrationRepo,
		Courses:       courseRepo,
		Students:      studentRepo,
		Semesters:     calendarRepo,
		Prerequisites: prerequisiteRepo,
		Grades:        gradeRepo,
		Quota:         quotaSvc,
		Config:        cfg.Registration,
		Retrier:       retrier,
		Metrics:       metricsSvc,
		Validator:     validate,
		Logger:        logr,
	})
	academicParams := service.AcademicServiceParams{
		Results:       gradeRepo,
		Students:      studentRepo,
		Quota:         quotaSvc,
		Scale:         scale,
		PassingGrades: cfg.Registration.PassingGrades,
		CacheTTL:      cfg.Transcript.CacheTTL,
		Retrier:       retrier,
		Logger:        logr,
	}
	if transcriptCache != nil {
		academicParams.Cache = transcriptCache
	}
	academicSvc := service.NewAcademicService(academicParams)
	gradeSvc := service.NewGradeService(service.GradeServiceParams{
		Repo:          gradeRepo,
		Registrations: registrationRepo,
		Courses:       courseRepo,
		Scale:         scale,
		Transcripts:   academicSvc,
		Config:        cfg.Grading,
		Retrier:       retrier,
		Metrics:       metricsSvc,
		Validator:     validate,
		Logger:        logr,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)
	courseHandler := handler.NewCourseHandler(prerequisiteSvc)
	academicHandler := handler.NewAcademicHandler(academicSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)

	perm := internalmiddleware.RequirePermission

	registrations := secured.Group("/registrations")
	registrations.GET("", perm(models.PermViewRegistrations), registrationHandler.List)
	registrations.POST("", perm(models.PermRegisterCourses), registrationHandler.Register)
	registrations.POST("/bulk-approve", perm(models.PermApproveRegistrations), registrationHandler.BulkApprove)
	registrations.GET("/:id", perm(models.PermViewRegistrations), registrationHandler.Get)
	registrations.POST("/:id/approve", perm(models.PermApproveRegistrations), registrationHandler.Approve)
	registrations.POST("/:id/reject", perm(models.PermApproveRegistrations), registrationHandler.Reject)
	registrations.POST("/:id/drop", perm(models.PermRegisterCourses), registrationHandler.Drop)

	grades := secured.Group("/grades")
	grades.GET("", perm(models.PermViewGrades), gradeHandler.List)
	grades.POST("", perm(models.PermEnterGrades), gradeHandler.Enter)
	grades.POST("/bulk", perm(models.PermEnterGrades), gradeHandler.Bulk)
	grades.POST("/submit", perm(models.PermEnterGrades), gradeHandler.Submit)
	grades.POST("/approve", perm(models.PermApproveGrades), gradeHandler.Approve)
	grades.POST("/reopen", perm(models.PermReopenGrades), gradeHandler.Reopen)

	students := secured.Group("/students/:id", perm(models.PermViewResults))
	students.GET("/gpa", academicHandler.GPA)
	students.GET("/cgpa", academicHandler.CGPA)
	students.GET("/standing", academicHandler.Standing)
	students.GET("/transcript", academicHandler.Transcript)
	students.GET("/transcript/export", academicHandler.ExportTranscript)

	courses := secured.Group("/courses/:id")
	courses.GET("/prerequisites", perm(models.PermViewCatalog), courseHandler.Prerequisites)
	courses.GET("/dependents", perm(models.PermViewCatalog), courseHandler.Dependents)
	courses.POST("/prerequisites", perm(models.PermManageCatalog), courseHandler.AddPrerequisite)
	courses.DELETE("/prerequisites/:prereqId", perm(models.PermManageCatalog), courseHandler.RemovePrerequisite)
	courses.PATCH("/active", perm(models.PermManageCatalog), courseHandler.SetActive)

	secured.GET("/classifications", perm(models.PermViewCatalog), academicHandler.Classification)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
