package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Sam-arojo/Protrust/internal/config"
	"github.com/Sam-arojo/Protrust/internal/db"
	"github.com/Sam-arojo/Protrust/internal/http/handler"
	mw "github.com/Sam-arojo/Protrust/internal/http/middleware"
	"github.com/Sam-arojo/Protrust/internal/model"
	"github.com/Sam-arojo/Protrust/internal/service"
)

func main() {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	database, err := db.Open(cfg)
	if err != nil {
		zap.L().Fatal("failed to open database", zap.Error(err))
	}

	if err := db.AutoMigrate(database); err != nil {
		zap.L().Fatal("failed to run automigrate", zap.Error(err))
	}

	cacheSvc := service.NewCacheManager(cfg)

	// Generation pipeline
	generator := service.NewCodeGenerator(cfg.CodeLength)
	inserter := service.NewBulkInserter(database, generator, cfg.ChunkSize, cfg.InsertWorkers)
	notifier := service.NewNotifier(database, cfg.NotifyWebhookURL)
	batchSvc := service.NewBatchService(database, generator, inserter, notifier, cfg.SyncBudget)
	scheduler := service.NewScheduler(database, batchSvc, cfg.TickBudget, cfg.TickBatchLimit, cfg.TickWallClock)

	// Verification path
	var geo *service.GeoResolver
	if cfg.GeoEnabled {
		geo = service.NewGeoResolver(cfg.GeoBaseURL, cfg.GeoTimeout, cacheSvc, cfg.GeoCacheTTL, cfg.GeoRatePerMin)
	}
	attempts := service.NewAttemptLogger(database, geo)
	attempts.Start(10000)
	verifier := service.NewVerifier(database, generator, attempts)

	// Optional in-process resume loop for deployments without external cron
	if cfg.ResumeInterval > 0 {
		stop := scheduler.StartLoop(cfg.ResumeInterval)
		defer stop()
	}

	// Auto-create admin issuer if configured and no issuers exist
	if cfg.AdminInitUser != "" && cfg.AdminInitPass != "" {
		var issuerCount int64
		database.Model(&model.Issuer{}).Count(&issuerCount)
		if issuerCount == 0 {
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminInitPass), bcrypt.DefaultCost)
			if err != nil {
				zap.L().Fatal("failed to hash admin password", zap.Error(err))
			}

			admin := &model.Issuer{
				Username:     cfg.AdminInitUser,
				PasswordHash: string(hashedPassword),
				IsSuperadmin: true,
			}

			if err := database.Create(admin).Error; err != nil {
				zap.L().Fatal("failed to create admin issuer", zap.Error(err))
			}

			zap.L().Info("admin issuer created", zap.String("username", cfg.AdminInitUser))
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestLogger())
	r.Use(mw.CORS())
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Next()
	})

	api := r.Group("/api")

	authH := handler.NewAuthHandler(database, cfg)
	batchH := handler.NewBatchHandler(database, cfg, batchSvc)
	verifyH := handler.NewVerifyHandler(verifier)
	attemptH := handler.NewAttemptHandler(database)
	resumeH := handler.NewResumeHandler(database, scheduler)

	api.POST("/register", authH.Register)
	api.POST("/login", authH.Login)
	api.POST("/logout", authH.Logout)

	// Public verification: rate limited, no auth. Consumers scan a QR code
	// (query param) or type the code in (JSON body).
	verifyLimited := api.Group("")
	verifyLimited.Use(mw.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	verifyLimited.GET("/verify", verifyH.Verify)
	verifyLimited.POST("/verify", verifyH.Verify)

	// Scheduler trigger for external cron; idempotent
	api.POST("/internal/resume", resumeH.Resume)

	authed := api.Group("")
	authed.Use(mw.RequireAuth(cfg.JWTSecret, cfg.CookieName))
	authed.Use(mw.ValidateSession(database))
	authed.GET("/profile", authH.Profile)
	authed.POST("/batches", batchH.CreateBatch)
	authed.GET("/batches", batchH.ListBatches)
	authed.GET("/batches/:id", mw.ValidateUUIDParam("id"), batchH.GetBatch)
	authed.GET("/batches/:id/codes", mw.ValidateUUIDParam("id"), batchH.ListBatchCodes)
	authed.GET("/attempts", attemptH.ListAttempts)
	authed.GET("/attempts/summary", attemptH.Summary)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	if err := http.ListenAndServe(addr, r); err != nil {
		zap.L().Fatal("server error", zap.Error(err))
	}
}
