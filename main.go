package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"civic-reports-service/auth"
	"civic-reports-service/cache"
	"civic-reports-service/config"
	"civic-reports-service/database"
	"civic-reports-service/email"
	"civic-reports-service/handlers"
	"civic-reports-service/livefeed"
	"civic-reports-service/metrics"
	"civic-reports-service/middleware"
	"civic-reports-service/models"
	"civic-reports-service/openai"
	"civic-reports-service/osm"
	"civic-reports-service/rabbitmq"
	"civic-reports-service/utils"
	"civic-reports-service/verify"
	"civic-reports-service/version"
	ws "civic-reports-service/websocket"

	"github.com/apex/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "civic-reports-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := utils.DBConnect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	metrics.Register()

	// Services
	wards := database.NewWardsService(db, cfg.MaxWardDistanceKm)
	authorities := database.NewAuthorityService(db)
	citizens := database.NewCitizenService(db)
	reports := database.NewReportsService(db, wards, authorities)

	ctx := context.Background()
	if err := wards.LoadWardFiles(ctx, cfg.WardFilesDir); err != nil {
		log.Warnf("Ward reference data not loaded: %v", err)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, map[string]auth.ProfileResolver{
		models.RoleUser:      citizens,
		models.RoleAdmin:     authorities,
		models.RoleAdminHead: authorities,
	})

	// Reverse geocoding with a MySQL-backed cache.
	locations := osm.NewCachedLocationService(db, osm.NewClient(cfg.NominatimURL))
	if err := locations.CreateCacheTable(); err != nil {
		log.Warnf("Failed to create location cache table: %v", err)
	}

	aiClient := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	verifier := verify.NewService(aiClient, cache.New(cfg.VerificationCacheTTL))

	var emails *email.Sender
	if cfg.SendGridAPIKey != "" {
		emails = email.NewSender(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromEmail)
	} else {
		log.Warn("SENDGRID_API_KEY not set, email notifications disabled")
	}

	var publisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warnf("RabbitMQ unavailable, events disabled: %v", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// Live feed; Start runs the hub loop.
	hub := ws.NewHub()
	feed := livefeed.NewService(reports, hub)
	if err := feed.Start(ctx); err != nil {
		log.Fatalf("Failed to start live feed: %v", err)
	}
	defer feed.Stop()

	// Handlers
	reportsHandler := handlers.NewReportsHandler(reports, authorities, citizens, tokens, locations, verifier, publisher, emails)
	accountsHandler := handlers.NewAccountsHandler(citizens, authorities, tokens, emails)
	assistHandler := handlers.NewAssistHandler(reports, aiClient)
	wsHandler := handlers.NewWebSocketHandler(hub)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/health", reportsHandler.HealthCheck)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get(serviceName))
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v3")
	{
		api.POST("/register", accountsHandler.Register)
		api.POST("/verify_otp", accountsHandler.VerifyOTP)
		api.POST("/login", accountsHandler.Login)
		api.POST("/refresh", accountsHandler.RefreshToken)

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware(tokens))
		{
			authed.POST("/register_admin_head",
				middleware.RequireRoles(models.RoleAdmin),
				accountsHandler.RegisterAuthority)

			authed.POST("/reports",
				middleware.RequireRoles(models.RoleUser),
				reportsHandler.CreateReport)
			authed.GET("/reports", reportsHandler.ListReports)
			authed.GET("/reports/:seq", reportsHandler.GetReport)
			authed.POST("/reports/:seq/status",
				middleware.RequireRoles(models.RoleAdmin, models.RoleAdminHead),
				reportsHandler.UpdateStatus)
			authed.POST("/reports/:seq/forward",
				middleware.RequireRoles(models.RoleAdmin, models.RoleAdminHead),
				reportsHandler.Forward)
			authed.POST("/reports/:seq/resubmit",
				middleware.RequireRoles(models.RoleUser),
				reportsHandler.Resubmit)

			authed.GET("/reports/:seq/suggest_rejection_reason",
				middleware.RequireRoles(models.RoleAdmin, models.RoleAdminHead),
				assistHandler.SuggestRejectionReason)
			authed.GET("/reports/:seq/summarize",
				middleware.RequireRoles(models.RoleAdmin, models.RoleAdminHead),
				assistHandler.Summarize)
		}
	}

	router.GET("/ws/live", wsHandler.HandleWebSocket)
	router.GET("/ws/stats", wsHandler.Stats)

	// Graceful shutdown on SIGINT/SIGTERM.
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Infof("Starting %s on port %s", serviceName, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Errorf("Server shutdown: %v", err)
	}
}
