package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/zatca-service/internal/api"
	"github.com/hypernova-labs/zatca-service/internal/config"
	"github.com/hypernova-labs/zatca-service/internal/database"
	"github.com/hypernova-labs/zatca-service/internal/email"
	"github.com/hypernova-labs/zatca-service/internal/services"
	"github.com/hypernova-labs/zatca-service/internal/signing"
	"github.com/hypernova-labs/zatca-service/internal/zatca"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting ZATCA invoicing service...")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()
	db.LogStats(logger)

	// Redis is required: the per-invoice processing lock lives there
	redis, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to Redis: %v", err)
	}
	defer redis.Close()

	var storageClient *database.StorageClient
	if cfg.Storage.Endpoint != "" && cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		storageClient, err = database.NewStorageClient(&cfg.Storage, logger)
		if err != nil {
			logger.Warnf("Error initializing storage client: %v", err)
			storageClient = nil
		} else if err := storageClient.HealthCheck(); err != nil {
			logger.Warnf("Storage health check failed: %v", err)
		} else {
			logger.Info("Archive storage connection healthy")
		}
	} else {
		logger.Warn("Archive storage credentials not provided, artifact archival will not be available")
	}

	var resendService *email.ResendService
	if cfg.Email.ResendAPIKey != "" {
		resendService = email.NewResendService(cfg.Email, cfg.Server.BaseURL, logger)
		logger.Info("Email service initialized")
	} else {
		logger.Warn("Resend API key not provided, email notifications will not be available")
	}

	signer, err := signing.NewSigner(cfg.Signing, logger)
	if err != nil {
		logger.Fatalf("Error loading signing key material: %v", err)
	}

	zatcaClient := zatca.NewClient(zatca.ClientConfig{
		BaseURL:  cfg.ZATCA.BaseURL,
		TestMode: cfg.ZATCA.TestMode,
		APIKey:   cfg.ZATCA.APIKey,
		Secret:   cfg.ZATCA.Secret,
		Timeout:  cfg.ZATCA.Timeout,
	}, logger)

	invoiceService := services.NewInvoiceService(
		db,
		redis,
		storageClient,
		signer,
		zatcaClient,
		resendService,
		cfg.Seller,
		logger,
	)

	apiKeyRepo := database.NewAPIKeyRepository(db, logger)

	apiHandler := api.NewAPI(invoiceService, apiKeyRepo, logger)

	router := setupRouter(apiHandler, cfg, db, redis, storageClient)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configures the logger from the logging configuration
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupRouter configures the main router
func setupRouter(apiHandler *api.API, cfg *config.Config, db *database.DB, redis *database.Redis, storageClient *database.StorageClient) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware for development
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(204)
				return
			}

			c.Next()
		})
	}

	// Health check. Storage is reported but does not gate the status, the
	// service submits invoices fine without the archive.
	router.GET("/health", func(c *gin.Context) {
		checks := gin.H{}
		healthy := true

		if err := db.HealthCheck(); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}

		if err := redis.HealthCheck(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}

		if storageClient != nil {
			if err := storageClient.HealthCheck(); err != nil {
				checks["storage"] = err.Error()
			} else {
				checks["storage"] = "ok"
			}
		} else {
			checks["storage"] = "not configured"
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}

		c.JSON(status, gin.H{
			"status":    state,
			"timestamp": time.Now().UTC(),
			"service":   "zatca-service",
			"checks":    checks,
		})
	})

	// API v1, all routes behind API key authentication
	v1 := router.Group("/api/v1")
	v1.Use(apiHandler.AuthMiddleware())
	{
		v1.POST("/invoices", apiHandler.CreateInvoice)
		v1.GET("/invoices/:id", apiHandler.GetInvoice)
		v1.POST("/invoices/:id/process", apiHandler.ProcessInvoice)
		v1.POST("/invoices/:id/cancel", apiHandler.CancelInvoice)
		v1.POST("/invoices/:id/compliance-check", apiHandler.CheckCompliance)
		v1.GET("/invoices/:id/zatca-status", apiHandler.GetZATCAStatus)
		v1.GET("/invoices/:id/files/:type", apiHandler.DownloadInvoiceFile)

		v1.POST("/admin/api-keys", apiHandler.CreateAPIKey)
	}

	return router
}
