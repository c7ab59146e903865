package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-payment-intents/app/controller"
	paymentgrpc "github.com/vibast-solutions/ms-go-payment-intents/app/grpc"
	"github.com/vibast-solutions/ms-go-payment-intents/app/provider"
	"github.com/vibast-solutions/ms-go-payment-intents/app/repository"
	"github.com/vibast-solutions/ms-go-payment-intents/app/service"
	"github.com/vibast-solutions/ms-go-payment-intents/app/txlog"
	"github.com/vibast-solutions/ms-go-payment-intents/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) API and, when GRPC_PORT is set, the gRPC health server.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	if !cfg.Stripe.Configured() {
		logrus.Warn("STRIPE_SECRET_KEY is not set; provider calls will fail")
	}
	if strings.TrimSpace(cfg.Stripe.WebhookSecret) == "" {
		logrus.Warn("STRIPE_WEBHOOK_SECRET is not set; every webhook will be rejected")
	}

	paymentController := controller.NewPaymentController(paymentService, cfg.App)
	e := setupHTTPServer(cfg, paymentController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithFields(logrus.Fields{
			"addr":    httpAddr,
			"service": cfg.App.ServiceName,
		}).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	var (
		grpcSrv   *grpc.Server
		healthSrv *health.Server
	)
	if cfg.GRPC.Port != "" {
		var lis net.Listener
		grpcSrv, healthSrv, lis = setupGRPCServer(cfg, paymentService)
		go func() {
			logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
			if err := grpcSrv.Serve(lis); err != nil {
				logrus.WithError(err).Fatal("gRPC server error")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if healthSrv != nil {
		healthSrv.Shutdown()
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(cfg *config.Config, paymentController *controller.PaymentController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = paymentController.HandleHTTPError

	e.Use(ensureRequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"service":    cfg.App.ServiceName,
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit("1M"))
	if len(cfg.App.CORSAllowedOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins: cfg.App.CORSAllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType, echo.HeaderXRequestID},
		}))
	}

	e.GET("/health", paymentController.Health)
	e.GET("/config", paymentController.Config)
	e.POST("/create-payment-intent", paymentController.CreatePaymentIntent)
	e.GET("/payment/:id", paymentController.GetPayment)
	e.POST("/create-setup-intent", paymentController.CreateSetupIntent)
	e.POST("/save-payment-method", paymentController.SavePaymentMethod)
	e.POST("/stripe-webhook", paymentController.StripeWebhook)

	if dir := strings.TrimSpace(cfg.App.PublicDir); dir != "" {
		e.Static("/", dir)
	}

	return e
}

// ensureRequestID keeps a caller-supplied X-Request-ID and generates one
// otherwise. Browsers and the provider's webhook sender do not set it.
func ensureRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				requestID = uuid.NewString()
				ctx.Request().Header.Set(echo.HeaderXRequestID, requestID)
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func setupGRPCServer(cfg *config.Config, paymentService *service.PaymentService) (*grpc.Server, *health.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			paymentgrpc.RecoveryInterceptor(),
			paymentgrpc.RequestIDInterceptor(),
			paymentgrpc.LoggingInterceptor(),
		),
	)
	healthSrv := paymentgrpc.NewHealthServer(paymentService)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return grpcSrv, healthSrv, lis
}

type transactionLog interface {
	service.TransactionLog
	Close() error
}

// mustCreatePaymentService wires the service around a writable log. Only the
// server appends; commands that inspect the log use
// mustCreateReadOnlyPaymentService so they never write to a live file.
func mustCreatePaymentService() (*config.Config, *service.PaymentService, func()) {
	return buildPaymentService(false)
}

func mustCreateReadOnlyPaymentService() (*config.Config, *service.PaymentService, func()) {
	return buildPaymentService(true)
}

func buildPaymentService(readOnly bool) (*config.Config, *service.PaymentService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	var txLog transactionLog
	if readOnly {
		txLog = txlog.OpenReader(cfg.TransactionLog.Path)
	} else {
		txLog = mustOpenTransactionLog(cfg.TransactionLog.Path)
	}

	var (
		mirror service.LogMirror
		db     *sql.DB
	)
	if cfg.MySQL.DSN != "" {
		db = mustOpenDatabase(cfg.MySQL)
		repo := repository.NewLogEntryRepository(db)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			_ = db.Close()
			logrus.WithError(err).Fatal("Failed to prepare transaction log mirror schema")
		}
		mirror = repo
	}

	stripeProvider := provider.NewStripeProvider(provider.StripeConfig{
		SecretKey:   cfg.Stripe.SecretKey,
		HTTPTimeout: cfg.Stripe.HTTPTimeout,
	})

	paymentService := service.NewPaymentService(
		stripeProvider,
		txLog,
		mirror,
		cfg.Stripe,
		cfg.Payments,
		cfg.Jobs,
	)

	cleanup := func() {
		if err := txLog.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close transaction log")
		}
		if db != nil {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		}
	}

	return cfg, paymentService, cleanup
}

func mustOpenTransactionLog(path string) *txlog.FileLog {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			logrus.WithError(err).Fatal("Failed to create transaction log directory")
		}
	}
	txLog, err := txlog.Open(path)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open transaction log")
	}
	return txLog
}

func mustOpenDatabase(cfg config.MySQLConfig) *sql.DB {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}
