package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/auth"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/controller"
	paymentgrpc "github.com/vibast-solutions/ms-go-checkout-payments/app/grpc"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/lock"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/provider"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/repository"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/service"
	"github.com/vibast-solutions/ms-go-checkout-payments/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the checkout payments service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	paymentController := controller.NewPaymentController(paymentService)
	grpcPaymentServer := paymentgrpc.NewServer(paymentService)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(cfg, paymentController, echoInternalAuthMiddleware)
	grpcSrv, lis := setupGRPCServer(cfg, grpcPaymentServer, grpcInternalAuthMiddleware)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

// setupHTTPServer wires three audiences: public checkout and provider webhook
// routes, admin routes behind a bearer token, and /internal routes behind the
// internal service auth.
func setupHTTPServer(
	cfg *config.Config,
	paymentController *controller.PaymentController,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
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
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: allowedOrigins(cfg.Frontend.BaseURL),
	}))

	e.GET("/health", paymentController.Health)

	payments := e.Group("/payments")
	payments.POST("/initialize/:provider", paymentController.InitializePayment)
	payments.GET("/verify/:provider/:reference", paymentController.VerifyPayment)
	payments.POST("/webhook/flutterwave", paymentController.FlutterwaveWebhook)
	payments.POST("/webhook/paystack", paymentController.PaystackWebhook)

	adminOnly := auth.AdminMiddleware(cfg.Auth)
	payments.POST("/refund/:transactionId", paymentController.InitiateRefund, adminOnly)
	payments.GET("/transactions", paymentController.ListTransactions, adminOnly)

	internal := e.Group("/internal", internalAuthMiddleware.RequireInternalAccess(cfg.App.ServiceName))
	internal.GET("/payments/:reference", paymentController.GetPayment)
	internal.GET("/transactions", paymentController.ListTransactions)

	return e
}

func allowedOrigins(frontendURL string) []string {
	frontendURL = strings.TrimSpace(frontendURL)
	if frontendURL == "" {
		return []string{"*"}
	}
	return []string{frontendURL}
}

func setupGRPCServer(
	cfg *config.Config,
	paymentServer *paymentgrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
) (*grpc.Server, net.Listener) {
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
			paymentgrpc.ExceptHealth(internalAuthMiddleware.UnaryRequireInternalAccess(cfg.App.ServiceName)),
		),
	)
	paymentgrpc.RegisterPaymentsServiceServer(grpcSrv, paymentServer)
	paymentgrpc.RegisterHealth(grpcSrv)

	return grpcSrv, lis
}

func mustCreatePaymentService() (*config.Config, *service.PaymentService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	locker, closeLocker := mustCreateLocker(cfg.Redis)

	flutterwaveProvider := provider.NewFlutterwaveProvider(provider.FlutterwaveConfig{
		PublicKey:   cfg.Flutterwave.PublicKey,
		SecretKey:   cfg.Flutterwave.SecretKey,
		SecretHash:  cfg.Flutterwave.SecretHash,
		BaseURL:     cfg.Flutterwave.BaseURL,
		HTTPTimeout: cfg.Flutterwave.HTTPTimeout,
	})
	paystackProvider := provider.NewPaystackProvider(provider.PaystackConfig{
		PublicKey:     cfg.Paystack.PublicKey,
		SecretKey:     cfg.Paystack.SecretKey,
		WebhookSecret: cfg.Paystack.WebhookSecret,
		BaseURL:       cfg.Paystack.BaseURL,
		HTTPTimeout:   cfg.Paystack.HTTPTimeout,
	})
	providerRegistry := provider.NewRegistry(flutterwaveProvider, paystackProvider)

	for _, p := range []provider.Provider{flutterwaveProvider, paystackProvider} {
		logrus.WithField("provider", p.Code()).WithField("enabled", p.Enabled()).Info("Payment provider configured")
	}

	paymentService := service.NewPaymentService(
		service.Repositories{
			Orders:        repository.NewOrderRepository(db),
			Payments:      repository.NewPaymentRepository(db),
			References:    repository.NewPaymentReferenceRepository(db),
			Transactions:  repository.NewTransactionRepository(db),
			Refunds:       repository.NewRefundRepository(db),
			Notifications: repository.NewNotificationRepository(db),
			Mail:          repository.NewMailMessageRepository(db),
			Webhooks:      repository.NewProviderWebhookRepository(db),
		},
		providerRegistry,
		locker,
		cfg.Payments,
		cfg.Frontend,
		cfg.Mail,
	)

	cleanup := func() {
		closeLocker()
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, paymentService, cleanup
}

// mustCreateLocker returns a Redis-backed per-order lock when REDIS_ADDR is set, so
// several replicas serialize settlement of one order. Otherwise the lock is
// process-local.
func mustCreateLocker(cfg config.RedisConfig) (lock.Locker, func()) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return lock.NewMemoryLocker(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logrus.WithError(err).Fatal("Failed to ping redis")
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis")
		}
	}

	return lock.NewRedisLocker(client, cfg.KeyPrefix, cfg.LockTTL), closeFn
}
