package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/service"
	"github.com/vibast-solutions/ms-go-checkout-payments/config"
)

var workerMode bool

// batchJob is one maintenance batch exposed as a subcommand.
type batchJob struct {
	name     string
	interval func(cfg config.JobsConfig) time.Duration
	run      func(ctx context.Context, s *service.PaymentService) error
}

var (
	reconcileJob = batchJob{
		name:     "reconcile",
		interval: func(cfg config.JobsConfig) time.Duration { return cfg.ReconcileInterval },
		run: func(ctx context.Context, s *service.PaymentService) error {
			return s.RunReconcileBatch(ctx)
		},
	}
	mailDispatchJob = batchJob{
		name:     "mail_dispatch",
		interval: func(cfg config.JobsConfig) time.Duration { return cfg.MailDispatchInterval },
		run: func(ctx context.Context, s *service.PaymentService) error {
			return s.RunMailDispatchBatch(ctx)
		},
	}
	expirePendingJob = batchJob{
		name:     "expire_pending",
		interval: func(cfg config.JobsConfig) time.Duration { return cfg.ExpirePendingInterval },
		run: func(ctx context.Context, s *service.PaymentService) error {
			return s.RunExpirePendingBatch(ctx)
		},
	}
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-verify payments that stayed pending and settle their orders",
	Run:   reconcileJob.command,
}

var mailCmd = &cobra.Command{
	Use:   "mail",
	Short: "Mail outbox commands",
}

var mailDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver queued order confirmation mails to the mail relay",
	Run:   mailDispatchJob.command,
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expiration commands",
}

var expirePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Mark payments pending past the timeout as failed",
	Run:   expirePendingJob.command,
}

func init() {
	rootCmd.AddCommand(reconcileCmd, mailCmd, expireCmd)
	mailCmd.AddCommand(mailDispatchCmd)
	expireCmd.AddCommand(expirePendingCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Keep running and repeat the batch on the configured interval")
}

func (j batchJob) command(_ *cobra.Command, _ []string) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logrus.WithField("job", j.name)
	if !workerMode {
		j.runOnce(ctx, logger, paymentService)
		return
	}

	interval := j.interval(cfg.Jobs)
	if interval <= 0 {
		logger.Fatal("worker interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.WithField("interval", interval.String()).Info("worker started")
	j.runOnce(ctx, logger, paymentService)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx, logger, paymentService)
		}
	}
}

func (j batchJob) runOnce(ctx context.Context, logger logrus.FieldLogger, s *service.PaymentService) {
	start := time.Now()
	err := j.run(ctx, s)
	logger = logger.WithField("latency", time.Since(start).String())
	if err != nil {
		logger.WithError(err).Error("job_failed")
		return
	}
	logger.Info("job_completed")
}
