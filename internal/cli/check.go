package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/worker"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one SLA check and print its summary",
	Long: `check evaluates every active SLA timer once, enqueues the warnings and
breach alerts that are due, and prints the pass summary. It is meant for an
external scheduler such as a system cron or a Kubernetes CronJob.

With the in-memory queue the notifications are delivered before the command
exits, since no other process can read them.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	deliver := a.cfg.Queue.Driver == config.QueueDriverMemory
	summary, err := checkAndDeliver(ctx, a.checker, a.worker, passTimeout(a.cfg.SLA), deliver, a.logger)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}

// passTimeout bounds one pass a little below the lease TTL so the lease is still held
// when the pass gives up.
func passTimeout(cfg config.SLAConfig) time.Duration {
	return cfg.LockTTL * 9 / 10
}

// checkAndDeliver runs one pass. With deliver set the worker consumes the queue while
// the pass fills it, then drains whatever is left, so a pass that produces more events
// than the queue holds loses none of them.
func checkAndDeliver(ctx context.Context, runner worker.PassRunner, w *worker.NotificationWorker, timeout time.Duration, deliver bool, logger *zap.Logger) (string, error) {
	passCtx, passCancel := context.WithTimeout(ctx, timeout)
	defer passCancel()

	if !deliver {
		return runner.CheckAll(passCtx)
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(workerCtx)
	}()

	summary, err := runner.CheckAll(passCtx)
	stopWorker()
	wg.Wait()
	if err != nil {
		return "", err
	}

	drained, err := w.Drain(ctx)
	if err != nil {
		return "", fmt.Errorf("deliver notifications: %w", err)
	}
	logger.Info("notifications drained", zap.Int("jobs", drained))
	return summary, nil
}
