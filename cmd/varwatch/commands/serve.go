package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roeimichael/VarProject/internal/api"
	"github.com/roeimichael/VarProject/internal/api/handlers"
	"github.com/roeimichael/VarProject/internal/portfolio"
	"github.com/roeimichael/VarProject/internal/scheduler"
	"github.com/roeimichael/VarProject/internal/scheduler/jobs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server, scheduler and metrics endpoint",
	Long: `Starts:
- the HTTP API on PORT
- the Prometheus endpoint on METRICS_PORT (METRICS_ENABLED)
- the scheduled evaluation of FINISHED_PORTFOLIO_PATH (EVALUATION_SCHEDULE)
- websocket alert push on /ws/alerts

Endpoints:
  GET  /health                - Health check
  POST /api/risk/evaluate     - Evaluate a JSON snapshot
  GET  /api/risk/limits       - Active limits profile
  GET  /api/runs              - Run history (Postgres)
  GET  /api/runs/latest       - Latest run report
  GET  /api/cache             - Cached tickers
  GET  /api/cache/{symbol}    - One cached ticker
  GET  /api/jobs              - Scheduler statistics
  GET  /ws/alerts             - Live run reports

Example:
  go run ./cmd/varwatch serve
  go run ./cmd/varwatch serve --port 8080 --no-scheduler`,
	RunE: runServe,
}

var (
	servePort        string
	serveNoScheduler bool
	serveRetention   time.Duration
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API port (default PORT)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "do not schedule evaluations")
	serveCmd.Flags().DurationVar(&serveRetention, "history-retention", 90*24*time.Hour, "prune runs older than this (Postgres only)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log
	if servePort != "" {
		cfg.Port = servePort
	}

	// 1. Scheduler
	var sched *scheduler.Scheduler
	if !serveNoScheduler {
		sched = scheduler.New(log, scheduler.WithRetry(3, time.Minute, jobs.Retryable))

		evalJob := jobs.NewRiskEvaluationJob(a.service, cfg.Paths.FinishedPortfolio,
			portfolio.Options{NetLiquidity: cfg.VaR.NetLiquidity}, cfg.EvaluationSchedule, log)
		if err := sched.AddJob(evalJob); err != nil {
			return err
		}
		if a.runs != nil {
			if err := sched.AddJob(jobs.NewRunPruneJob(a.runs, serveRetention, log)); err != nil {
				return err
			}
		}
		sched.Start()
		defer sched.Stop()
	}

	// 2. Router
	h := api.Handlers{
		Risk:   handlers.NewRiskHandler(a.service, nil, log),
		Cache:  handlers.NewCacheHandler(a.cache),
		Alerts: a.hub.ServeWS,
	}
	if a.runs != nil {
		h.Risk = handlers.NewRiskHandler(a.service, a.runs, log)
	}
	if sched != nil {
		h.Jobs = handlers.NewJobsHandler(sched)
	}

	// 3. Servers
	servers := []*api.Server{api.New(cfg, log, api.NewRouter(h, log))}
	if cfg.MetricsEnabled {
		servers = append(servers, api.NewMetricsServer(cfg, log, a.metrics.Handler()))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *api.Server) {
			errCh <- srv.Start()
		}(srv)
	}

	fmt.Printf("\n✅ varwatch running on http://localhost:%s\n", cfg.Port)
	if cfg.MetricsEnabled {
		fmt.Printf("   metrics on http://localhost:%s/metrics\n", cfg.MetricsPort)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-errCh:
		log.WithError(runErr).Error("Server stopped unexpectedly")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Shutdown failed")
		}
	}

	log.Info("varwatch stopped")
	return runErr
}
