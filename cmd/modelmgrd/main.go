package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelmgr/internal/audit"
	"modelmgr/internal/backend"
	"modelmgr/internal/bus"
	"modelmgr/internal/common/fsutil"
	"modelmgr/internal/config"
	"modelmgr/internal/guardrail"
	"modelmgr/internal/health"
	"modelmgr/internal/httpapi"
	"modelmgr/internal/registry"
	"modelmgr/internal/routing"
	"modelmgr/internal/scoring"
	"modelmgr/internal/swap"
)

var version = "dev"

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "modelmgrd",
		Short:         "Model management control plane: scoring, health, hot-swap, guardrails",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var (
		cfgPath       string
		addr          string
		rolesDir      string
		candidatesDir string
		stateDir      string
		logLevel      string
	)

	defaultAddr := ":8080"
	if v := os.Getenv("MODELMGR_ADDR"); v != "" {
		defaultAddr = v
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the management daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{}
			if cfgPath != "" {
				loaded, err := config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			// flags override config file
			if addr != "" {
				cfg.Addr = addr
			}
			if rolesDir != "" {
				cfg.RolesDir = rolesDir
			}
			if candidatesDir != "" {
				cfg.CandidatesDir = candidatesDir
			}
			if stateDir != "" {
				cfg.StateDir = stateDir
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			cfg.ApplyDefaults()
			return run(cfg)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (.yaml|.json|.toml)")
	serve.Flags().StringVar(&addr, "addr", defaultAddr, "HTTP listen address, e.g. :8080")
	serve.Flags().StringVar(&rolesDir, "roles-dir", "", "directory of role profile documents")
	serve.Flags().StringVar(&candidatesDir, "candidates-dir", "", "directory of candidate documents")
	serve.Flags().StringVar(&stateDir, "state-dir", "", "directory for persisted bindings and counters")
	serve.Flags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	root.AddCommand(serve)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	return root
}

func newLogger(cfg config.Log) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var out = os.Stderr
	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func run(cfg config.Config) error {
	log := newLogger(cfg.Log)

	stateDir, err := fsutil.EnsureDir(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("state dir: %w", err)
	}

	candidates := registry.NewCandidateRegistry()
	roles := registry.NewRoleStore()

	if cfg.CandidatesDir != "" {
		docs, err := registry.LoadCandidatesDir(cfg.CandidatesDir)
		if err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}
		for _, c := range docs {
			if _, err := candidates.Register(c); err != nil {
				log.Warn().Str("candidate", c.ID).Err(err).Msg("skipping candidate document")
			}
		}
	}
	if cfg.RolesDir != "" {
		docs, err := registry.LoadRolesDir(cfg.RolesDir)
		if err != nil {
			return fmt.Errorf("load roles: %w", err)
		}
		for _, p := range docs {
			if _, err := roles.Register(p); err != nil {
				log.Warn().Str("role", p.Name).Err(err).Msg("skipping role document")
			}
		}
	}

	table := routing.New(filepath.Join(stateDir, "bindings.json"))
	roles.SetBindingChecker(table)

	auditLog, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer auditLog.Close()

	knowledge := bus.New()
	defer knowledge.Close()

	engine := scoring.NewEngine(scoring.EngineConfig{MaturityCapMonths: cfg.Scoring.MaturityCapMonths})
	selector := scoring.NewSelector(engine, candidates)
	analyzer := scoring.NewAnalyzer(scoring.AnalyzerConfig{
		PerformanceWeight: cfg.Scoring.PerformanceWeight,
		CostWeight:        cfg.Scoring.CostWeight,
		RiskWeight:        cfg.Scoring.RiskWeight,
		BreakEvenWeight:   cfg.Scoring.BreakEvenWeight,
		AdoptThreshold:    cfg.Scoring.AdoptThreshold,
		HorizonMonths:     cfg.Scoring.BreakEvenHorizonMonths,
	}, engine)

	dial := backend.HTTPDialer(cfg.Health.ProbeTimeout)

	monitor := health.NewMonitor(health.Config{
		PollInterval:     cfg.Health.PollInterval,
		ProbeTimeout:     cfg.Health.ProbeTimeout,
		SoftLatency:      cfg.Health.SoftLatency,
		SoftErrRate:      cfg.Health.SoftErrRate,
		FailureThreshold: cfg.Health.FailureThreshold,
		ProbationPasses:  cfg.Health.ProbationPasses,
		StatePath:        filepath.Join(stateDir, "health.json"),
	}, table, candidates, dial, log)
	defer monitor.Close()

	orch := swap.NewOrchestrator(swap.Config{
		WarmupTimeout:    cfg.Swap.WarmupTimeout,
		MigrationTimeout: cfg.Swap.MigrationTimeout,
		ProbeTimeout:     cfg.Health.ProbeTimeout,
		CommitRetries:    cfg.Swap.CommitRetries,
		ShiftSteps:       cfg.Swap.ShiftSteps,
		StepInterval:     cfg.Health.PollInterval,
		ProbationPasses:  cfg.Health.ProbationPasses,
	}, roles, candidates, selector, table, dial, auditLog, knowledge, log)

	// bind every registered role up front and start watching it
	for _, p := range roles.List() {
		if _, err := orch.EnsureBinding(p.Name); err != nil {
			log.Warn().Str("role", p.Name).Err(err).Msg("role left unbound")
			continue
		}
		monitor.Watch(p.Name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go orch.Run(ctx, monitor.Events())

	pipeline := guardrail.NewPipeline(roles, candidates, table, dial, auditLog, log)

	httpapi.SetMaxBodyBytes(int64(cfg.MaxBodyKB) * 1024)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)

	mux := httpapi.NewMux(httpapi.Deps{
		Candidates: candidates,
		Roles:      roles,
		Table:      table,
		Health:     monitor,
		Swapper:    orch,
		Pipeline:   pipeline,
		Analyzer:   analyzer,
		Log:        log,
		Started:    time.Now(),
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("state_dir", stateDir).Msg("modelmgrd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
