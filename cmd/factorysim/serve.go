package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"factorysim.ai/internal/config"
	"factorysim.ai/internal/metrics"
	"factorysim.ai/internal/persistence/indexdb"
	persistlog "factorysim.ai/internal/persistence/log"
	"factorysim.ai/internal/sim/facility"
	"factorysim.ai/internal/sim/world"
	"factorysim.ai/internal/transport/ws"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the world in real time behind a websocket endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runServe(ctx, cfg)
		},
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "http listen address")
	f.Bool("disable-db", false, "disable the SQLite index (facility state is then kept in memory only)")
	f.Bool("metrics", true, "expose Prometheus metrics on /metrics")
	_ = opts.v.BindPFlag("addr", f.Lookup("addr"))
	_ = opts.v.BindPFlag("disable_db", f.Lookup("disable-db"))
	_ = opts.v.BindPFlag("metrics_enabled", f.Lookup("metrics"))
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg, os.Stdout)
	y, err := loadYard(cfg, log)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	log = log.With().Str("run", runID).Logger()

	var (
		saver facility.Saver = world.NewMemorySaver(nil)
		idx   *indexdb.SQLiteIndex
	)
	if !cfg.DisableDB {
		idx, err = indexdb.OpenSQLite(cfg.IndexPath())
		if err != nil {
			return err
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cfg.ConfigsDir, y.cats, y.tune); err != nil {
			log.Warn().Err(err).Msg("index: upsert catalogs")
		}
		saver = idx
	}

	var sink world.MetricsSink
	var collector *metrics.WorldCollector
	if cfg.MetricsEnabled {
		collector, err = metrics.NewWorldCollector(y.layout.WorldID)
		if err != nil {
			return err
		}
		sink = collector
	}

	w, err := y.newWorld("", runID, saver, sink, log)
	if err != nil {
		return err
	}

	runDir := cfg.RunDir(runID)
	journalOpts := persistlog.Options{OnSeal: func(path string) {
		log.Info().Str("path", path).Msg("journal segment sealed")
	}}
	tickLog := persistlog.NewTickLoggerWithOptions(runDir, journalOpts)
	auditLog := persistlog.NewAuditLoggerWithOptions(runDir, journalOpts)
	defer tickLog.Close()
	defer auditLog.Close()
	ticks := multiTickLogger{tickLog}
	audits := multiAuditLogger{auditLog}
	if idx != nil {
		ticks = append(ticks, idx)
		audits = append(audits, idx)
		w.SetEventIndex(idx)
	}
	w.SetTickLogger(ticks)
	w.SetAuditLogger(audits)

	var events ws.EventQuery
	if idx != nil {
		events = idx
	}
	wsSrv := ws.NewServer(w, events, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	mux.HandleFunc("/admin/v1/status", wsSrv.StatusHandler())
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	worldDone := make(chan error, 1)
	go func() { worldDone <- w.Run(ctx) }()

	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("run_dir", runDir).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-srvErr:
		runErr = err
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)

	w.Stop()
	if err := <-worldDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("world stopped")
	}
	w.Shutdown()
	if idx != nil {
		st := idx.Stats()
		log.Info().Int("queue_depth", st.QueueDepth).Uint64("dropped", st.DropTotal).Msg("index writer drained")
	}
	log.Info().Uint64("tick", w.CurrentTick()).Uint64("journal_lines", tickLog.Lines()).Msg("stopped")
	return runErr
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
