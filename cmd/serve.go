package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raceatlas/racedir-cli/internal/importer"
	"github.com/raceatlas/racedir-cli/internal/model"
	"github.com/raceatlas/racedir-cli/internal/store"
	"github.com/raceatlas/racedir-cli/pkg/runsignup"
)

var (
	servePort     int
	serveSchedule string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin server, optionally with scheduled refreshes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveSchedule != "" {
			cfg.Server.Schedule = serveSchedule
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := initRunSignup()
		if err != nil {
			return err
		}

		srvState := &serveState{
			store:  s,
			imp:    initImporter(s),
			client: client,
		}

		if schedule := cfg.Server.Schedule; schedule != "" {
			c := cron.New()
			if _, err := c.AddFunc(schedule, func() { srvState.runRefresh(ctx) }); err != nil {
				return eris.Wrapf(err, "parse schedule %q", schedule)
			}
			c.Start()
			defer c.Stop()
			zap.L().Info("refresh schedule active", zap.String("schedule", schedule))
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: srvState.router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type serveState struct {
	store  store.Store
	imp    *importer.Importer
	client *runsignup.Client

	refreshing atomic.Bool
}

func (st *serveState) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/refresh", func(w http.ResponseWriter, req *http.Request) {
		if !st.refreshing.CompareAndSwap(false, true) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "refresh already running"})
			return
		}
		// The request context dies with the response; the refresh
		// outlives it.
		go func() {
			defer st.refreshing.Store(false)
			st.runRefreshLocked(context.Background())
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.store.LastImportRun(req.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if run == nil {
			writeJSON(w, http.StatusOK, map[string]any{"refreshing": st.refreshing.Load()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"refreshing": st.refreshing.Load(),
			"last_run":   run,
		})
	})

	return r
}

// runRefresh is the cron entrypoint. Overlapping triggers are dropped.
func (st *serveState) runRefresh(ctx context.Context) {
	if !st.refreshing.CompareAndSwap(false, true) {
		zap.L().Warn("refresh already running, skipping scheduled trigger")
		return
	}
	defer st.refreshing.Store(false)
	st.runRefreshLocked(ctx)
}

func (st *serveState) runRefreshLocked(ctx context.Context) {
	fetch := func(ctx context.Context) ([]model.RawRace, error) {
		records, errs := st.client.FetchStates(ctx, cfg.Import.States, lastRefreshCutoff(ctx, st.store))
		if len(errs) > 0 {
			return records, eris.Errorf("%d of %d state partitions failed", len(errs), len(cfg.Import.States))
		}
		return records, nil
	}
	if _, err := st.imp.Refresh(ctx, runsignup.SourceName, fetch, cfg.Import.InactiveAfter); err != nil {
		zap.L().Error("scheduled refresh failed", zap.Error(err))
	}
}

// lastRefreshCutoff narrows incremental fetches to listings modified
// since the previous run. A missing or unreadable run log means a full
// fetch.
func lastRefreshCutoff(ctx context.Context, s store.Store) (cutoff time.Time) {
	run, err := s.LastImportRun(ctx)
	if err != nil || run == nil {
		return cutoff
	}
	return run.StartedAt
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "cron expression for automatic refreshes (default from config)")
	rootCmd.AddCommand(serveCmd)
}
