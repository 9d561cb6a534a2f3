package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-mx/internal/metrics"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/scheduler"
	"github.com/sells-group/leadgen-mx/internal/scraper"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scraper API server (and scheduler when enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Scheduler.Enabled {
			sched, err := scheduler.New(cfg.Scheduler.Schedule, env.Scraper)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return eris.Wrap(err, "server listen")
		}
		srv := &http.Server{Handler: buildMux(env)}

		zap.L().Info("starting server", zap.Int("port", port))
		return serveUntilDone(ctx, srv, ln)
	},
}

const shutdownTimeout = 10 * time.Second

// serveUntilDone serves HTTP on ln until ctx is canceled, then drains
// in-flight requests. The shutdown deadline is independent of ctx, which
// is already canceled by the time Shutdown runs.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server serve")
	}
	return nil
}

// buildMux wires the HTTP API routes.
func buildMux(env *scraperEnv) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := env.Store.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"status": status})
	})

	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /scrape/start", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Sources    []string `json:"sources"`
			Categories []string `json:"categories"`
			MaxPages   int      `json:"max_pages"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
		}

		opts := scraper.StartOptions{
			Categories: req.Categories,
			MaxPages:   req.MaxPages,
			Type:       model.SessionManual,
		}
		for _, raw := range req.Sources {
			source, err := model.ParseSource(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			opts.Sources = append(opts.Sources, source)
		}

		// The run outlives the request; detach it from the request context.
		handle, err := env.Scraper.Start(context.WithoutCancel(r.Context()), opts)
		if err != nil {
			switch {
			case eris.Is(err, scraper.ErrAlreadyRunning):
				writeJSON(w, http.StatusConflict, map[string]string{"error": "a scraping session is already running"})
			case eris.Is(err, scraper.ErrUnknownSource), eris.Is(err, scraper.ErrSourceDisabled):
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			default:
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			}
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":     "started",
			"session_id": handle.SessionID,
		})
	})

	mux.HandleFunc("POST /scrape/stop", func(w http.ResponseWriter, r *http.Request) {
		if !env.Scraper.Stop() {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "no scraping session is running"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
	})

	mux.HandleFunc("GET /scrape/status", func(w http.ResponseWriter, r *http.Request) {
		type statusResponse struct {
			scraper.Status
			Stats          *model.SessionStats `json:"stats,omitempty"`
			EnabledSources []model.Source      `json:"enabled_sources"`
		}
		resp := statusResponse{Status: env.Scraper.Status()}
		if stats, err := env.Tracker.LoadStats(r.Context()); err == nil {
			resp.Stats = stats
		}
		for _, sc := range env.Scraper.AvailableSources() {
			if sc.Enabled {
				resp.EnabledSources = append(resp.EnabledSources, sc.ID)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /sources", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, env.Scraper.AvailableSources())
	})

	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 20)
		sessions, err := env.Store.ListSessions(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	})

	mux.HandleFunc("GET /leads", func(w http.ResponseWriter, r *http.Request) {
		filter := model.LeadFilter{
			SessionID: r.URL.Query().Get("session_id"),
			Limit:     queryInt(r, "limit", 100),
			Offset:    queryInt(r, "offset", 0),
		}
		if raw := r.URL.Query().Get("source"); raw != "" {
			source, err := model.ParseSource(raw)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			filter.Source = source
		}
		found, err := env.Store.ListLeads(r.Context(), filter)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, found)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n < 0 {
		return def
	}
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
