package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadforge/internal/lead"
	"github.com/sells-group/leadforge/internal/pipeline"
	"github.com/sells-group/leadforge/internal/resilience"
	"github.com/sells-group/leadforge/internal/smtpprobe"
	"github.com/sells-group/leadforge/internal/store"
	"github.com/sells-group/leadforge/pkg/anthropic"
	"github.com/sells-group/leadforge/pkg/google"
)

// leadTimeout bounds a synchronous /lead run. A production deployment
// would move this behind a job model.
const leadTimeout = 30 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline and its HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	// The pool connects lazily; wait for the store before serving.
	if err := resilience.Do(ctx, resilience.DefaultRetryConfig(), st.Ping); err != nil {
		return err
	}
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	var searchOpts []google.Option
	if cfg.Search.RatePerSecond > 0 {
		searchOpts = append(searchOpts,
			google.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Search.RatePerSecond), 1)))
	}

	p := pipeline.New(
		st,
		google.NewClient(searchOpts...),
		smtpprobe.New(),
		anthropic.NewClient(cfg.Anthropic.Key),
		pipeline.Options{
			Model:            cfg.Anthropic.Model,
			QualifierEnabled: cfg.Pipeline.QualifierEnabled,
			CatalogEnabled:   cfg.Pipeline.CatalogEnabled,
		},
	)
	p.Start(ctx)

	router := buildRouter(p, st)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.Int("port", cfg.Server.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildRouter wires the interactive surface. Pipeline errors surface to
// callers as 200 with a plain-text body; the pipeline is re-driven by
// re-invocation, not by error codes.
func buildRouter(p *pipeline.Pipeline, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			writeJSON(w, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/lead", func(w http.ResponseWriter, req *http.Request) {
		niche := req.URL.Query().Get("niche")
		if niche == "" {
			writeText(w, "niche is required")
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), leadTimeout)
		defer cancel()

		if _, err := p.Expand(ctx, niche); err != nil {
			zap.L().Error("lead expansion failed", zap.String("niche", niche), zap.Error(err))
			writeText(w, "could not expand niche: "+err.Error())
			return
		}

		if err := p.Quiesce(ctx); err != nil {
			writeText(w, "pipeline did not finish in time")
			return
		}

		leads, err := st.VerifiedLeadsForNiche(ctx, lead.NormalizeLabel(niche))
		if err != nil {
			writeText(w, "could not read verified leads: "+err.Error())
			return
		}

		addresses := make([]string, 0, len(leads))
		for _, l := range leads {
			addresses = append(addresses, l.Email)
		}
		writeJSON(w, addresses)
	})

	r.Get("/lightning", func(w http.ResponseWriter, req *http.Request) {
		niche := req.URL.Query().Get("niche")
		if niche == "" {
			writeText(w, "niche is required")
			return
		}
		count, err := strconv.Atoi(req.URL.Query().Get("count"))
		if err != nil || count < 1 {
			writeText(w, "count should be > 0")
			return
		}

		// Subscribe before seeding so no verified address slips past.
		verified, cancelSub := p.Broadcast().Subscribe()
		defer cancelSub()

		if _, err := p.Expand(req.Context(), niche); err != nil {
			zap.L().Error("lightning expansion failed", zap.String("niche", niche), zap.Error(err))
			writeText(w, "could not expand niche: "+err.Error())
			return
		}

		addresses := make([]string, 0, count)
		for len(addresses) < count {
			select {
			case <-req.Context().Done():
				writeJSON(w, addresses)
				return
			case addr := <-verified:
				addresses = append(addresses, addr)
			}
		}
		writeJSON(w, addresses)
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := st.Stats(req.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			writeJSON(w, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, stats)
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(msg))
}
