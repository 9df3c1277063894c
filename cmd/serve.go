package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NeverShitty/chittyfinance-sub000/internal/aggregate"
	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aggregation and detection API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(e),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(e *env) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/aggregate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EntityID string `json:"entity_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sources, err := e.store.ListSources(r.Context(), req.EntityID)
		if err != nil {
			zap.L().Error("list sources", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store unavailable")
			return
		}

		writeJSON(w, http.StatusOK, e.aggregator.Aggregate(r.Context(), sources))
	})

	r.Post("/api/detect", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EntityID  string                   `json:"entity_id"`
			Snapshots []*model.PartialSnapshot `json:"snapshots,omitempty"`
			Charges   []model.ChargeDetails    `json:"charges,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		snapshots := req.Snapshots
		if snapshots == nil {
			sources, err := e.store.ListSources(r.Context(), req.EntityID)
			if err != nil {
				zap.L().Error("list sources", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "store unavailable")
				return
			}
			snapshots = aggregate.Snapshots(e.aggregator.FetchAll(r.Context(), sources))
		}

		charges := req.Charges
		if charges == nil {
			var err error
			charges, err = e.store.ListCharges(r.Context(), req.EntityID)
			if err != nil {
				zap.L().Error("list charges", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "store unavailable")
				return
			}
		}

		writeJSON(w, http.StatusOK, e.detector.Detect(r.Context(), snapshots, charges, req.EntityID))
	})

	r.Get("/api/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, e.aggregator.CacheStats())
	})

	r.Post("/webhook/source-updated", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ServiceType string `json:"service_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ServiceType == "" {
			writeError(w, http.StatusBadRequest, "service_type is required")
			return
		}

		removed := e.aggregator.OnSourceUpdated(req.ServiceType)
		zap.L().Info("source webhook invalidated cache",
			zap.String("service_type", req.ServiceType),
			zap.Int("removed", removed),
		)
		writeJSON(w, http.StatusOK, map[string]any{
			"service_type": req.ServiceType,
			"invalidated":  removed,
			"at":           time.Now().UTC(),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
