package main

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/sells-group/leadpipe/internal/ingest"
	"github.com/sells-group/leadpipe/internal/leads"
	"github.com/sells-group/leadpipe/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for inbound signals, corrections, and claims",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API router. Split out so handler tests can hit it
// with httptest without binding a port.
func newRouter(env *appEnv, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/signals", handlePush(env))
	r.Post("/v1/properties/{id}/correct", handleCorrect(env))
	r.Post("/v1/leads/{id}/claim", handleClaim(env))

	return r
}

func handlePush(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var payload ingest.PushPayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := env.Ingest.Push(req.Context(), payload)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleCorrect(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var c ingest.Correction
		if err := json.NewDecoder(req.Body).Decode(&c); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		c.PropertyID = chi.URLParam(req, "id")

		if err := env.Ingest.Correct(req.Context(), c); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// claimRequest is the inbound status/claim payload. Status and assignee
// are both optional; when both are present the transition applies first
// and the assignment reuses the incremented lock version.
type claimRequest struct {
	Status          string `json:"status,omitempty"`
	AssignedTo      string `json:"assigned_to,omitempty"`
	ActorID         string `json:"actor_id"`
	Note            string `json:"note,omitempty"`
	ObservedVersion *int64 `json:"observed_version,omitempty"`
}

func handleClaim(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		leadID := chi.URLParam(req, "id")

		var body claimRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Status == "" && body.AssignedTo == "" {
			writeError(w, http.StatusBadRequest, "status or assigned_to is required")
			return
		}

		var (
			lead *model.Lead
			err  error
		)
		version := body.ObservedVersion
		if body.Status != "" {
			next, perr := leads.ParseStatus(body.Status)
			if perr != nil {
				writeError(w, http.StatusBadRequest, perr.Error())
				return
			}
			lead, err = env.Leads.Transition(req.Context(), leadID, next, body.ActorID, body.Note, version)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			version = &lead.LockVersion
		}
		if body.AssignedTo != "" {
			lead, err = env.Leads.Assign(req.Context(), leadID, body.AssignedTo, body.ActorID, version)
			if err != nil {
				writeServiceError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

// writeServiceError maps domain errors onto HTTP statuses: validation 400,
// version conflict 409, illegal transition 422, compliance block 403.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case model.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrVersionConflict):
		writeError(w, http.StatusConflict, "lock version conflict, re-fetch and retry")
	case leads.IsIllegalTransition(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case leads.IsComplianceBlocked(err):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
