package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/carrier"
	"github.com/InfradynAB/infradyn1-sub007/internal/ingest"
	"github.com/InfradynAB/infradyn1-sub007/internal/milestone"
	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/scheduler"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
)

var (
	servePort int
	serveOrg  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		// Batch triggers run inside the server process so a single
		// deployment covers both inbound and scheduled work. The scan scope
		// comes from --org; without it the schedules stay off and scans are
		// API-triggered only.
		if serveOrg != "" {
			runner := scheduler.New()
			scope := model.Scope{OrgID: serveOrg}
			if err := runner.Register(scheduler.Task{
				Name:   "chase-scan",
				Spec:   cfg.Scheduler.ChaseSpec,
				Budget: cfg.Chase.ScanBudget,
				Run: func(ctx context.Context) error {
					_, err := e.Chase.Scan(ctx, scope)
					return err
				},
			}); err != nil {
				return err
			}
			if err := runner.Register(scheduler.Task{
				Name:   "conflict-digest",
				Spec:   cfg.Scheduler.DigestSpec,
				Budget: time.Minute,
				Run: func(ctx context.Context) error {
					conflicts, err := e.Detector.Digest(ctx, scope, 100)
					if err != nil {
						return err
					}
					zap.L().Info("conflict digest",
						zap.String("org", scope.OrgID),
						zap.Int("open", len(conflicts)),
					)
					return nil
				},
			}); err != nil {
				return err
			}
			runner.Start()
			defer runner.Stop()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(e, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveOrg, "org", "", "organization scope for the built-in batch schedules")
	rootCmd.AddCommand(serveCmd)
}

func buildRouter(e *env, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Org-ID", "X-Project-ID"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := e.Store.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireScope)

		r.Post("/api/reports", e.handleSubmitReport)
		r.Post("/webhook/carrier", e.handleCarrierWebhook)
		r.Post("/api/milestones", e.handleEstablishSchedule)
		r.Get("/api/milestones/{id}/state", e.handleMilestoneState)
		r.Get("/api/progress", e.handleProgressRollup)
		r.Get("/api/conflicts", e.handleListConflicts)
		r.Post("/api/conflicts/{id}/adjudicate", e.handleAdjudicate)
		r.Post("/api/conflicts/digest", e.handleConflictDigest)
		r.Post("/api/chase/scan", e.handleChaseScan)
	})

	return r
}

type scopeKey struct{}

// requireScope resolves the tenant headers into the explicit Scope carried
// on the request context. There is no ambient default organization.
func requireScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		orgID := req.Header.Get("X-Org-ID")
		if orgID == "" {
			writeError(w, http.StatusBadRequest, "X-Org-ID header is required")
			return
		}
		scope := model.Scope{
			OrgID:     orgID,
			ProjectID: req.Header.Get("X-Project-ID"),
		}
		ctx := context.WithValue(req.Context(), scopeKey{}, scope)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func scopeFrom(req *http.Request) model.Scope {
	scope, _ := req.Context().Value(scopeKey{}).(model.Scope)
	return scope
}

func (e *env) handleSubmitReport(w http.ResponseWriter, req *http.Request) {
	var in ingest.SubmitReportInput
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, state, err := e.Ingest.SubmitReport(req.Context(), scopeFrom(req), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"report": report,
		"state":  state,
	})
}

func (e *env) handleCarrierWebhook(w http.ResponseWriter, req *http.Request) {
	var in ingest.WebhookInput
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := e.Ingest.HandleCarrierWebhook(req.Context(), scopeFrom(req), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (e *env) handleEstablishSchedule(w http.ResponseWriter, req *http.Request) {
	var in struct {
		POID       string                    `json:"po_id"`
		Milestones []milestone.ScheduleEntry `json:"milestones"`
	}
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := e.Milestones.EstablishSchedule(req.Context(), scopeFrom(req), in.POID, in.Milestones)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"milestones": created})
}

func (e *env) handleMilestoneState(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	state, err := e.Aggregator.CurrentState(req.Context(), scopeFrom(req), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (e *env) handleProgressRollup(w http.ResponseWriter, req *http.Request) {
	rollup, err := e.Milestones.ProgressRollup(req.Context(), scopeFrom(req))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

func (e *env) handleListConflicts(w http.ResponseWriter, req *http.Request) {
	filter := store.ConflictFilter{
		Status: model.ConflictStatus(req.URL.Query().Get("status")),
	}
	if raw := req.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	conflicts, err := e.Store.ListConflicts(req.Context(), scopeFrom(req), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": conflicts})
}

func (e *env) handleAdjudicate(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	var in struct {
		WinningReportID string `json:"winning_report_id"`
		DecidedBy       string `json:"decided_by"`
		Note            string `json:"note"`
		Dismiss         bool   `json:"dismiss"`
	}
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.DecidedBy == "" {
		writeError(w, http.StatusUnprocessableEntity, "decided_by is required")
		return
	}

	var err error
	if in.Dismiss {
		err = e.Detector.Dismiss(req.Context(), id, in.DecidedBy, in.Note)
	} else {
		err = e.Detector.Adjudicate(req.Context(), id, in.WinningReportID, in.DecidedBy, in.Note)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conflict, err := e.Store.GetConflict(req.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conflict)
}

func (e *env) handleConflictDigest(w http.ResponseWriter, req *http.Request) {
	conflicts, err := e.Detector.Digest(req.Context(), scopeFrom(req), 100)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"open":      len(conflicts),
		"conflicts": conflicts,
	})
}

func (e *env) handleChaseScan(w http.ResponseWriter, req *http.Request) {
	result, err := e.Chase.Scan(req.Context(), scopeFrom(req))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto HTTP statuses: missing
// entities are 404, validation rejections are 422, everything else is a
// logged 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ingest.ErrInvalidPercent),
		errors.Is(err, ingest.ErrInvalidChannel),
		errors.Is(err, ingest.ErrMissingField),
		errors.Is(err, milestone.ErrInvalidPaymentPct),
		errors.Is(err, milestone.ErrMissingField),
		errors.Is(err, milestone.ErrEmptySchedule),
		errors.Is(err, carrier.ErrContainerShape),
		errors.Is(err, carrier.ErrContainerChecksum):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
