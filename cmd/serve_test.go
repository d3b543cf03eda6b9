package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InfradynAB/infradyn1-sub007/internal/aggregate"
	"github.com/InfradynAB/infradyn1-sub007/internal/chase"
	"github.com/InfradynAB/infradyn1-sub007/internal/conflict"
	"github.com/InfradynAB/infradyn1-sub007/internal/ingest"
	"github.com/InfradynAB/infradyn1-sub007/internal/milestone"
	"github.com/InfradynAB/infradyn1-sub007/internal/staleness"
	"github.com/InfradynAB/infradyn1-sub007/internal/store"
	"github.com/InfradynAB/infradyn1-sub007/internal/trust"
)

func newTestRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	agg := aggregate.New(st, staleness.DefaultWindows())
	detector := conflict.NewDetector(st, conflict.DefaultThresholds())
	notifier := chase.NewWebhookNotifier("", 0)
	engine := chase.NewEngine(st, agg, notifier, chase.Config{}, chase.DefaultPolicy())

	e := &env{
		Store:      st,
		Aggregator: agg,
		Detector:   detector,
		Ingest:     ingest.NewService(st, trust.NewScorer(st), agg, detector, nil),
		Milestones: milestone.NewService(st),
		Chase:      engine,
	}
	return buildRouter(e, []string{"*"}), st
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-ID", "org-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestRouter_MissingOrgHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "X-Org-ID")
}

func establishTestSchedule(t *testing.T, router http.Handler) []string {
	t.Helper()
	rr := doJSON(t, router, http.MethodPost, "/api/milestones", map[string]any{
		"po_id": "po-1",
		"milestones": []map[string]any{
			{"title": "Fabrication", "expected_date": "2026-10-01T00:00:00Z", "payment_pct": 60},
			{"title": "Delivery", "expected_date": "2026-11-15T00:00:00Z", "payment_pct": 40},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var out struct {
		Milestones []struct {
			ID string `json:"id"`
		} `json:"milestones"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out.Milestones, 2)
	ids := make([]string, len(out.Milestones))
	for i, m := range out.Milestones {
		ids[i] = m.ID
	}
	return ids
}

func TestRouter_EstablishScheduleAndState(t *testing.T) {
	router, _ := newTestRouter(t)
	ids := establishTestSchedule(t, router)

	// No reports yet: state is a zero-percent forecast.
	rr := doJSON(t, router, http.MethodGet, "/api/milestones/"+ids[0]+"/state", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var state struct {
		Percent    float64 `json:"percent"`
		IsForecast bool    `json:"is_forecast"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	assert.Zero(t, state.Percent)
	assert.True(t, state.IsForecast)
}

func TestRouter_EstablishSchedule_Invalid(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/milestones", map[string]any{
		"po_id":      "po-1",
		"milestones": []map[string]any{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRouter_SubmitReport(t *testing.T) {
	router, _ := newTestRouter(t)
	ids := establishTestSchedule(t, router)

	rr := doJSON(t, router, http.MethodPost, "/api/reports", map[string]any{
		"milestone_id":     ids[0],
		"percent_complete": 45,
		"source_channel":   "SUPPLIER",
		"reporter_id":      "supplier@example.com",
		"submitted_at":     time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var out struct {
		State struct {
			Percent   float64 `json:"percent"`
			TrustTier string  `json:"trust_tier"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, 45.0, out.State.Percent)
	assert.Equal(t, "SUPPLIER", out.State.TrustTier)
}

func TestRouter_SubmitReport_ValidationMapsTo422(t *testing.T) {
	router, _ := newTestRouter(t)
	ids := establishTestSchedule(t, router)

	rr := doJSON(t, router, http.MethodPost, "/api/reports", map[string]any{
		"milestone_id":     ids[0],
		"percent_complete": 150,
		"source_channel":   "SUPPLIER",
		"reporter_id":      "supplier@example.com",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	// CARRIER_VERIFIED cannot be claimed over the API.
	rr = doJSON(t, router, http.MethodPost, "/api/reports", map[string]any{
		"milestone_id":     ids[0],
		"percent_complete": 45,
		"source_channel":   "CARRIER_VERIFIED",
		"reporter_id":      "supplier@example.com",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRouter_SubmitReport_UnknownMilestone404(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/reports", map[string]any{
		"milestone_id":     "missing",
		"percent_complete": 45,
		"source_channel":   "SUPPLIER",
		"reporter_id":      "supplier@example.com",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_CarrierWebhook_DuplicateReturns200(t *testing.T) {
	router, _ := newTestRouter(t)

	payload := map[string]any{
		"subscription_id":  "sub-1",
		"container_number": "MSCU1234566",
		"event": map[string]any{
			"event_type_code": "DEPA",
			"event_date_time": "2026-08-01T08:00:00Z",
			"location":        "CNSHA",
		},
	}

	first := doJSON(t, router, http.MethodPost, "/webhook/carrier", payload)
	assert.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/webhook/carrier", payload)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"duplicate":true`)
}

func TestRouter_CarrierWebhook_BadContainer422(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/webhook/carrier", map[string]any{
		"subscription_id":  "sub-1",
		"container_number": "NOT-A-BOX",
		"event": map[string]any{
			"event_type_code": "DEPA",
			"event_date_time": "2026-08-01T08:00:00Z",
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRouter_ProgressRollup(t *testing.T) {
	router, _ := newTestRouter(t)
	establishTestSchedule(t, router)

	rr := doJSON(t, router, http.MethodGet, "/api/progress", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var rollup struct {
		Milestones    int `json:"milestones"`
		ForecastCount int `json:"forecast_count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rollup))
	assert.Equal(t, 2, rollup.Milestones)
}

func TestRouter_Conflicts(t *testing.T) {
	router, _ := newTestRouter(t)
	ids := establishTestSchedule(t, router)

	// Disagreeing supplier and internal reports open a conflict.
	submit := func(percent float64, channel, reporter string) {
		rr := doJSON(t, router, http.MethodPost, "/api/reports", map[string]any{
			"milestone_id":     ids[0],
			"percent_complete": percent,
			"source_channel":   channel,
			"reporter_id":      reporter,
		})
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	submit(50, "SUPPLIER", "supplier@example.com")
	submit(65, "INTERNAL", "pm@example.com")

	rr := doJSON(t, router, http.MethodGet, "/api/conflicts?status=OPEN", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		Conflicts []struct {
			ID              string `json:"id"`
			Kind            string `json:"kind"`
			WinningReportID string `json:"winning_report_id,omitempty"`
		} `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out.Conflicts, 1)
	assert.Equal(t, "progress_variance", out.Conflicts[0].Kind)

	// Adjudication without an actor is rejected.
	rr = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/conflicts/%s/adjudicate", out.Conflicts[0].ID), map[string]any{
		"dismiss": true,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/conflicts/%s/adjudicate", out.Conflicts[0].ID), map[string]any{
		"dismiss":    true,
		"decided_by": "pm@example.com",
		"note":       "supplier confirmed by phone",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"DISMISSED"`)

	// The digest no longer carries it.
	rr = doJSON(t, router, http.MethodPost, "/api/conflicts/digest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"open":0`)
}

func TestRouter_ListConflicts_InvalidLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/api/conflicts?limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_ChaseScan(t *testing.T) {
	router, _ := newTestRouter(t)
	establishTestSchedule(t, router)

	rr := doJSON(t, router, http.MethodPost, "/api/chase/scan", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var result struct {
		Processed int `json:"processed"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Processed)
}
