package chase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/resilience"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var received model.ReminderIntent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	n := NewWebhookNotifier(srv.URL, 5*time.Second)
	err := n.Send(context.Background(), model.ReminderIntent{
		MilestoneID: "ms-1",
		Recipient:   "project-manager",
		RiskTier:    model.RiskHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "ms-1", received.MilestoneID)
	assert.Equal(t, "project-manager", received.Recipient)
}

func TestWebhookNotifier_EmptyURLDropsSilently(t *testing.T) {
	n := NewWebhookNotifier("", 0)
	err := n.Send(context.Background(), model.ReminderIntent{MilestoneID: "ms-1"})
	assert.NoError(t, err)
}

func TestWebhookNotifier_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	n := NewWebhookNotifier(srv.URL, 5*time.Second)
	err := n.Send(context.Background(), model.ReminderIntent{MilestoneID: "ms-1"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWebhookNotifier_TransientStatusRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	n := NewWebhookNotifier(srv.URL, 5*time.Second)
	n.retry = resilience.Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond}
	err := n.Send(context.Background(), model.ReminderIntent{MilestoneID: "ms-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
