package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestEventMessage(t *testing.T) {
	deployed := Event{Kind: KindDeployed, VersionID: "v7", Accuracy: 0.912, Improvement: 0.015}
	assert.Equal(t, "Nouveau modèle déployé: v7 (Accuracy: 0.9120, amélioration +0.0150)", deployed.Message())

	rollback := Event{Kind: KindRollback, Reason: "artifact digest mismatch"}
	assert.Equal(t, "Rollback effectué: artifact digest mismatch", rollback.Message())

	review := Event{Kind: KindReview, VersionID: "v8", Score: 65}
	assert.Contains(t, review.Message(), "score 65")

	failed := Event{Kind: KindFailed, VersionID: "v9", Reason: "write decision: disk full"}
	assert.Equal(t, "Échec du pipeline pour v9: write decision: disk full", failed.Message())
}

func TestWebhookPostsText(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 0, nopLogger())
	err := n.Notify(context.Background(), Event{Kind: KindRollback, Reason: "smoke checks failed"})
	require.NoError(t, err)
	assert.Equal(t, "Rollback effectué: smoke checks failed", got.Text)
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 3, nopLogger())
	require.NoError(t, n.Notify(context.Background(), Event{Kind: KindDeployed, VersionID: "v1"}))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 1, nopLogger())
	require.Error(t, n.Notify(context.Background(), Event{Kind: KindDeployed}))
}

func TestWebhookClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 2, nopLogger())
	err := n.Notify(context.Background(), Event{Kind: KindDeployed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

type failing struct{ err error }

func (f failing) Notify(context.Context, Event) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{LogNotifier{Logger: nopLogger()}, failing{err: boom}}
	err := m.Notify(context.Background(), Event{Kind: KindRejected})
	require.ErrorIs(t, err, boom)

	require.NoError(t, Multi{LogNotifier{Logger: nopLogger()}}.Notify(context.Background(), Event{Kind: KindReview}))
}
