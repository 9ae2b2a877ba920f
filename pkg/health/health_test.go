package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestReadyEndpoint_NotReadyByDefault(t *testing.T) {
	s := New()

	w := httptest.NewRecorder()
	s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeStatus(t, w)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Checks, "_readiness")
}

func TestReadyEndpoint_AfterSetReady(t *testing.T) {
	s := New()
	s.SetReady(true)

	w := httptest.NewRecorder()
	s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeStatus(t, w).Status)
}

func TestLiveEndpoint_HealthyByDefault(t *testing.T) {
	s := New()
	s.AddLivenessCheck("noop", time.Second, func(context.Context) error { return nil })

	w := httptest.NewRecorder()
	s.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeStatus(t, w).Status)
}

func TestCheck_FailureThreshold(t *testing.T) {
	c := newCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	ctx := context.Background()

	// Stays healthy until the failure threshold is reached.
	c.run(ctx)
	c.run(ctx)
	assert.True(t, c.healthy.Load())

	c.run(ctx)
	assert.False(t, c.healthy.Load())

	msg, failed := c.failure()
	assert.True(t, failed)
	assert.Equal(t, "connection refused", msg)
}

func TestCheck_RecoversAfterSuccess(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	c := newCheck("db", time.Second, func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	})

	ctx := context.Background()
	for range 3 {
		c.run(ctx)
	}
	require.False(t, c.healthy.Load())

	failing.Store(false)
	c.run(ctx)
	assert.True(t, c.healthy.Load())
}

func TestIsReady_FailingReadinessCheck(t *testing.T) {
	s := New()
	s.SetReady(true)
	s.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("no route to host")
	})

	require.True(t, s.IsReady())

	s.mu.RLock()
	c := s.readiness[0]
	s.mu.RUnlock()
	for range 3 {
		c.run(context.Background())
	}

	assert.False(t, s.IsReady())

	w := httptest.NewRecorder()
	s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "no route to host", decodeStatus(t, w).Checks["db"])
}

func TestStart_RunsChecks(t *testing.T) {
	s := New()
	var calls atomic.Int32
	s.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, 10*time.Millisecond)
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}
