package shipments_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/BearBump/ColdTrack/internal/storage/memshipment"
	"github.com/BearBump/ColdTrack/internal/tracker"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	trk := tracker.New(memshipment.New(), nil, nil, 0, nil)
	srv := httptest.NewServer(New(trk, nil, 0, 0).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, actorID, role string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set("X-Actor-Id", actorID)
		req.Header.Set("X-Actor-Role", role)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createShipment(t *testing.T, srv *httptest.Server) uint64 {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/shipments", "", "", map[string]any{
		"customer_id":  200,
		"track_number": "CT-5001",
		"band_min":     2.0,
		"band_max":     8.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[shipmentDTO](t, resp).ID
}

func TestAPI_StatusLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createShipment(t, srv)
	base := fmt.Sprintf("%s/shipments/%d", srv.URL, id)

	resp := doJSON(t, http.MethodGet, base+"/status", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, models.StatusCreated, decode[map[string]string](t, resp)["status"])

	resp = doJSON(t, http.MethodPost, base+"/status", "100", models.RoleStaff, map[string]any{
		"status":   models.StatusInTransit,
		"location": "Moscow hub",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ev := decode[eventDTO](t, resp)
	require.Equal(t, uint64(1), ev.Seq)

	// Клиент отменяет.
	resp = doJSON(t, http.MethodPost, base+"/status", "200", models.RoleCustomer, map[string]any{
		"status": models.StatusCancelled,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Из терминального статуса пути нет.
	resp = doJSON(t, http.MethodPost, base+"/status", "100", models.RoleStaff, map[string]any{
		"status": models.StatusDelivered,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, decode[errResponse](t, resp).Error, "CANCELLED")

	resp = doJSON(t, http.MethodGet, base+"/history", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decode[[]eventDTO](t, resp), 2)
}

func TestAPI_PrivilegeMapping(t *testing.T) {
	srv := newTestServer(t)
	id := createShipment(t, srv)
	base := fmt.Sprintf("%s/shipments/%d", srv.URL, id)

	resp := doJSON(t, http.MethodPost, base+"/status", "200", models.RoleCustomer, map[string]any{
		"status": models.StatusDelivered,
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_TemperatureAndStats(t *testing.T) {
	srv := newTestServer(t)
	id := createShipment(t, srv)
	base := fmt.Sprintf("%s/shipments/%d", srv.URL, id)

	resp := doJSON(t, http.MethodPost, base+"/readings", "5", models.RoleSensor, map[string]any{
		"temperature": 8.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.False(t, decode[readingDTO](t, resp).IsAlert)

	resp = doJSON(t, http.MethodPost, base+"/readings", "5", models.RoleSensor, map[string]any{
		"temperature": 8.1,
		"humidity":    55.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, decode[readingDTO](t, resp).IsAlert)

	resp = doJSON(t, http.MethodGet, base+"/stats", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[statsDTO](t, resp)
	require.Equal(t, int64(2), st.Count)
	require.Equal(t, int64(1), st.AlertCount)
	require.Equal(t, 8.1, st.Max)

	resp = doJSON(t, http.MethodGet, base+"/audit", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decode[[]auditDTO](t, resp), 2)
}

func TestAPI_NotFoundAndBadInput(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/shipments/999/status", "", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/shipments/abc/status", "", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	id := createShipment(t, srv)
	base := fmt.Sprintf("%s/shipments/%d", srv.URL, id)

	// Без заголовков актора запись запрещена.
	resp = doJSON(t, http.MethodPost, base+"/status", "", "", map[string]any{"status": models.StatusInTransit})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, base+"/status", "100", "SUPERVISOR", map[string]any{"status": models.StatusInTransit})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_UpdateBand(t *testing.T) {
	srv := newTestServer(t)
	id := createShipment(t, srv)
	base := fmt.Sprintf("%s/shipments/%d", srv.URL, id)

	resp := doJSON(t, http.MethodPut, base+"/band", "100", models.RoleStaff, map[string]any{
		"band_min": -20.0, "band_max": -15.0,
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPut, base+"/band", "1", models.RoleAdmin, map[string]any{
		"band_min": -20.0, "band_max": -15.0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Новая полоса действует для новых показаний.
	resp = doJSON(t, http.MethodPost, base+"/readings", "5", models.RoleSensor, map[string]any{
		"temperature": 5.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, decode[readingDTO](t, resp).IsAlert)
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(_ context.Context, _ string, _ int64, _ time.Duration) (bool, int64, error) {
	return false, 1, nil
}

func TestAPI_TelemetryRateLimit(t *testing.T) {
	trk := tracker.New(memshipment.New(), nil, nil, 0, nil)
	srv := httptest.NewServer(New(trk, denyAllLimiter{}, 1, 0).Routes())
	t.Cleanup(srv.Close)

	resp := doJSON(t, http.MethodPost, srv.URL+"/shipments", "", "", map[string]any{
		"customer_id": 1, "track_number": "CT-9",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[shipmentDTO](t, resp).ID

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/shipments/%d/readings", srv.URL, id), "5", models.RoleSensor, map[string]any{
		"temperature": 5.0,
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}
