package shipments_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/BearBump/ColdTrack/internal/tracker"
	"github.com/go-chi/chi/v5"
)

// RateLimiter ограничивает частоту приёма телеметрии на актора.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type ShipmentsAPI struct {
	trk *tracker.Tracker

	rl             RateLimiter
	ingestPerMin   int64
	requestTimeout time.Duration
}

func New(trk *tracker.Tracker, rl RateLimiter, ingestPerMin int64, requestTimeout time.Duration) *ShipmentsAPI {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second
	}
	return &ShipmentsAPI{trk: trk, rl: rl, ingestPerMin: ingestPerMin, requestTimeout: requestTimeout}
}

func (a *ShipmentsAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/shipments", a.createShipment)
	r.Route("/shipments/{id}", func(r chi.Router) {
		r.Get("/status", a.getStatus)
		r.Get("/history", a.getHistory)
		r.Get("/readings", a.getReadings)
		r.Get("/stats", a.getStats)
		r.Get("/audit", a.getAudit)
		r.Post("/status", a.recordStatus)
		r.Post("/readings", a.recordTemperature)
		r.Post("/location", a.recordLocation)
		r.Put("/band", a.updateBand)
	})
	return r
}

type createShipmentRequest struct {
	CustomerID  uint64   `json:"customer_id"`
	TrackNumber string   `json:"track_number"`
	BandMin     *float64 `json:"band_min,omitempty"`
	BandMax     *float64 `json:"band_max,omitempty"`
}

func (a *ShipmentsAPI) createShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	sh, err := a.trk.CreateShipment(ctx, models.ShipmentCreateInput{
		CustomerID:  req.CustomerID,
		TrackNumber: req.TrackNumber,
		Band:        models.Band{Min: req.BandMin, Max: req.BandMax},
	})
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toShipmentDTO(sh))
}

func (a *ShipmentsAPI) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	status, err := a.trk.CurrentStatus(ctx, id)
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": status})
}

type recordStatusRequest struct {
	Status    string  `json:"status"`
	Location  *string `json:"location,omitempty"`
	Note      *string `json:"note,omitempty"`
	VehicleID *uint64 `json:"vehicle_id,omitempty"`
}

func (a *ShipmentsAPI) recordStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req recordStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	ev, err := a.trk.RecordStatusChange(ctx, id, req.Status, actor, tracker.StatusChangeInput{
		Location:  req.Location,
		Note:      req.Note,
		VehicleID: req.VehicleID,
	})
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toEventDTO(ev))
}

type recordTemperatureRequest struct {
	Temperature float64  `json:"temperature"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Note        *string  `json:"note,omitempty"`
}

func (a *ShipmentsAPI) recordTemperature(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	if a.rl != nil && a.ingestPerMin > 0 {
		key := fmt.Sprintf("rl:telemetry:%d:%s", actor.ID, time.Now().UTC().Format("200601021504"))
		allowed, _, err := a.rl.Allow(ctx, key, a.ingestPerMin, 70*time.Second)
		if err == nil && !allowed {
			writeError(w, r, http.StatusTooManyRequests, "telemetry rate limit exceeded")
			return
		}
	}

	var req recordTemperatureRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rd, err := a.trk.RecordTemperature(ctx, id, req.Temperature, actor, tracker.TemperatureInput{
		Humidity: req.Humidity,
		Location: req.Location,
		Note:     req.Note,
	})
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toReadingDTO(rd))
}

type recordLocationRequest struct {
	Location string `json:"location"`
}

func (a *ShipmentsAPI) recordLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req recordLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	ev, err := a.trk.RecordLocation(ctx, id, req.Location, actor)
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toEventDTO(ev))
}

type updateBandRequest struct {
	BandMin *float64 `json:"band_min,omitempty"`
	BandMax *float64 `json:"band_max,omitempty"`
}

func (a *ShipmentsAPI) updateBand(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req updateBandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	err := a.trk.UpdateThresholdBand(ctx, id, models.Band{Min: req.BandMin, Max: req.BandMax}, actor)
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *ShipmentsAPI) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	evs, err := a.trk.History(ctx, id, limit, offset)
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	out := make([]eventDTO, 0, len(evs))
	for _, ev := range evs {
		out = append(out, toEventDTO(ev))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (a *ShipmentsAPI) getReadings(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	rds, err := a.trk.Readings(ctx, id, limit, offset)
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	out := make([]readingDTO, 0, len(rds))
	for _, rd := range rds {
		out = append(out, toReadingDTO(rd))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (a *ShipmentsAPI) getStats(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	st, err := a.trk.Stats(ctx, id)
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, statsDTO{
		Count:      st.Count,
		AlertCount: st.AlertCount,
		Min:        st.Min,
		Max:        st.Max,
		Avg:        st.Avg,
	})
}

func (a *ShipmentsAPI) getAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	entries, err := a.trk.AuditTrail(ctx, id, limit, offset)
	if err != nil {
		writeTrackerError(w, r, err)
		return
	}
	out := make([]auditDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditDTO(e))
	}
	writeJSON(w, r, http.StatusOK, out)
}
