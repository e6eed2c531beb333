package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/ColdTrack/internal/audit"
	"github.com/BearBump/ColdTrack/internal/broker/messages"
	"github.com/BearBump/ColdTrack/internal/cache"
	"github.com/BearBump/ColdTrack/internal/excursion"
	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/BearBump/ColdTrack/internal/statemachine"
	"github.com/pkg/errors"
)

// AlertPublisher delivers excursion notifications. Delivery is best-effort:
// a failed publish is logged, never surfaced to the recording caller.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, a messages.TemperatureAlert) error
}

// Tracker is the single writer for every shipment's status and telemetry.
// All mutations for one shipment run under that shipment's lock; shipments
// never contend with each other.
type Tracker struct {
	store      Store
	machine    *statemachine.Machine
	cache      cache.BytesCache
	currentTTL time.Duration
	alerts     AlertPublisher

	locks *shipmentLocks
}

func New(store Store, machine *statemachine.Machine, c cache.BytesCache, currentTTL time.Duration, alerts AlertPublisher) *Tracker {
	if machine == nil {
		machine = statemachine.New(nil)
	}
	return &Tracker{
		store:      store,
		machine:    machine,
		cache:      c,
		currentTTL: currentTTL,
		alerts:     alerts,
		locks:      newShipmentLocks(),
	}
}

type StatusChangeInput struct {
	Location  *string
	Note      *string
	VehicleID *uint64
}

type TemperatureInput struct {
	Humidity *float64
	Location *string
	Note     *string
}

func (t *Tracker) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	if in.TrackNumber == "" {
		return nil, errors.New("trackNumber is required")
	}
	if in.Band.Min != nil && in.Band.Max != nil && *in.Band.Min > *in.Band.Max {
		return nil, errors.New("band min is above max")
	}
	return t.store.CreateShipment(ctx, in)
}

// RecordStatusChange validates the transition against the status derived from
// the event log and, on acceptance, appends the event with the next gapless
// sequence number plus its audit entry in one transaction. Rejected calls
// leave no durable trace. Self-transitions append an event but no audit entry.
func (t *Tracker) RecordStatusChange(ctx context.Context, shipmentID uint64, requested string, actor audit.Actor, in StatusChangeInput) (*models.TrackingEvent, error) {
	release, err := t.locks.acquire(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := t.store.GetShipment(ctx, shipmentID); err != nil {
		return nil, err
	}

	last, err := t.store.LatestEvent(ctx, shipmentID)
	if err != nil {
		return nil, errors.Wrap(err, "load latest event")
	}
	current := models.StatusCreated
	var seq uint64 = 1
	if last != nil {
		current = last.Status
		seq = last.Seq + 1
	}
	if !models.KnownStatus(current) {
		slog.Error("stored status outside enumeration", "shipment_id", shipmentID, "status", current)
		return nil, errors.Wrapf(ErrInvalidState, "shipment %d has status %q", shipmentID, current)
	}

	out := t.machine.ValidateTransition(current, requested, actor.Role)
	if !out.Accepted {
		return nil, &RejectionError{Reason: out.Reason, Current: current, Requested: requested}
	}

	now := time.Now().UTC()
	ev := &models.TrackingEvent{
		ShipmentID: shipmentID,
		Seq:        seq,
		Status:     out.Status,
		Location:   in.Location,
		Note:       in.Note,
		VehicleID:  in.VehicleID,
		CreatedAt:  now,
	}
	if actor.Role == models.RoleStaff || actor.Role == models.RoleAdmin {
		staffID := actor.ID
		ev.StaffID = &staffID
	}

	// Самопереход — событие пишем, аудит не дублируем.
	var entry *models.AuditEntry
	if !out.NoOp {
		entry = audit.NewEntry(actor, shipmentID, audit.ActionStatusUpdate, audit.StatusDetails{
			OldStatus: current,
			NewStatus: out.Status,
			Location:  deref(in.Location),
			Timestamp: now,
		}, now)
	}

	if err := t.appendWithRetry(ctx, "append tracking event", func() error {
		return t.store.AppendEvent(ctx, ev, entry)
	}); err != nil {
		return nil, err
	}

	t.cacheCurrent(ctx, shipmentID, out.Status)
	return ev, nil
}

// RecordTemperature classifies the reading against the band in force right
// now and appends it with the derived alert flag. Out-of-range values are
// recorded, not refused.
func (t *Tracker) RecordTemperature(ctx context.Context, shipmentID uint64, temperature float64, actor audit.Actor, in TemperatureInput) (*models.TemperatureReading, error) {
	release, err := t.locks.acquire(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	sh, err := t.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	band := excursion.Resolve(sh)
	isAlert := excursion.Classify(temperature, band)

	now := time.Now().UTC()
	rd := &models.TemperatureReading{
		ShipmentID:  shipmentID,
		Temperature: temperature,
		Humidity:    in.Humidity,
		IsAlert:     isAlert,
		Location:    in.Location,
		Note:        in.Note,
		CreatedAt:   now,
	}
	if actor.ID != 0 {
		actorID := actor.ID
		rd.ActorID = &actorID
	}

	entry := audit.NewEntry(actor, shipmentID, audit.ActionTemperatureUpdate, audit.TemperatureDetails{
		Temperature: temperature,
		Humidity:    in.Humidity,
		IsAlert:     isAlert,
		Location:    deref(in.Location),
		Timestamp:   now,
	}, now)

	if err := t.appendWithRetry(ctx, "append reading", func() error {
		return t.store.AppendReading(ctx, rd, entry)
	}); err != nil {
		return nil, err
	}

	if isAlert {
		t.publishAlert(ctx, sh, temperature, band, now)
	}
	return rd, nil
}

// RecordLocation appends a checkpoint: the current status re-asserted with a
// new location. Audited as location-update.
func (t *Tracker) RecordLocation(ctx context.Context, shipmentID uint64, location string, actor audit.Actor) (*models.TrackingEvent, error) {
	if location == "" {
		return nil, errors.New("location is required")
	}
	release, err := t.locks.acquire(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := t.store.GetShipment(ctx, shipmentID); err != nil {
		return nil, err
	}
	last, err := t.store.LatestEvent(ctx, shipmentID)
	if err != nil {
		return nil, errors.Wrap(err, "load latest event")
	}
	current := models.StatusCreated
	var seq uint64 = 1
	if last != nil {
		current = last.Status
		seq = last.Seq + 1
	}

	now := time.Now().UTC()
	ev := &models.TrackingEvent{
		ShipmentID: shipmentID,
		Seq:        seq,
		Status:     current,
		Location:   &location,
		CreatedAt:  now,
	}
	entry := audit.NewEntry(actor, shipmentID, audit.ActionLocationUpdate, audit.LocationDetails{
		Location:  location,
		Timestamp: now,
	}, now)

	if err := t.appendWithRetry(ctx, "append location event", func() error {
		return t.store.AppendEvent(ctx, ev, entry)
	}); err != nil {
		return nil, err
	}
	return ev, nil
}

// UpdateThresholdBand is the only path that changes a shipment's band.
// Historical readings keep the verdict of the band in force when recorded.
func (t *Tracker) UpdateThresholdBand(ctx context.Context, shipmentID uint64, band models.Band, actor audit.Actor) error {
	if actor.Role != models.RoleAdmin {
		return &RejectionError{Reason: statemachine.ReasonInsufficientPrivilege, Current: "band", Requested: "band"}
	}
	if band.Min != nil && band.Max != nil && *band.Min > *band.Max {
		return errors.New("band min is above max")
	}

	release, err := t.locks.acquire(ctx, shipmentID)
	if err != nil {
		return err
	}
	defer release()

	sh, err := t.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := audit.NewEntry(actor, shipmentID, audit.ActionThresholdUpdate, audit.ThresholdDetails{
		OldMin:    sh.Band.Min,
		OldMax:    sh.Band.Max,
		NewMin:    band.Min,
		NewMax:    band.Max,
		Timestamp: now,
	}, now)

	return t.appendWithRetry(ctx, "update band", func() error {
		return t.store.UpdateBand(ctx, shipmentID, band, entry)
	})
}

// CurrentStatus derives the status from the latest tracking event, consulting
// the cache first. A shipment with no events is still CREATED.
func (t *Tracker) CurrentStatus(ctx context.Context, shipmentID uint64) (string, error) {
	key := currentKey(shipmentID)
	if t.cache != nil && t.currentTTL > 0 {
		if b, ok, err := t.cache.Get(ctx, key); err == nil && ok && models.KnownStatus(string(b)) {
			return string(b), nil
		}
	}

	if _, err := t.store.GetShipment(ctx, shipmentID); err != nil {
		return "", err
	}
	last, err := t.store.LatestEvent(ctx, shipmentID)
	if err != nil {
		return "", errors.Wrap(err, "load latest event")
	}
	status := models.StatusCreated
	if last != nil {
		status = last.Status
	}
	if !models.KnownStatus(status) {
		slog.Error("stored status outside enumeration", "shipment_id", shipmentID, "status", status)
		return "", errors.Wrapf(ErrInvalidState, "shipment %d has status %q", shipmentID, status)
	}

	t.cacheCurrent(ctx, shipmentID, status)
	return status, nil
}

func (t *Tracker) History(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.TrackingEvent, error) {
	if _, err := t.store.GetShipment(ctx, shipmentID); err != nil {
		return nil, err
	}
	return t.store.ListEvents(ctx, shipmentID, limit, offset)
}

func (t *Tracker) Readings(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.TemperatureReading, error) {
	if _, err := t.store.GetShipment(ctx, shipmentID); err != nil {
		return nil, err
	}
	return t.store.ListReadings(ctx, shipmentID, limit, offset)
}

func (t *Tracker) AuditTrail(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.AuditEntry, error) {
	if _, err := t.store.GetShipment(ctx, shipmentID); err != nil {
		return nil, err
	}
	return t.store.ListAuditEntries(ctx, shipmentID, limit, offset)
}

// Stats aggregates all readings of a shipment in one streaming pass.
func (t *Tracker) Stats(ctx context.Context, shipmentID uint64) (models.ReadingStats, error) {
	var st models.ReadingStats
	if _, err := t.store.GetShipment(ctx, shipmentID); err != nil {
		return st, err
	}

	var sum float64
	err := t.store.ScanReadings(ctx, shipmentID, func(rd *models.TemperatureReading) error {
		if st.Count == 0 || rd.Temperature < st.Min {
			st.Min = rd.Temperature
		}
		if st.Count == 0 || rd.Temperature > st.Max {
			st.Max = rd.Temperature
		}
		sum += rd.Temperature
		st.Count++
		if rd.IsAlert {
			st.AlertCount++
		}
		return nil
	})
	if err != nil {
		return models.ReadingStats{}, errors.Wrap(err, "scan readings")
	}
	if st.Count > 0 {
		st.Avg = sum / float64(st.Count)
	}
	return st, nil
}

// appendWithRetry runs one durable write and retries it exactly once. The
// write is keyed by the already-assigned sequence number, so a replay after a
// reported-but-committed first attempt is a no-op in the store.
func (t *Tracker) appendWithRetry(ctx context.Context, what string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.Wrap(ErrTimeout, ctx.Err().Error())
	}
	slog.Warn("durable write failed, retrying once", "op", what, "error", err.Error())
	if err2 := fn(); err2 != nil {
		return errors.Wrapf(ErrPersistence, "%s: %v", what, err2)
	}
	return nil
}

func (t *Tracker) publishAlert(ctx context.Context, sh *models.Shipment, temperature float64, band models.Band, at time.Time) {
	if t.alerts == nil {
		return
	}
	msg := messages.TemperatureAlert{
		ShipmentID:  sh.ID,
		TrackNumber: sh.TrackNumber,
		Temperature: temperature,
		BandMin:     band.Min,
		BandMax:     band.Max,
		Timestamp:   at,
	}
	// Kafka может быть недоступна короткое время; несколько быстрых попыток.
	var pubErr error
	for i := 0; i < 3; i++ {
		if pubErr = t.alerts.PublishAlert(ctx, msg); pubErr == nil {
			return
		}
		time.Sleep(time.Duration(100*(i+1)) * time.Millisecond)
	}
	slog.Error("publish temperature alert", "shipment_id", sh.ID, "error", pubErr.Error())
}

func (t *Tracker) cacheCurrent(ctx context.Context, shipmentID uint64, status string) {
	if t.cache == nil || t.currentTTL <= 0 {
		return
	}
	// Кэш — "лучшее усилие": источник истины всегда журнал событий.
	_ = t.cache.Set(ctx, currentKey(shipmentID), []byte(status), t.currentTTL)
}

func currentKey(id uint64) string {
	return fmt.Sprintf("shipment:%d:current", id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
