package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/VaultTrack/internal/metrics"
	"github.com/BearBump/VaultTrack/internal/models"
)

// DefaultFanOut caps how many shipments one tracking code may update.
const DefaultFanOut = 5

type ShipmentStore interface {
	FindShipmentsByTrackingCode(ctx context.Context, trackingCode string, limit int) ([]*models.Shipment, error)
	FindOwnerShipmentsByTrackingCode(ctx context.Context, ownerID, trackingCode string, limit int) ([]*models.Shipment, error)
	UpdateShipmentTracking(ctx context.Context, upd models.ShipmentTrackingUpdate) error
}

type NotificationSink interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
}

// Invalidator drops cached read models of a shipment whose tracking changed.
type Invalidator interface {
	InvalidateShipment(ctx context.Context, id string)
}

// Result counts what happened to the shipments matched by one or more
// updates. Failures are counted here and logged, never returned.
type Result struct {
	Matched  int `json:"matched"`
	Updated  int `json:"updated"`
	Notified int `json:"notified"`
	Failed   int `json:"failed"`
}

func (r *Result) Add(o Result) {
	r.Matched += o.Matched
	r.Updated += o.Updated
	r.Notified += o.Notified
	r.Failed += o.Failed
}

type Reconciler struct {
	store   ShipmentStore
	sink    NotificationSink
	metrics *metrics.Metrics
	inv     Invalidator
	fanOut  int
	now     func() time.Time
}

func New(store ShipmentStore, sink NotificationSink) *Reconciler {
	return &Reconciler{
		store:  store,
		sink:   sink,
		fanOut: DefaultFanOut,
		now:    time.Now,
	}
}

func (r *Reconciler) WithFanOut(n int) *Reconciler {
	if n > 0 {
		r.fanOut = n
	}
	return r
}

func (r *Reconciler) WithInvalidator(inv Invalidator) *Reconciler {
	r.inv = inv
	return r
}

func (r *Reconciler) WithMetrics(m *metrics.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// ApplyAll applies a webhook batch. Updates are processed one after another;
// a failing update does not stop the rest.
func (r *Reconciler) ApplyAll(ctx context.Context, updates []models.CanonicalUpdate) Result {
	var total Result
	for _, u := range updates {
		total.Add(r.Apply(ctx, u))
	}
	return total
}

// Apply updates every shipment, across owners, that tracks u.TrackingCode.
// An unknown code is a no-op.
func (r *Reconciler) Apply(ctx context.Context, u models.CanonicalUpdate) Result {
	if u.TrackingCode == "" {
		return Result{}
	}
	shipments, err := r.store.FindShipmentsByTrackingCode(ctx, u.TrackingCode, r.fanOut)
	if err != nil {
		slog.Error("find shipments by tracking code", "tracking_code", u.TrackingCode, "error", err.Error())
		r.metrics.Reconciled("failed", 1)
		return Result{Failed: 1}
	}
	return r.applyMatched(ctx, shipments, u)
}

// ApplyForOwner is Apply restricted to one owner's shipments.
func (r *Reconciler) ApplyForOwner(ctx context.Context, ownerID string, u models.CanonicalUpdate) Result {
	if u.TrackingCode == "" || ownerID == "" {
		return Result{}
	}
	shipments, err := r.store.FindOwnerShipmentsByTrackingCode(ctx, ownerID, u.TrackingCode, r.fanOut)
	if err != nil {
		slog.Error("find owner shipments", "owner_id", ownerID, "tracking_code", u.TrackingCode, "error", err.Error())
		r.metrics.Reconciled("failed", 1)
		return Result{Failed: 1}
	}
	return r.applyMatched(ctx, shipments, u)
}

func (r *Reconciler) applyMatched(ctx context.Context, shipments []*models.Shipment, u models.CanonicalUpdate) Result {
	if len(shipments) > r.fanOut {
		slog.Warn("tracking code fan-out capped", "tracking_code", u.TrackingCode, "found", len(shipments), "cap", r.fanOut)
		shipments = shipments[:r.fanOut]
	}

	res := Result{Matched: len(shipments)}
	if len(shipments) == 0 {
		r.metrics.Reconciled("unmatched", 1)
		return res
	}

	for _, sh := range shipments {
		next, n := Transition(*sh, u)
		if err := r.store.UpdateShipmentTracking(ctx, TrackingUpdateOf(next)); err != nil {
			res.Failed++
			slog.Error("update shipment tracking", "shipment_id", sh.ID, "tracking_code", u.TrackingCode, "error", err.Error())
			continue
		}
		res.Updated++
		if r.inv != nil {
			r.inv.InvalidateShipment(ctx, sh.ID)
		}

		if n == nil {
			continue
		}
		n.CreatedAt = r.now().UTC()
		if _, err := r.sink.CreateNotification(ctx, *n); err != nil {
			res.Failed++
			slog.Error("create notification", "shipment_id", sh.ID, "error", err.Error())
			continue
		}
		res.Notified++
		slog.Info("shipment status changed", "shipment_id", sh.ID, "tracking_code", u.TrackingCode,
			"old_status", n.OldStatus, "new_status", n.NewStatus)
	}

	r.metrics.Reconciled("matched", res.Matched)
	r.metrics.Reconciled("updated", res.Updated)
	r.metrics.Reconciled("notified", res.Notified)
	r.metrics.Reconciled("failed", res.Failed)
	return res
}
