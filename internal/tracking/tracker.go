// Package tracking turns redirect requests into persisted clicks and keeps
// each link's aggregate analytics current.
package tracking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkshield/internal/errx"
	"github.com/sundayezeilo/linkshield/internal/geo"
	"github.com/sundayezeilo/linkshield/internal/ids"
	"github.com/sundayezeilo/linkshield/internal/metrics"
)

const (
	DefaultAnonClickThreshold = 3
	DefaultAnonWindow         = 24 * time.Hour
	DefaultUniqueWindow       = 24 * time.Hour
)

// LinkRef identifies the link a click belongs to.
type LinkRef struct {
	ID          uuid.UUID
	ShortCode   string
	IsAnonymous bool
}

// Click is one tracked redirect. It is never modified once stored.
type Click struct {
	ID              uuid.UUID     `json:"id"`
	LinkID          uuid.UUID     `json:"linkId"`
	IPAddress       string        `json:"ipAddress"`
	UserAgent       string        `json:"userAgent"`
	Device          Device        `json:"device"`
	Location        geo.Location  `json:"location"`
	Referrer        string        `json:"referrer,omitempty"`
	VisitorHash     string        `json:"-"`
	IsUniqueVisitor bool          `json:"isUniqueVisitor"`
	ResponseTime    time.Duration `json:"responseTime"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// ClickTracker is what the redirect path depends on.
type ClickTracker interface {
	TrackClick(ctx context.Context, link LinkRef, req RequestInfo) (Click, error)
}

// TrackerConfig holds the tracker's collaborators and policy knobs.
type TrackerConfig struct {
	Store    Store
	Resolver geo.Resolver
	Visitors Visitors // nil disables unique-visitor detection
	IDs      ids.Generator
	Logger   *slog.Logger
	Now      func() time.Time

	AnonClickThreshold int
	AnonWindow         time.Duration
	UniqueWindow       time.Duration
}

type Tracker struct {
	store         Store
	resolver      geo.Resolver
	visitors      Visitors
	ids           ids.Generator
	logger        *slog.Logger
	now           func() time.Time
	anonThreshold int64
	anonWindow    time.Duration
	uniqueWindow  time.Duration
}

func NewTracker(cfg TrackerConfig) *Tracker {
	t := &Tracker{
		store:         cfg.Store,
		resolver:      cfg.Resolver,
		visitors:      cfg.Visitors,
		ids:           cfg.IDs,
		logger:        cfg.Logger,
		now:           cfg.Now,
		anonThreshold: int64(cfg.AnonClickThreshold),
		anonWindow:    cfg.AnonWindow,
		uniqueWindow:  cfg.UniqueWindow,
	}
	if t.ids == nil {
		t.ids = ids.TimeOrdered(2)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.anonThreshold <= 0 {
		t.anonThreshold = DefaultAnonClickThreshold
	}
	if t.anonWindow <= 0 {
		t.anonWindow = DefaultAnonWindow
	}
	if t.uniqueWindow <= 0 {
		t.uniqueWindow = DefaultUniqueWindow
	}
	return t
}

// TrackClick derives the click, persists it with its aggregate update and
// then applies the anonymous-link click quota. Lookup failures for location
// and visitor novelty degrade the click; persistence failures are returned.
func (t *Tracker) TrackClick(ctx context.Context, link LinkRef, req RequestInfo) (Click, error) {
	const op = "tracking.tracker.TrackClick"

	start := time.Now()

	device := ParseDevice(req.UserAgent)

	loc, err := geo.ResolveOrUnknown(ctx, t.resolver, req.IP)
	if err != nil {
		metrics.TrackingFailures.WithLabelValues("geo").Inc()
		t.logger.WarnContext(ctx, "geolocation failed, using placeholder",
			"short_code", link.ShortCode,
			"ip", req.IP,
			"error", err.Error(),
		)
	}

	hash := VisitorHash(req)
	unique := t.firstVisit(ctx, link, hash)

	id, err := t.ids.New()
	if err != nil {
		return Click{}, errx.E(op, errx.Internal, err)
	}

	ua := req.UserAgent
	if ua == "" {
		ua = unknown
	}

	click := Click{
		ID:              id,
		LinkID:          link.ID,
		IPAddress:       req.IP,
		UserAgent:       ua,
		Device:          device,
		Location:        loc,
		Referrer:        req.Referrer,
		VisitorHash:     hash,
		IsUniqueVisitor: unique,
		ResponseTime:    time.Since(start),
		CreatedAt:       t.now(),
	}

	if err := t.store.ApplyClick(ctx, click); err != nil {
		metrics.TrackingFailures.WithLabelValues("apply").Inc()
		return Click{}, errx.Wrap(op, err)
	}
	metrics.ClicksTracked.Inc()

	if link.IsAnonymous {
		if err := t.enforceAnonymousQuota(ctx, link); err != nil {
			metrics.TrackingFailures.WithLabelValues("quota").Inc()
			return click, errx.Wrap(op, err)
		}
	}

	return click, nil
}

func (t *Tracker) firstVisit(ctx context.Context, link LinkRef, hash string) bool {
	if t.visitors == nil {
		return false
	}
	first, err := t.visitors.FirstVisit(ctx, link.ID, hash, t.uniqueWindow)
	if err != nil {
		metrics.TrackingFailures.WithLabelValues("visitor").Inc()
		t.logger.WarnContext(ctx, "unique visitor check failed",
			"short_code", link.ShortCode,
			"error", err.Error(),
		)
		return false
	}
	return first
}

// enforceAnonymousQuota disables an anonymous link once its clicks within
// the trailing window reach the threshold.
func (t *Tracker) enforceAnonymousQuota(ctx context.Context, link LinkRef) error {
	n, err := t.store.CountClicksSince(ctx, link.ID, t.now().Add(-t.anonWindow))
	if err != nil {
		return err
	}
	if n < t.anonThreshold {
		return nil
	}

	changed, err := t.store.DisableLink(ctx, link.ID)
	if err != nil {
		return err
	}
	if changed {
		metrics.LinksAutoDisabled.Inc()
		t.logger.InfoContext(ctx, "anonymous link disabled after click threshold",
			"short_code", link.ShortCode,
			"link_id", link.ID.String(),
			"clicks", n,
			"threshold", t.anonThreshold,
		)
	}
	return nil
}
