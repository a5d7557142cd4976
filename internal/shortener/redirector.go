package shortener

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sundayezeilo/linkshield/internal/errx"
	"github.com/sundayezeilo/linkshield/internal/httpx"
	"github.com/sundayezeilo/linkshield/internal/metrics"
	"github.com/sundayezeilo/linkshield/internal/safety"
	"github.com/sundayezeilo/linkshield/internal/tracking"
)

// Redirect outcomes, used as metric labels.
const (
	OutcomeRedirected = "redirected"
	OutcomeNotFound   = "not_found"
	OutcomeExpired    = "expired"
	OutcomeDisabled   = "disabled"
	OutcomeExhausted  = "exhausted"
	OutcomeUnsafe     = "unsafe"
	OutcomeError      = "error"
)

// Redirector decides whether a short code may be followed and records the click.
type Redirector struct {
	repo       Repository
	classifier safety.Classifier
	dispatcher tracking.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
	refresh    singleflight.Group
}

type RedirectorConfig struct {
	Repo       Repository
	Classifier safety.Classifier
	Dispatcher tracking.Dispatcher
	Logger     *slog.Logger
	Now        func() time.Time
}

func NewRedirector(cfg RedirectorConfig) *Redirector {
	r := &Redirector{
		repo:       cfg.Repo,
		classifier: cfg.Classifier,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.classifier == nil {
		r.classifier = safety.NewNoop(safety.DefaultCacheTTL, r.now)
	}
	return r
}

// Resolve runs the redirect pipeline for code and returns the destination.
// Tracking failures are logged and never returned.
func (rd *Redirector) Resolve(ctx context.Context, code string, req tracking.RequestInfo) (string, error) {
	const op = "shortener.redirector.Resolve"

	link, err := rd.repo.GetByShortCode(ctx, code)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			rd.observe(OutcomeNotFound)
		} else {
			rd.observe(OutcomeError)
		}
		return "", errx.Wrap(op, err)
	}

	now := rd.now()
	switch {
	case link.Expired(now):
		rd.observe(OutcomeExpired)
		return "", errx.E(op, errx.Gone, errors.New("link has expired"))
	case link.Status == StatusDisabled:
		rd.observe(OutcomeDisabled)
		return "", errx.E(op, errx.Gone, errors.New("link has been disabled"))
	case link.CeilingReached():
		rd.observe(OutcomeExhausted)
		return "", errx.E(op, errx.Gone, errors.New("link has reached its click limit"))
	}

	if link.Status == StatusFlagged {
		s := rd.currentSafety(ctx, link, now)
		if !s.IsSafe {
			rd.observe(OutcomeUnsafe)
			return "", errx.E(op, errx.Forbidden, &UnsafeError{
				ThreatTypes:    s.ThreatTypes,
				PlatformStatus: s.PlatformStatus,
			})
		}
	}

	if rd.dispatcher != nil {
		if err := rd.dispatcher.Dispatch(ctx, link.Ref(), req); err != nil {
			rd.logger.DebugContext(ctx, "click not tracked",
				"short_code", link.ShortCode,
				"link_id", link.ID.String(),
				"error", err,
			)
		}
	}

	rd.observe(OutcomeRedirected)
	return link.OriginalURL, nil
}

// currentSafety returns the flagged link's verdict, re-classifying when the
// cached one has lapsed. Concurrent refreshes of one link share a single call.
func (rd *Redirector) currentSafety(ctx context.Context, link Link, now time.Time) SafetyStatus {
	if !link.Safety.NeedsRefresh(now) {
		metrics.SafetyCacheLookups.WithLabelValues("hit").Inc()
		return link.Safety
	}
	metrics.SafetyCacheLookups.WithLabelValues("miss").Inc()

	key := link.ID.String()
	v, _, _ := rd.refresh.Do(key, func() (any, error) {
		// the shared call must not die with whichever request started it
		cctx := context.WithoutCancel(ctx)

		s := SafetyFromVerdict(rd.classifier.CheckURL(cctx, link.OriginalURL))
		if err := rd.repo.UpdateSafety(cctx, link.ID, s); err != nil {
			rd.logger.WarnContext(ctx, "failed to persist refreshed verdict",
				"link_id", key,
				"error", err,
			)
		}
		return s, nil
	})
	return v.(SafetyStatus)
}

func (rd *Redirector) observe(outcome string) {
	metrics.RedirectOutcomes.WithLabelValues(outcome).Inc()
}

// Redirect handles GET /{shortCode} and GET /r/{shortCode}.
func (rd *Redirector) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("shortCode")

	logger := rd.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"short_code", code,
	)

	dest, err := rd.Resolve(ctx, code, tracking.RequestInfoFrom(r, rd.now()))
	if err != nil {
		logRedirectError(ctx, logger, err)
		writeError(w, err)
		return
	}

	http.Redirect(w, r, dest, http.StatusFound)
}

func logRedirectError(ctx context.Context, logger *slog.Logger, err error) {
	attrs := []any{
		"error", err.Error(),
		"error_kind", errx.KindOf(err),
		"operation", errx.OpOf(err),
	}
	switch errx.KindOf(err) {
	case errx.NotFound, errx.Gone:
		logger.InfoContext(ctx, "link not served", attrs...)
	case errx.Forbidden:
		logger.WarnContext(ctx, "unsafe link blocked", attrs...)
	default:
		logger.ErrorContext(ctx, "redirect failed", attrs...)
	}
}
