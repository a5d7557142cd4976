package shortener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkshield/internal/errx"
	"github.com/sundayezeilo/linkshield/internal/metrics"
	"github.com/sundayezeilo/linkshield/internal/safety"
	"github.com/sundayezeilo/linkshield/internal/tracking"
)

const (
	DefaultAdminPageSize = 50
	MaxAdminPageSize     = 200
	DefaultClickPageSize = 100
	MaxClickPageSize     = 1000
	DashboardTopN        = 10

	// ThreatManualReview marks a verdict written by a moderator's flag.
	ThreatManualReview = "MANUAL_REVIEW"
)

// Admin is the moderation surface over every link regardless of owner.
type Admin interface {
	ListLinks(ctx context.Context, f LinkFilter) ([]Link, error)
	GetLink(ctx context.Context, id uuid.UUID) (Link, error)
	// Moderate applies a moderator's edits. Reinstating a flagged link
	// records a reviewed-safe verdict; flagging records a manual hold. Both
	// last one review window, after which the classifier decides again.
	Moderate(ctx context.Context, id uuid.UUID, patch LinkPatch) (Link, error)
	DeleteLink(ctx context.Context, id uuid.UUID) error
	LinkClicks(ctx context.Context, id uuid.UUID, limit int) ([]tracking.Click, error)
	Dashboard(ctx context.Context) (PlatformStats, error)
}

type admin struct {
	repo      Repository
	reviewTTL time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// AdminConfig configures the moderation service.
type AdminConfig struct {
	ReviewTTL time.Duration // how long a moderator's verdict holds (default: safety.DefaultCacheTTL)
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewAdmin(repo Repository, cfg *AdminConfig) Admin {
	if cfg == nil {
		cfg = &AdminConfig{}
	}
	a := &admin{
		repo:      repo,
		reviewTTL: cfg.ReviewTTL,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if a.reviewTTL <= 0 {
		a.reviewTTL = safety.DefaultCacheTTL
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

func (a *admin) ListLinks(ctx context.Context, f LinkFilter) ([]Link, error) {
	const op = "shortener.admin.ListLinks"

	if f.Status != "" && !knownStatus(f.Status) {
		return nil, errx.E(op, errx.Invalid, fmt.Errorf("unknown status %q", f.Status))
	}
	if f.Offset < 0 {
		return nil, errx.E(op, errx.Invalid, fmt.Errorf("offset must not be negative"))
	}
	f.Limit = clamp(f.Limit, DefaultAdminPageSize, MaxAdminPageSize)

	links, err := a.repo.List(ctx, f)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return links, nil
}

func (a *admin) GetLink(ctx context.Context, id uuid.UUID) (Link, error) {
	const op = "shortener.admin.GetLink"

	link, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	countries, devices, err := a.repo.Tallies(ctx, id)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	link.Analytics.Countries = countries
	link.Analytics.Devices = devices
	return link, nil
}

func (a *admin) Moderate(ctx context.Context, id uuid.UUID, patch LinkPatch) (Link, error) {
	const op = "shortener.admin.Moderate"

	if patch.Status != nil && !knownStatus(*patch.Status) {
		return Link{}, errx.E(op, errx.Invalid, fmt.Errorf("status must be %q, %q or %q",
			StatusActive, StatusDisabled, StatusFlagged))
	}

	link, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}

	if patch.Title != nil || patch.Description != nil {
		link, err = a.repo.Update(ctx, id, LinkPatch{Title: patch.Title, Description: patch.Description})
		if err != nil {
			return Link{}, errx.Wrap(op, err)
		}
	}
	if patch.Status == nil || *patch.Status == link.Status {
		return link, nil
	}

	from, to := link.Status, *patch.Status
	verdict := link.Safety
	now := a.now()
	switch {
	case to == StatusFlagged:
		verdict = a.reviewedVerdict(now, false)
	case to == StatusActive && from == StatusFlagged:
		verdict = a.reviewedVerdict(now, true)
	}

	updated, err := a.repo.Moderate(ctx, id, to, verdict)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}

	metrics.LinksModerated.WithLabelValues(to).Inc()
	a.logger.InfoContext(ctx, "link moderated",
		"link_id", id.String(),
		"short_code", updated.ShortCode,
		"from", from,
		"to", to,
	)
	return updated, nil
}

func (a *admin) reviewedVerdict(now time.Time, safe bool) SafetyStatus {
	expiry := now.Add(a.reviewTTL)
	s := SafetyStatus{
		IsSafe:         safe,
		LastChecked:    &now,
		ThreatTypes:    []string{},
		PlatformStatus: []string{},
		CacheExpiry:    &expiry,
	}
	if !safe {
		s.ThreatTypes = []string{ThreatManualReview}
		s.PlatformStatus = []string{"ANY_PLATFORM"}
	}
	return s
}

func (a *admin) DeleteLink(ctx context.Context, id uuid.UUID) error {
	const op = "shortener.admin.DeleteLink"

	if err := a.repo.Delete(ctx, id); err != nil {
		return errx.Wrap(op, err)
	}
	a.logger.InfoContext(ctx, "link deleted by admin", "link_id", id.String())
	return nil
}

func (a *admin) LinkClicks(ctx context.Context, id uuid.UUID, limit int) ([]tracking.Click, error) {
	const op = "shortener.admin.LinkClicks"

	if _, err := a.repo.GetByID(ctx, id); err != nil {
		return nil, errx.Wrap(op, err)
	}
	clicks, err := a.repo.Clicks(ctx, id, clamp(limit, DefaultClickPageSize, MaxClickPageSize))
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return clicks, nil
}

func (a *admin) Dashboard(ctx context.Context) (PlatformStats, error) {
	const op = "shortener.admin.Dashboard"

	stats, err := a.repo.PlatformStats(ctx, a.now().Add(-DefaultStatsWindow), DashboardTopN)
	if err != nil {
		return PlatformStats{}, errx.Wrap(op, err)
	}
	return stats, nil
}

func knownStatus(s string) bool {
	return s == StatusActive || s == StatusDisabled || s == StatusFlagged
}

// clamp returns def for non-positive n and caps it at max.
func clamp(n, def, max int) int {
	if n <= 0 {
		return def
	}
	return min(n, max)
}
