package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkshield/internal/errx"
	"github.com/sundayezeilo/linkshield/internal/metrics"
	"github.com/sundayezeilo/linkshield/internal/safety"
	"github.com/sundayezeilo/linkshield/internal/shortcode"
)

const (
	MaxURLLength           = 2048
	DefaultCodeMaxRetries  = 5
	DefaultAnonLinkLimit   = 3
	DefaultAnonWindow      = 24 * time.Hour
	DefaultAnonLinkTTL     = 7 * 24 * time.Hour
	DefaultStatsWindow     = 30 * 24 * time.Hour
	DefaultSweepBatchLimit = 100
	OwnerTopLinks          = 5
)

// CreateLinkRequest represents the parameters for creating a new link.
// A nil OwnerID creates an anonymous link.
type CreateLinkRequest struct {
	OriginalURL string
	CustomCode  string // Optional: if empty, a code will be generated
	Title       string
	Description string
	OwnerID     *uuid.UUID
	CreatorIP   string
	VisitorID   string
	ExpiresAt   *time.Time
	MaxClicks   *int64
}

// SweepResult summarises one batch safety re-check.
type SweepResult struct {
	Checked int `json:"checked"`
	Flagged int `json:"flagged"`
	Failed  int `json:"failed"`
}

// Service defines the link management operations.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	Get(ctx context.Context, id, owner uuid.UUID) (Link, error)
	List(ctx context.Context, owner uuid.UUID) ([]Link, error)
	Update(ctx context.Context, id, owner uuid.UUID, patch LinkPatch) (Link, error)
	Delete(ctx context.Context, id, owner uuid.UUID) error
	Stats(ctx context.Context, id, owner uuid.UUID) (Stats, error)
	// Overview aggregates every link owned by owner.
	Overview(ctx context.Context, owner uuid.UUID) (OwnerStats, error)
	Sweep(ctx context.Context, limit int) (SweepResult, error)
}

type service struct {
	repo           Repository
	classifier     safety.Classifier
	codes          shortcode.Generator
	codeLength     int
	codeMaxRetries int
	anonLinkLimit  int
	anonWindow     time.Duration
	anonLinkTTL    time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Classifier     safety.Classifier
	CodeGenerator  shortcode.Generator
	CodeLength     int
	CodeMaxRetries int // attempts when generating a unique code (default: 5)
	AnonLinkLimit  int
	AnonWindow     time.Duration
	AnonLinkTTL    time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	s := &service{
		repo:           repo,
		classifier:     config.Classifier,
		codes:          config.CodeGenerator,
		codeLength:     config.CodeLength,
		codeMaxRetries: config.CodeMaxRetries,
		anonLinkLimit:  config.AnonLinkLimit,
		anonWindow:     config.AnonWindow,
		anonLinkTTL:    config.AnonLinkTTL,
		logger:         config.Logger,
		now:            config.Now,
	}

	if s.now == nil {
		s.now = time.Now
	}
	if s.classifier == nil {
		s.classifier = safety.NewNoop(safety.DefaultCacheTTL, s.now)
	}
	if s.codes == nil {
		s.codes = shortcode.NewBase62()
	}
	if s.codeLength < shortcode.MinLength || s.codeLength > shortcode.MaxLength {
		s.codeLength = shortcode.DefaultLength
	}
	if s.codeMaxRetries <= 0 {
		s.codeMaxRetries = DefaultCodeMaxRetries
	}
	if s.anonLinkLimit <= 0 {
		s.anonLinkLimit = DefaultAnonLinkLimit
	}
	if s.anonWindow <= 0 {
		s.anonWindow = DefaultAnonWindow
	}
	if s.anonLinkTTL <= 0 {
		s.anonLinkTTL = DefaultAnonLinkTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Create validates the destination, checks it against the classifier and
// stores the link under a custom or generated short code.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "shortener.service.Create"

	if err := validateURL(req.OriginalURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}
	if req.CustomCode != "" {
		if err := shortcode.Validate(req.CustomCode); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}
		if shortcode.Reserved(req.CustomCode) {
			return Link{}, errx.E(op, errx.Invalid, fmt.Errorf("short code %q is reserved", req.CustomCode))
		}
	}
	if req.MaxClicks != nil && *req.MaxClicks <= 0 {
		return Link{}, errx.E(op, errx.Invalid, errors.New("maxClicks must be positive"))
	}

	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return Link{}, errx.E(op, errx.Invalid, errors.New("expiresAt must be in the future"))
	}

	link := Link{
		OriginalURL: req.OriginalURL,
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     req.OwnerID,
		CreatorIP:   req.CreatorIP,
		Status:      StatusActive,
		ExpiresAt:   req.ExpiresAt,
		MaxClicks:   req.MaxClicks,
	}
	if req.VisitorID != "" {
		v := req.VisitorID
		link.VisitorID = &v
	}

	if req.OwnerID == nil {
		if err := s.checkAnonymousQuota(ctx, now, req.VisitorID, req.CreatorIP); err != nil {
			return Link{}, errx.Wrap(op, err)
		}
		expires := now.Add(s.anonLinkTTL)
		if link.ExpiresAt == nil || link.ExpiresAt.After(expires) {
			link.ExpiresAt = &expires
		}
		link.IsAnonymous = true
	}

	verdict, err := s.destinationSafety(ctx, req.OriginalURL, now)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	link.Safety = verdict

	// Custom code path: validate and create once
	if req.CustomCode != "" {
		alias := req.CustomCode
		link.ShortCode = alias
		link.CustomAlias = &alias

		created, err := s.repo.Create(ctx, link)
		if err != nil {
			return Link{}, errx.Wrap(op, err)
		}
		return created, nil
	}

	// Generated code path: retry on conflicts
	for range s.codeMaxRetries {
		code, err := s.codes.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ShortCode = code

		created, err := s.repo.Create(ctx, link)
		if err == nil {
			return created, nil
		}

		// Retry on conflict, fail on other errors
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.Wrap(op, err)
		}
	}

	return Link{}, errx.E(op, errx.Unavailable,
		errors.New("could not generate unique short code after retries"))
}

func (s *service) checkAnonymousQuota(ctx context.Context, now time.Time, visitorID, ip string) error {
	const op = "shortener.service.checkAnonymousQuota"

	n, err := s.repo.CountRecentAnonymous(ctx, now.Add(-s.anonWindow), visitorID, ip)
	if err != nil {
		return errx.Wrap(op, err)
	}
	if n >= int64(s.anonLinkLimit) {
		return errx.E(op, errx.Forbidden,
			fmt.Errorf("anonymous link limit reached (%d per %s)", s.anonLinkLimit, s.anonWindow))
	}
	return nil
}

// destinationSafety reuses a fresh verdict already stored for the same URL
// and only calls the classifier when none exists.
func (s *service) destinationSafety(ctx context.Context, rawURL string, now time.Time) (SafetyStatus, error) {
	const op = "shortener.service.destinationSafety"

	cached, err := s.repo.LatestSafety(ctx, rawURL)
	switch {
	case err == nil && !cached.NeedsRefresh(now):
		metrics.SafetyCacheLookups.WithLabelValues("hit").Inc()
		if !cached.IsSafe {
			return SafetyStatus{}, errx.E(op, errx.Invalid, &UnsafeError{
				ThreatTypes:    cached.ThreatTypes,
				PlatformStatus: cached.PlatformStatus,
			})
		}
		return cached, nil
	case err != nil && errx.KindOf(err) != errx.NotFound:
		s.logger.WarnContext(ctx, "cached verdict lookup failed",
			"error", err,
			"operation", errx.OpOf(err),
		)
	}
	metrics.SafetyCacheLookups.WithLabelValues("miss").Inc()

	v := s.classifier.CheckURL(ctx, rawURL)
	if !v.IsSafe {
		return SafetyStatus{}, errx.E(op, errx.Invalid, &UnsafeError{
			ThreatTypes:    v.ThreatTypes,
			PlatformStatus: v.PlatformStatus,
		})
	}
	return SafetyFromVerdict(v), nil
}

// owned loads a link and checks that owner may manage it.
func (s *service) owned(ctx context.Context, op string, id, owner uuid.UUID) (Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	if !link.OwnedBy(owner) {
		return Link{}, errx.E(op, errx.Forbidden, errors.New("link belongs to another owner"))
	}
	return link, nil
}

func (s *service) Get(ctx context.Context, id, owner uuid.UUID) (Link, error) {
	const op = "shortener.service.Get"

	link, err := s.owned(ctx, op, id, owner)
	if err != nil {
		return Link{}, err
	}

	countries, devices, err := s.repo.Tallies(ctx, id)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	link.Analytics.Countries = countries
	link.Analytics.Devices = devices
	return link, nil
}

func (s *service) List(ctx context.Context, owner uuid.UUID) ([]Link, error) {
	const op = "shortener.service.List"

	links, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return links, nil
}

func (s *service) Update(ctx context.Context, id, owner uuid.UUID, patch LinkPatch) (Link, error) {
	const op = "shortener.service.Update"

	if patch.Status != nil && *patch.Status != StatusActive && *patch.Status != StatusDisabled {
		return Link{}, errx.E(op, errx.Invalid, fmt.Errorf("status must be %q or %q", StatusActive, StatusDisabled))
	}

	link, err := s.owned(ctx, op, id, owner)
	if err != nil {
		return Link{}, err
	}
	// a flagged link only leaves that state through a safety re-check
	if patch.Status != nil && link.Status == StatusFlagged {
		return Link{}, errx.E(op, errx.Conflict, errors.New("flagged links cannot change status"))
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id, owner uuid.UUID) error {
	const op = "shortener.service.Delete"

	if _, err := s.owned(ctx, op, id, owner); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errx.Wrap(op, err)
	}
	return nil
}

func (s *service) Stats(ctx context.Context, id, owner uuid.UUID) (Stats, error) {
	const op = "shortener.service.Stats"

	if _, err := s.owned(ctx, op, id, owner); err != nil {
		return Stats{}, err
	}
	stats, err := s.repo.Stats(ctx, id, s.now().Add(-DefaultStatsWindow))
	if err != nil {
		return Stats{}, errx.Wrap(op, err)
	}
	return stats, nil
}

func (s *service) Overview(ctx context.Context, owner uuid.UUID) (OwnerStats, error) {
	const op = "shortener.service.Overview"

	stats, err := s.repo.OwnerStats(ctx, owner, s.now().Add(-DefaultStatsWindow), OwnerTopLinks)
	if err != nil {
		return OwnerStats{}, errx.Wrap(op, err)
	}
	return stats, nil
}

// Sweep re-checks a batch of links whose cached verdict has lapsed and flags
// the ones the classifier now rejects.
func (s *service) Sweep(ctx context.Context, limit int) (SweepResult, error) {
	const op = "shortener.service.Sweep"

	if limit <= 0 {
		limit = DefaultSweepBatchLimit
	}

	links, err := s.repo.ListDueForSafetyCheck(ctx, s.now(), limit)
	if err != nil {
		return SweepResult{}, errx.Wrap(op, err)
	}
	if len(links) == 0 {
		return SweepResult{}, nil
	}

	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.OriginalURL)
	}
	verdicts := s.classifier.CheckURLs(ctx, urls)

	var res SweepResult
	for _, l := range links {
		v, ok := verdicts[l.OriginalURL]
		// a provider failure is not evidence of a threat; retry next sweep
		if !ok || v.Err != nil {
			res.Failed++
			continue
		}
		res.Checked++

		if err := s.repo.UpdateSafety(ctx, l.ID, SafetyFromVerdict(v)); err != nil {
			res.Failed++
			s.logger.WarnContext(ctx, "failed to persist sweep verdict",
				"link_id", l.ID.String(),
				"error", err,
			)
			continue
		}
		if v.IsSafe || l.Status != StatusActive {
			continue
		}

		changed, err := s.repo.SetStatus(ctx, l.ID, StatusFlagged)
		if err != nil {
			res.Failed++
			s.logger.WarnContext(ctx, "failed to flag link",
				"link_id", l.ID.String(),
				"error", err,
			)
			continue
		}
		if changed {
			res.Flagged++
			s.logger.InfoContext(ctx, "link flagged by safety sweep",
				"link_id", l.ID.String(),
				"short_code", l.ShortCode,
				"threat_types", v.ThreatTypes,
			)
		}
	}
	return res, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}
