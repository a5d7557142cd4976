package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/linkshield/internal/db/sqlc"
	"github.com/sundayezeilo/linkshield/internal/errx"
	"github.com/sundayezeilo/linkshield/internal/geo"
	"github.com/sundayezeilo/linkshield/internal/ids"
	"github.com/sundayezeilo/linkshield/internal/tracking"
)

// querier is an internal interface that abstracts *db.Queries
type querier interface {
	CreateLink(ctx context.Context, arg db.CreateLinkParams) (db.Link, error)
	GetLinkByShortCode(ctx context.Context, shortCode string) (db.Link, error)
	GetLinkByID(ctx context.Context, id uuid.UUID) (db.Link, error)
	ListLinksByOwner(ctx context.Context, ownerID pgtype.UUID) ([]db.Link, error)
	UpdateLinkDetails(ctx context.Context, arg db.UpdateLinkDetailsParams) (db.Link, error)
	DeleteLink(ctx context.Context, id uuid.UUID) (int64, error)
	SetLinkStatus(ctx context.Context, arg db.SetLinkStatusParams) (int64, error)
	UpdateSafetyStatus(ctx context.Context, arg db.UpdateSafetyStatusParams) (int64, error)
	GetLatestSafetyByURL(ctx context.Context, originalUrl string) (db.GetLatestSafetyByURLRow, error)
	ListLinksDueForSafetyCheck(ctx context.Context, arg db.ListLinksDueForSafetyCheckParams) ([]db.Link, error)
	CountRecentAnonymousLinks(ctx context.Context, arg db.CountRecentAnonymousLinksParams) (int64, error)
	ListCountryTallies(ctx context.Context, linkID uuid.UUID) ([]db.ListCountryTalliesRow, error)
	ListDeviceTallies(ctx context.Context, linkID uuid.UUID) ([]db.ListDeviceTalliesRow, error)
	ClicksByDate(ctx context.Context, arg db.ClicksByDateParams) ([]db.ClicksByDateRow, error)
	ClicksByCountry(ctx context.Context, linkID uuid.UUID) ([]db.ClicksByCountryRow, error)
	ClicksByDevice(ctx context.Context, linkID uuid.UUID) ([]db.ClicksByDeviceRow, error)
	ListLinks(ctx context.Context, arg db.ListLinksParams) ([]db.Link, error)
	ModerateLink(ctx context.Context, arg db.ModerateLinkParams) (db.Link, error)
	ListClicksByLink(ctx context.Context, arg db.ListClicksByLinkParams) ([]db.Click, error)
	PlatformLinkCounts(ctx context.Context) (db.PlatformLinkCountsRow, error)
	PlatformClicksByDate(ctx context.Context, createdAt pgtype.Timestamptz) ([]db.PlatformClicksByDateRow, error)
	TopCountries(ctx context.Context, limit int32) ([]db.TopCountriesRow, error)
	OwnerLinkCounts(ctx context.Context, ownerID pgtype.UUID) (db.OwnerLinkCountsRow, error)
	OwnerClicksByDate(ctx context.Context, arg db.OwnerClicksByDateParams) ([]db.OwnerClicksByDateRow, error)
	OwnerTopLinks(ctx context.Context, arg db.OwnerTopLinksParams) ([]db.OwnerTopLinksRow, error)
}

type repo struct {
	q   querier
	ids ids.Generator
}

// RepositoryConfig holds configuration for the repository
type RepositoryConfig struct {
	IDGenerator ids.Generator
}

// NewRepository creates a new Repository implementation
func NewRepository(q querier, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	if config.IDGenerator == nil {
		config.IDGenerator = ids.TimeOrdered(2)
	}

	return &repo{
		q:   q,
		ids: config.IDGenerator,
	}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func toText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func toDomainLink(x db.Link) (Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	updatedAt, err := mustTime(x.UpdatedAt, "updated_at")
	if err != nil {
		return Link{}, err
	}

	link := Link{
		ID:          x.ID,
		ShortCode:   x.ShortCode,
		OriginalURL: x.OriginalUrl,
		CustomAlias: textPtr(x.CustomAlias),
		Title:       x.Title,
		Description: x.Description,
		IsAnonymous: x.IsAnonymous,
		CreatorIP:   x.CreatorIp,
		VisitorID:   textPtr(x.VisitorID),
		Status:      x.Status,
		ExpiresAt:   timePtr(x.ExpiresAt),
		ClickCount:  x.ClickCount,
		Safety: SafetyStatus{
			IsSafe:         x.SafetyIsSafe,
			LastChecked:    timePtr(x.SafetyLastChecked),
			ThreatTypes:    nonNil(x.SafetyThreatTypes),
			PlatformStatus: nonNil(x.SafetyPlatformStatus),
			CacheExpiry:    timePtr(x.SafetyCacheExpiry),
		},
		Analytics: Analytics{
			TotalClicks:    x.TotalClicks,
			UniqueVisitors: x.UniqueVisitors,
			LastClicked:    timePtr(x.LastClickedAt),
			Countries:      []Tally{},
			Devices:        []Tally{},
		},
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if x.OwnerID.Valid {
		owner := uuid.UUID(x.OwnerID.Bytes)
		link.OwnerID = &owner
	}
	if x.MaxClicks.Valid {
		n := x.MaxClicks.Int64
		link.MaxClicks = &n
	}
	return link, nil
}

func toDomainResult(op string, row db.Link) (Link, error) {
	link, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func toDomainLinks(rows []db.Link) ([]Link, error) {
	out := make([]Link, 0, len(rows))
	for _, row := range rows {
		l, err := toDomainLink(row)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isShortCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, fmt.Errorf("%w: %w", ErrShortCodeTaken, err))

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *repo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.Create"

	if link.ID == uuid.Nil {
		id, err := r.ids.New()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}
	if link.Status == "" {
		link.Status = StatusActive
	}

	params := db.CreateLinkParams{
		ID:                   link.ID,
		ShortCode:            link.ShortCode,
		OriginalUrl:          link.OriginalURL,
		CustomAlias:          toText(link.CustomAlias),
		Title:                link.Title,
		Description:          link.Description,
		IsAnonymous:          link.IsAnonymous,
		CreatorIp:            link.CreatorIP,
		VisitorID:            toText(link.VisitorID),
		Status:               link.Status,
		ExpiresAt:            toTimestamptz(link.ExpiresAt),
		SafetyIsSafe:         link.Safety.IsSafe,
		SafetyLastChecked:    toTimestamptz(link.Safety.LastChecked),
		SafetyThreatTypes:    nonNil(link.Safety.ThreatTypes),
		SafetyPlatformStatus: nonNil(link.Safety.PlatformStatus),
		SafetyCacheExpiry:    toTimestamptz(link.Safety.CacheExpiry),
	}
	if link.OwnerID != nil {
		params.OwnerID = pgtype.UUID{Bytes: *link.OwnerID, Valid: true}
	}
	if link.MaxClicks != nil {
		params.MaxClicks = pgtype.Int8{Int64: *link.MaxClicks, Valid: true}
	}

	row, err := r.q.CreateLink(ctx, params)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	return toDomainResult(op, row)
}

func (r *repo) GetByShortCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repo.GetByShortCode"

	row, err := r.q.GetLinkByShortCode(ctx, code)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainResult(op, row)
}

func (r *repo) GetByID(ctx context.Context, id uuid.UUID) (Link, error) {
	const op = "shortener.repo.GetByID"

	row, err := r.q.GetLinkByID(ctx, id)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainResult(op, row)
}

func (r *repo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]Link, error) {
	const op = "shortener.repo.ListByOwner"

	rows, err := r.q.ListLinksByOwner(ctx, pgtype.UUID{Bytes: owner, Valid: true})
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	links, err := toDomainLinks(rows)
	if err != nil {
		return nil, errx.E(op, errx.Internal, err)
	}
	return links, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, patch LinkPatch) (Link, error) {
	const op = "shortener.repo.Update"

	row, err := r.q.UpdateLinkDetails(ctx, db.UpdateLinkDetailsParams{
		Title:       toText(patch.Title),
		Description: toText(patch.Description),
		Status:      toText(patch.Status),
		ID:          id,
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainResult(op, row)
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "shortener.repo.Delete"

	n, err := r.q.DeleteLink(ctx, id)
	if err != nil {
		return mapRepoError(op, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}

func (r *repo) SetStatus(ctx context.Context, id uuid.UUID, status string) (bool, error) {
	const op = "shortener.repo.SetStatus"

	n, err := r.q.SetLinkStatus(ctx, db.SetLinkStatusParams{ID: id, Status: status})
	if err != nil {
		return false, mapRepoError(op, err)
	}
	return n > 0, nil
}

func (r *repo) UpdateSafety(ctx context.Context, id uuid.UUID, s SafetyStatus) error {
	const op = "shortener.repo.UpdateSafety"

	n, err := r.q.UpdateSafetyStatus(ctx, db.UpdateSafetyStatusParams{
		ID:                   id,
		SafetyIsSafe:         s.IsSafe,
		SafetyLastChecked:    toTimestamptz(s.LastChecked),
		SafetyThreatTypes:    nonNil(s.ThreatTypes),
		SafetyPlatformStatus: nonNil(s.PlatformStatus),
		SafetyCacheExpiry:    toTimestamptz(s.CacheExpiry),
	})
	if err != nil {
		return mapRepoError(op, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}

func (r *repo) LatestSafety(ctx context.Context, url string) (SafetyStatus, error) {
	const op = "shortener.repo.LatestSafety"

	row, err := r.q.GetLatestSafetyByURL(ctx, url)
	if err != nil {
		return SafetyStatus{}, mapRepoError(op, err)
	}
	return SafetyStatus{
		IsSafe:         row.SafetyIsSafe,
		LastChecked:    timePtr(row.SafetyLastChecked),
		ThreatTypes:    nonNil(row.SafetyThreatTypes),
		PlatformStatus: nonNil(row.SafetyPlatformStatus),
		CacheExpiry:    timePtr(row.SafetyCacheExpiry),
	}, nil
}

func (r *repo) ListDueForSafetyCheck(ctx context.Context, now time.Time, limit int) ([]Link, error) {
	const op = "shortener.repo.ListDueForSafetyCheck"

	rows, err := r.q.ListLinksDueForSafetyCheck(ctx, db.ListLinksDueForSafetyCheckParams{
		SafetyCacheExpiry: toTimestamptz(&now),
		Limit:             int32(limit),
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	links, err := toDomainLinks(rows)
	if err != nil {
		return nil, errx.E(op, errx.Internal, err)
	}
	return links, nil
}

func (r *repo) CountRecentAnonymous(ctx context.Context, since time.Time, visitorID, ip string) (int64, error) {
	const op = "shortener.repo.CountRecentAnonymous"

	n, err := r.q.CountRecentAnonymousLinks(ctx, db.CountRecentAnonymousLinksParams{
		Since:     toTimestamptz(&since),
		VisitorID: pgtype.Text{String: visitorID, Valid: visitorID != ""},
		CreatorIp: ip,
	})
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return n, nil
}

func (r *repo) Tallies(ctx context.Context, id uuid.UUID) ([]Tally, []Tally, error) {
	const op = "shortener.repo.Tallies"

	countryRows, err := r.q.ListCountryTallies(ctx, id)
	if err != nil {
		return nil, nil, mapRepoError(op, err)
	}
	deviceRows, err := r.q.ListDeviceTallies(ctx, id)
	if err != nil {
		return nil, nil, mapRepoError(op, err)
	}

	countries := make([]Tally, 0, len(countryRows))
	for _, c := range countryRows {
		countries = append(countries, Tally{Key: c.Country, Count: c.Count})
	}
	devices := make([]Tally, 0, len(deviceRows))
	for _, d := range deviceRows {
		devices = append(devices, Tally{Key: d.DeviceType, Count: d.Count})
	}
	return countries, devices, nil
}

func (r *repo) Stats(ctx context.Context, id uuid.UUID, since time.Time) (Stats, error) {
	const op = "shortener.repo.Stats"

	link, err := r.q.GetLinkByID(ctx, id)
	if err != nil {
		return Stats{}, mapRepoError(op, err)
	}
	byDate, err := r.q.ClicksByDate(ctx, db.ClicksByDateParams{LinkID: id, CreatedAt: toTimestamptz(&since)})
	if err != nil {
		return Stats{}, mapRepoError(op, err)
	}
	byCountry, err := r.q.ClicksByCountry(ctx, id)
	if err != nil {
		return Stats{}, mapRepoError(op, err)
	}
	byDevice, err := r.q.ClicksByDevice(ctx, id)
	if err != nil {
		return Stats{}, mapRepoError(op, err)
	}

	s := Stats{
		TotalClicks:     link.TotalClicks,
		UniqueVisitors:  link.UniqueVisitors,
		LastClicked:     timePtr(link.LastClickedAt),
		ClicksByDate:    make([]DayCount, 0, len(byDate)),
		ClicksByCountry: make([]Tally, 0, len(byCountry)),
		ClicksByDevice:  make([]Tally, 0, len(byDevice)),
	}
	for _, d := range byDate {
		s.ClicksByDate = append(s.ClicksByDate, DayCount{Date: d.Day, Clicks: d.Clicks})
	}
	for _, c := range byCountry {
		s.ClicksByCountry = append(s.ClicksByCountry, Tally{Key: c.Country, Count: c.Clicks})
	}
	for _, d := range byDevice {
		s.ClicksByDevice = append(s.ClicksByDevice, Tally{Key: d.DeviceType, Count: d.Clicks})
	}
	return s, nil
}

func (r *repo) OwnerStats(ctx context.Context, owner uuid.UUID, since time.Time, top int) (OwnerStats, error) {
	const op = "shortener.repo.OwnerStats"

	ownerID := pgtype.UUID{Bytes: owner, Valid: true}

	counts, err := r.q.OwnerLinkCounts(ctx, ownerID)
	if err != nil {
		return OwnerStats{}, mapRepoError(op, err)
	}
	byDate, err := r.q.OwnerClicksByDate(ctx, db.OwnerClicksByDateParams{OwnerID: ownerID, CreatedAt: toTimestamptz(&since)})
	if err != nil {
		return OwnerStats{}, mapRepoError(op, err)
	}
	topRows, err := r.q.OwnerTopLinks(ctx, db.OwnerTopLinksParams{OwnerID: ownerID, Limit: int32(top)})
	if err != nil {
		return OwnerStats{}, mapRepoError(op, err)
	}

	s := OwnerStats{
		TotalLinks:     counts.TotalLinks,
		ActiveLinks:    counts.ActiveLinks,
		FlaggedLinks:   counts.FlaggedLinks,
		TotalClicks:    counts.TotalClicks,
		UniqueVisitors: counts.UniqueVisitors,
		ClicksByDate:   make([]DayCount, 0, len(byDate)),
		TopLinks:       make([]LinkSummary, 0, len(topRows)),
	}
	for _, d := range byDate {
		s.ClicksByDate = append(s.ClicksByDate, DayCount{Date: d.Day, Clicks: d.Clicks})
	}
	for _, l := range topRows {
		s.TopLinks = append(s.TopLinks, LinkSummary{
			ID:          l.ID,
			ShortCode:   l.ShortCode,
			OriginalURL: l.OriginalUrl,
			Title:       l.Title,
			TotalClicks: l.TotalClicks,
		})
	}
	return s, nil
}

func (r *repo) List(ctx context.Context, f LinkFilter) ([]Link, error) {
	const op = "shortener.repo.List"

	rows, err := r.q.ListLinks(ctx, db.ListLinksParams{
		Status: pgtype.Text{String: f.Status, Valid: f.Status != ""},
		Limit:  int32(f.Limit),
		Offset: int32(f.Offset),
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	links, err := toDomainLinks(rows)
	if err != nil {
		return nil, errx.E(op, errx.Internal, err)
	}
	return links, nil
}

func (r *repo) Moderate(ctx context.Context, id uuid.UUID, status string, s SafetyStatus) (Link, error) {
	const op = "shortener.repo.Moderate"

	row, err := r.q.ModerateLink(ctx, db.ModerateLinkParams{
		ID:                   id,
		Status:               status,
		SafetyIsSafe:         s.IsSafe,
		SafetyLastChecked:    toTimestamptz(s.LastChecked),
		SafetyThreatTypes:    nonNil(s.ThreatTypes),
		SafetyPlatformStatus: nonNil(s.PlatformStatus),
		SafetyCacheExpiry:    toTimestamptz(s.CacheExpiry),
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainResult(op, row)
}

func (r *repo) Clicks(ctx context.Context, id uuid.UUID, limit int) ([]tracking.Click, error) {
	const op = "shortener.repo.Clicks"

	rows, err := r.q.ListClicksByLink(ctx, db.ListClicksByLinkParams{LinkID: id, Limit: int32(limit)})
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	out := make([]tracking.Click, 0, len(rows))
	for _, c := range rows {
		out = append(out, tracking.Click{
			ID:        c.ID,
			LinkID:    c.LinkID,
			IPAddress: c.IpAddress,
			UserAgent: c.UserAgent,
			Device:    tracking.Device{Type: c.DeviceType, Browser: c.Browser, OS: c.Os},
			Location: geo.Location{
				Country:     c.Country,
				CountryCode: c.CountryCode,
				Region:      c.Region,
				City:        c.City,
				Lat:         c.Lat,
				Lon:         c.Lon,
				ISP:         c.Isp,
				Timezone:    c.Timezone,
			},
			Referrer:        c.Referrer.String,
			VisitorHash:     c.VisitorHash,
			IsUniqueVisitor: c.IsUnique,
			ResponseTime:    time.Duration(c.ResponseTimeMs) * time.Millisecond,
			CreatedAt:       c.CreatedAt.Time,
		})
	}
	return out, nil
}

func (r *repo) PlatformStats(ctx context.Context, since time.Time, top int) (PlatformStats, error) {
	const op = "shortener.repo.PlatformStats"

	counts, err := r.q.PlatformLinkCounts(ctx)
	if err != nil {
		return PlatformStats{}, mapRepoError(op, err)
	}
	byDate, err := r.q.PlatformClicksByDate(ctx, toTimestamptz(&since))
	if err != nil {
		return PlatformStats{}, mapRepoError(op, err)
	}
	countries, err := r.q.TopCountries(ctx, int32(top))
	if err != nil {
		return PlatformStats{}, mapRepoError(op, err)
	}

	s := PlatformStats{
		TotalLinks:     counts.TotalLinks,
		ActiveLinks:    counts.ActiveLinks,
		FlaggedLinks:   counts.FlaggedLinks,
		DisabledLinks:  counts.DisabledLinks,
		UnsafeLinks:    counts.UnsafeLinks,
		AnonymousLinks: counts.AnonymousLinks,
		Owners:         counts.Owners,
		TotalClicks:    counts.TotalClicks,
		ClicksByDate:   make([]DayCount, 0, len(byDate)),
		TopCountries:   make([]Tally, 0, len(countries)),
	}
	for _, d := range byDate {
		s.ClicksByDate = append(s.ClicksByDate, DayCount{Date: d.Day, Clicks: d.Clicks})
	}
	for _, c := range countries {
		s.TopCountries = append(s.TopCountries, Tally{Key: c.Country, Count: c.Clicks})
	}
	return s, nil
}
