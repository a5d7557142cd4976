package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/linkshield/internal/db/sqlc"
	"github.com/sundayezeilo/linkshield/internal/errx"
)

// Store persists clicks and the link aggregates they feed.
type Store interface {
	// ApplyClick inserts the click and bumps every aggregate in one
	// transaction. A failure leaves neither behind.
	ApplyClick(ctx context.Context, c Click) error
	CountClicksSince(ctx context.Context, linkID uuid.UUID, since time.Time) (int64, error)
	// DisableLink reports whether the status actually changed.
	DisableLink(ctx context.Context, linkID uuid.UUID) (bool, error)
}

type txBeginner interface {
	db.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore implements Store and Visitors on Postgres.
type PGStore struct {
	conn txBeginner
	q    *db.Queries
	now  func() time.Time
}

// NewPGStore takes a *pgxpool.Pool or any connection that can begin transactions.
func NewPGStore(conn txBeginner) *PGStore {
	return &PGStore{conn: conn, q: db.New(conn), now: time.Now}
}

func ts(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func (s *PGStore) ApplyClick(ctx context.Context, c Click) error {
	const op = "tracking.store.ApplyClick"

	var uniqueDelta int64
	if c.IsUniqueVisitor {
		uniqueDelta = 1
	}

	err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		q := s.q.WithTx(tx)

		if err := q.InsertClick(ctx, db.InsertClickParams{
			ID:             c.ID,
			LinkID:         c.LinkID,
			IpAddress:      c.IPAddress,
			UserAgent:      c.UserAgent,
			DeviceType:     c.Device.Type,
			Browser:        c.Device.Browser,
			Os:             c.Device.OS,
			Country:        c.Location.Country,
			CountryCode:    c.Location.CountryCode,
			Region:         c.Location.Region,
			City:           c.Location.City,
			Lat:            c.Location.Lat,
			Lon:            c.Location.Lon,
			Isp:            c.Location.ISP,
			Timezone:       c.Location.Timezone,
			Referrer:       pgtype.Text{String: c.Referrer, Valid: c.Referrer != ""},
			VisitorHash:    c.VisitorHash,
			IsUnique:       c.IsUniqueVisitor,
			ResponseTimeMs: int32(c.ResponseTime.Milliseconds()),
			CreatedAt:      ts(c.CreatedAt),
		}); err != nil {
			return fmt.Errorf("insert click: %w", err)
		}

		n, err := q.IncrementLinkCounters(ctx, db.IncrementLinkCountersParams{
			UniqueDelta: uniqueDelta,
			ClickedAt:   ts(c.CreatedAt),
			ID:          c.LinkID,
		})
		if err != nil {
			return fmt.Errorf("increment counters: %w", err)
		}
		if n == 0 {
			return pgx.ErrNoRows
		}

		if err := q.UpsertCountryTally(ctx, db.UpsertCountryTallyParams{
			LinkID:  c.LinkID,
			Country: c.Location.Country,
		}); err != nil {
			return fmt.Errorf("country tally: %w", err)
		}
		if err := q.UpsertDeviceTally(ctx, db.UpsertDeviceTallyParams{
			LinkID:     c.LinkID,
			DeviceType: c.Device.Type,
		}); err != nil {
			return fmt.Errorf("device tally: %w", err)
		}
		return nil
	})
	if err != nil {
		if isNoRows(err) {
			return errx.E(op, errx.NotFound, err)
		}
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (s *PGStore) CountClicksSince(ctx context.Context, linkID uuid.UUID, since time.Time) (int64, error) {
	const op = "tracking.store.CountClicksSince"
	n, err := s.q.CountClicksSince(ctx, db.CountClicksSinceParams{LinkID: linkID, CreatedAt: ts(since)})
	if err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}
	return n, nil
}

func (s *PGStore) DisableLink(ctx context.Context, linkID uuid.UUID) (bool, error) {
	const op = "tracking.store.DisableLink"
	n, err := s.q.SetLinkStatus(ctx, db.SetLinkStatusParams{ID: linkID, Status: "disabled"})
	if err != nil {
		return false, errx.E(op, errx.Unavailable, err)
	}
	return n > 0, nil
}

// FirstVisit is the Postgres fallback for unique-visitor detection when no
// Redis is configured. It is a read before the click insert, so two
// simultaneous first clicks from one visitor can both count.
func (s *PGStore) FirstVisit(ctx context.Context, linkID uuid.UUID, visitorHash string, window time.Duration) (bool, error) {
	const op = "tracking.store.FirstVisit"
	seen, err := s.q.HasVisitorSince(ctx, db.HasVisitorSinceParams{
		LinkID:      linkID,
		VisitorHash: visitorHash,
		CreatedAt:   ts(s.now().Add(-window)),
	})
	if err != nil {
		return false, errx.E(op, errx.Unavailable, err)
	}
	return !seen, nil
}
