package shortener

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkshield/internal/tracking"
)

// Repository defines the persistence operations for links.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetByShortCode(ctx context.Context, code string) (Link, error)
	GetByID(ctx context.Context, id uuid.UUID) (Link, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]Link, error)
	Update(ctx context.Context, id uuid.UUID, patch LinkPatch) (Link, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// SetStatus reports whether the status changed.
	SetStatus(ctx context.Context, id uuid.UUID, status string) (bool, error)
	UpdateSafety(ctx context.Context, id uuid.UUID, s SafetyStatus) error
	// LatestSafety returns the most recent verdict stored for any link to url.
	LatestSafety(ctx context.Context, url string) (SafetyStatus, error)
	ListDueForSafetyCheck(ctx context.Context, now time.Time, limit int) ([]Link, error)

	// CountRecentAnonymous counts anonymous links created since by visitorID,
	// or by ip when visitorID is empty.
	CountRecentAnonymous(ctx context.Context, since time.Time, visitorID, ip string) (int64, error)

	Tallies(ctx context.Context, id uuid.UUID) (countries, devices []Tally, err error)
	Stats(ctx context.Context, id uuid.UUID, since time.Time) (Stats, error)
	OwnerStats(ctx context.Context, owner uuid.UUID, since time.Time, top int) (OwnerStats, error)

	// List pages through every link, newest first.
	List(ctx context.Context, f LinkFilter) ([]Link, error)
	// Moderate writes status and verdict together.
	Moderate(ctx context.Context, id uuid.UUID, status string, s SafetyStatus) (Link, error)
	Clicks(ctx context.Context, id uuid.UUID, limit int) ([]tracking.Click, error)
	PlatformStats(ctx context.Context, since time.Time, top int) (PlatformStats, error)
}
