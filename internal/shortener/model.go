package shortener

import (
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linkshield/internal/safety"
	"github.com/sundayezeilo/linkshield/internal/tracking"
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
	StatusFlagged  = "flagged"
)

// SafetyStatus is the cached classifier verdict for a link's destination.
type SafetyStatus struct {
	IsSafe         bool       `json:"isSafe"`
	LastChecked    *time.Time `json:"lastChecked,omitempty"`
	ThreatTypes    []string   `json:"threatTypes"`
	PlatformStatus []string   `json:"platformStatus"`
	CacheExpiry    *time.Time `json:"cacheExpiry,omitempty"`
}

// SafetyFromVerdict folds a classifier verdict into the persisted form.
// Verdicts from a failed provider call keep a short expiry.
func SafetyFromVerdict(v safety.Verdict) SafetyStatus {
	checked := v.CheckedAt
	expiry := safety.Expiry(v)
	return SafetyStatus{
		IsSafe:         v.IsSafe,
		LastChecked:    &checked,
		ThreatTypes:    nonNil(v.ThreatTypes),
		PlatformStatus: nonNil(v.PlatformStatus),
		CacheExpiry:    &expiry,
	}
}

// NeedsRefresh reports whether the cached verdict must be re-validated at now.
func (s SafetyStatus) NeedsRefresh(now time.Time) bool {
	return safety.ShouldRefresh(s.LastChecked, s.CacheExpiry, now)
}

// Tally is one bucket of a per-country or per-device breakdown.
type Tally struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Analytics are the aggregates maintained by click tracking.
type Analytics struct {
	TotalClicks    int64      `json:"totalClicks"`
	UniqueVisitors int64      `json:"uniqueVisitors"`
	LastClicked    *time.Time `json:"lastClicked,omitempty"`
	Countries      []Tally    `json:"countries"`
	Devices        []Tally    `json:"devices"`
}

type Link struct {
	ID          uuid.UUID
	ShortCode   string
	OriginalURL string
	CustomAlias *string
	Title       string
	Description string
	OwnerID     *uuid.UUID
	IsAnonymous bool
	CreatorIP   string
	VisitorID   *string
	Status      string
	ExpiresAt   *time.Time
	MaxClicks   *int64
	ClickCount  int64
	Safety      SafetyStatus
	Analytics   Analytics
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expired reports whether the link's expiry has passed at now.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// CeilingReached reports whether the optional click ceiling is used up.
func (l Link) CeilingReached() bool {
	return l.MaxClicks != nil && l.ClickCount >= *l.MaxClicks
}

// Accessible is true when the link is active, unexpired, under its click
// ceiling and its cached verdict is safe.
func (l Link) Accessible(now time.Time) bool {
	return l.Status == StatusActive &&
		!l.Expired(now) &&
		!l.CeilingReached() &&
		l.Safety.IsSafe
}

// OwnedBy reports whether owner may manage the link.
func (l Link) OwnedBy(owner uuid.UUID) bool {
	return l.OwnerID != nil && *l.OwnerID == owner
}

// Ref is the subset of the link the click tracker needs.
func (l Link) Ref() tracking.LinkRef {
	return tracking.LinkRef{
		ID:          l.ID,
		ShortCode:   l.ShortCode,
		IsAnonymous: l.IsAnonymous,
	}
}

// LinkPatch holds an owner's edits; nil fields are left unchanged.
type LinkPatch struct {
	Title       *string
	Description *string
	Status      *string
}

// DayCount is the number of clicks on one UTC day (YYYY-MM-DD).
type DayCount struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// Stats is the owner-facing analytics report for one link.
type Stats struct {
	TotalClicks     int64      `json:"totalClicks"`
	UniqueVisitors  int64      `json:"uniqueVisitors"`
	LastClicked     *time.Time `json:"lastClicked,omitempty"`
	ClicksByDate    []DayCount `json:"clicksByDate"`
	ClicksByCountry []Tally    `json:"clicksByCountry"`
	ClicksByDevice  []Tally    `json:"clicksByDevice"`
}

// LinkSummary is one row of an owner's top links.
type LinkSummary struct {
	ID          uuid.UUID `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	Title       string    `json:"title"`
	TotalClicks int64     `json:"totalClicks"`
}

// OwnerStats is the account-wide report across an owner's links.
type OwnerStats struct {
	TotalLinks     int64         `json:"totalLinks"`
	ActiveLinks    int64         `json:"activeLinks"`
	FlaggedLinks   int64         `json:"flaggedLinks"`
	TotalClicks    int64         `json:"totalClicks"`
	UniqueVisitors int64         `json:"uniqueVisitors"`
	ClicksByDate   []DayCount    `json:"clicksByDate"`
	TopLinks       []LinkSummary `json:"topLinks"`
}

// PlatformStats is the admin dashboard report.
type PlatformStats struct {
	TotalLinks     int64      `json:"totalLinks"`
	ActiveLinks    int64      `json:"activeLinks"`
	FlaggedLinks   int64      `json:"flaggedLinks"`
	DisabledLinks  int64      `json:"disabledLinks"`
	UnsafeLinks    int64      `json:"unsafeLinks"`
	AnonymousLinks int64      `json:"anonymousLinks"`
	Owners         int64      `json:"owners"`
	TotalClicks    int64      `json:"totalClicks"`
	ClicksByDate   []DayCount `json:"clicksByDate"`
	TopCountries   []Tally    `json:"topCountries"`
}

// LinkFilter narrows and pages an admin listing. An empty Status matches all.
type LinkFilter struct {
	Status string
	Limit  int
	Offset int
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
