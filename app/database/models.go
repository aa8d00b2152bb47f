package database

import (
	"strconv"
	"time"

	"github.com/feedstash/feedstash/app/feed"
)

// FeedStatus is the closed set of user-facing feed states. The UI layer
// reads these; the core never interprets them back.
type FeedStatus string

const (
	StatusOK        FeedStatus = "ok"
	StatusSuspended FeedStatus = "suspended"
	StatusResumed   FeedStatus = "resumed" // resumed, first pass still pending
	StatusError     FeedStatus = "error"
	StatusUnknown   FeedStatus = "unknown"
)

// Marker returns the user-facing icon for a status.
func (s FeedStatus) Marker() string {
	switch s {
	case StatusOK:
		return "✓"
	case StatusSuspended:
		return "⏸"
	case StatusResumed:
		return "▶"
	case StatusError:
		return "⚠"
	default:
		return "?"
	}
}

type Feed struct {
	Name           string // Configuration feed identifier derived from filename
	FeedURL        string // RSS/Atom feed URL from configuration
	Title          string
	Link           string // Homepage URL from feed's <link> element
	Description    string
	ImageURL       string
	RetentionLimit int
	PollInterval   int // hours, recomputed from the feed's posting cadence
	LastUpdatedAt  *time.Time
	Status         FeedStatus
	StatusMessage  string
	Suspended      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Record projects the persisted feed state into the reconciler's view.
func (f *Feed) Record() feed.FeedRecord {
	rec := feed.FeedRecord{
		Name:           f.Name,
		URL:            f.FeedURL,
		RetentionLimit: f.RetentionLimit,
		PollInterval:   f.PollInterval,
		Suspended:      f.Suspended,
	}
	if f.LastUpdatedAt != nil {
		rec.LastUpdatedAt = *f.LastUpdatedAt
	}
	return rec
}

type Item struct {
	ID             int64
	FeedName       string
	GUID           string
	Title          string
	Link           string
	Description    string
	Content        string
	Author         string
	PublishedAt    time.Time
	Pinned         bool
	Tags           []string // local-domain tags, already re-mapped
	ImageURL       string
	StorageRef     string
	DownloadStatus string // pending, success, failed, skipped
	DownloadedAt   *time.Time
	CreatedAt      time.Time
}

// Record projects the persisted item into the reconciler's view.
func (i Item) Record() feed.ItemRecord {
	return feed.ItemRecord{
		ID:          strconv.FormatInt(i.ID, 10),
		GUID:        i.GUID,
		PublishedAt: i.PublishedAt,
		Pinned:      i.Pinned,
		Tags:        i.Tags,
		StorageRef:  i.StorageRef,
	}
}

const (
	DownloadPending = "pending"
	DownloadSuccess = "success"
	DownloadFailed  = "failed"
	DownloadSkipped = "skipped"
)
