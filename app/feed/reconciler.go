package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// FeedRecord is the persisted feed state a reconciliation pass consults and
// commits. Mutated exclusively through the FeedStore at the end of a pass.
type FeedRecord struct {
	Name           string
	URL            string
	RetentionLimit int
	PollInterval   int // hours
	LastUpdatedAt  time.Time
	Suspended      bool
}

// ItemRecord is the persisted item view used for deduplication and eviction.
// The pinned flag belongs to the user; the reconciler never clears it and
// never evicts an item carrying it.
type ItemRecord struct {
	ID          string
	GUID        string
	PublishedAt time.Time
	Pinned      bool
	Tags        []string
	StorageRef  string
}

type ItemStore interface {
	CreateItem(ctx context.Context, feedName string, item Item, localTags []string) (ItemRecord, error)
	DeleteItem(ctx context.Context, rec ItemRecord) error
}

type FeedStore interface {
	CommitSyncSuccess(ctx context.Context, feedName string, lastUpdated time.Time, pollInterval int) error
	CommitSyncError(ctx context.Context, feedName string, message string) error
}

// TagMapper re-domains external labels; see the tags package.
type TagMapper interface {
	Map(label string) string
	Commit(ctx context.Context, reason string) error
}

// Reconciler diffs a freshly fetched canonical feed against the persisted
// item set and applies the bounded-retention policy: evict first, create
// second, commit feed metadata last.
type Reconciler struct {
	items ItemStore
	feeds FeedStore
	tags  TagMapper
	now   func() time.Time
}

func NewReconciler(items ItemStore, feeds FeedStore, tags TagMapper) *Reconciler {
	return &Reconciler{
		items: items,
		feeds: feeds,
		tags:  tags,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Due reports whether the feed's poll interval has elapsed.
func (r *Reconciler) Due(rec FeedRecord) bool {
	if rec.LastUpdatedAt.IsZero() {
		return true
	}
	next := rec.LastUpdatedAt.Add(time.Duration(rec.PollInterval) * time.Hour)
	return !r.now().Before(next)
}

// Run executes one reconciliation pass and returns the number of items
// created. A failed pass commits an error status on the feed record instead
// of propagating past the feed boundary; the returned error is for logging.
func (r *Reconciler) Run(ctx context.Context, rec FeedRecord, canonical *Feed, existing []ItemRecord, force bool) (int, error) {
	if rec.Suspended {
		slog.Debug("Feed suspended, skipping", "feed", rec.Name)
		return 0, nil
	}

	if !force && !r.Due(rec) {
		slog.Debug("Feed not due yet", "feed", rec.Name,
			"last_updated", rec.LastUpdatedAt, "poll_interval", rec.PollInterval)
		return 0, nil
	}

	present := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		present[item.GUID] = struct{}{}
	}

	// Only the first retentionLimit feed positions are eligible; items
	// beyond that window never become candidates, so an unchanged feed
	// yields an empty candidate set no matter how many items it carries.
	window := canonical.Items
	if len(window) > rec.RetentionLimit {
		window = window[:rec.RetentionLimit]
	}

	var candidates []Item
	for _, item := range window {
		if _, ok := present[item.ID]; ok {
			continue
		}
		candidates = append(candidates, item)
	}

	if len(candidates) > 0 {
		r.evict(ctx, rec, existing, len(candidates))
	}

	created := 0
	for _, item := range candidates {
		localTags := make([]string, 0, len(item.Tags))
		for _, tag := range item.Tags {
			localTags = append(localTags, r.tags.Map(tag))
		}

		if _, err := r.items.CreateItem(ctx, rec.Name, item, localTags); err != nil {
			reconcileErr := &ReconcileError{Feed: rec.Name, Item: item.ID, Cause: err}
			r.commitError(ctx, rec.Name, reconcileErr)
			return created, reconcileErr
		}
		created++
	}

	if err := r.tags.Commit(ctx, rec.Name); err != nil {
		// Mappings stay queued for the next flush; the pass itself succeeded.
		slog.Warn("Tag mapping flush failed", "feed", rec.Name, "error", err)
	}

	if err := r.feeds.CommitSyncSuccess(ctx, rec.Name, r.now(), canonical.AvgPostInterval); err != nil {
		return created, fmt.Errorf("failed to commit feed metadata: %w", err)
	}

	return created, nil
}

// evict removes the oldest unpinned items so that existing plus incoming fit
// the retention limit. Pinned items never count toward pressure. A delete
// failure is logged and the pass continues.
func (r *Reconciler) evict(ctx context.Context, rec FeedRecord, existing []ItemRecord, incoming int) {
	var unpinned []ItemRecord
	for _, item := range existing {
		if !item.Pinned {
			unpinned = append(unpinned, item)
		}
	}
	sort.Slice(unpinned, func(i, j int) bool {
		return unpinned[i].PublishedAt.Before(unpinned[j].PublishedAt)
	})

	deleteCount := len(unpinned) + incoming - rec.RetentionLimit
	if deleteCount <= 0 {
		return
	}
	if deleteCount > len(unpinned) {
		// Soft retention overrun: never touch pinned items to make room.
		deleteCount = len(unpinned)
	}

	for _, victim := range unpinned[:deleteCount] {
		if err := r.items.DeleteItem(ctx, victim); err != nil {
			slog.Warn("Failed to evict item", "feed", rec.Name, "item", victim.GUID, "error", err)
		}
	}
}

// RecordFailure downgrades the feed to error status without touching its
// last-updated timestamp, so the pass is retried on the next cycle.
func (r *Reconciler) RecordFailure(ctx context.Context, feedName string, cause error) {
	r.commitError(ctx, feedName, cause)
}

func (r *Reconciler) commitError(ctx context.Context, feedName string, cause error) {
	if err := r.feeds.CommitSyncError(ctx, feedName, cause.Error()); err != nil {
		slog.Error("Failed to persist feed error status", "feed", feedName, "error", err)
	}
}
