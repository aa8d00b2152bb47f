package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FeedRepository handles database operations for feeds. It implements the
// reconciler's FeedStore contract.
type FeedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// UpsertFeed registers a configured feed, updating its URL and retention
// limit when the configuration changed.
func (r *FeedRepository) UpsertFeed(ctx context.Context, name, feedURL string, retentionLimit int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feeds (name, feed_url, retention_limit)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			feed_url = excluded.feed_url,
			retention_limit = excluded.retention_limit,
			updated_at = strftime('%s','now')
	`, name, feedURL, retentionLimit)

	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

const feedColumns = `name, feed_url, title, link, description, image_url,
	retention_limit, poll_interval, last_updated_at,
	status, status_message, suspended, created_at, updated_at`

func (r *FeedRepository) scanFeed(row interface{ Scan(...any) error }) (*Feed, error) {
	var feed Feed
	var lastUpdated sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(
		&feed.Name, &feed.FeedURL, &feed.Title, &feed.Link, &feed.Description,
		&feed.ImageURL, &feed.RetentionLimit, &feed.PollInterval,
		&lastUpdated, &feed.Status, &feed.StatusMessage,
		&feed.Suspended, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastUpdated.Valid {
		t := time.Unix(lastUpdated.Int64, 0).UTC()
		feed.LastUpdatedAt = &t
	}
	feed.CreatedAt = time.Unix(createdAt, 0).UTC()
	feed.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &feed, nil
}

func (r *FeedRepository) GetFeed(ctx context.Context, name string) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE name = ?`, name))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

func (r *FeedRepository) ListFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+feedColumns+` FROM feeds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := r.scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

// UpdateFeedMetadata stores the display metadata carried by the parsed feed.
func (r *FeedRepository) UpdateFeedMetadata(ctx context.Context, name, title, link, description, imageURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET title = ?, link = ?, description = ?, image_url = ?,
		    updated_at = strftime('%s','now')
		WHERE name = ?
	`, title, link, description, imageURL, name)

	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	return nil
}

// CommitSyncSuccess is the single atomic metadata commit ending a successful
// reconciliation pass.
func (r *FeedRepository) CommitSyncSuccess(ctx context.Context, name string, lastUpdated time.Time, pollInterval int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET status = ?, status_message = '', last_updated_at = ?,
		    poll_interval = ?, updated_at = strftime('%s','now')
		WHERE name = ?
	`, StatusOK, lastUpdated.Unix(), pollInterval, name)

	if err != nil {
		return fmt.Errorf("failed to commit sync success: %w", err)
	}

	return nil
}

// CommitSyncError downgrades a feed to error status. The last-updated
// timestamp is deliberately left untouched so the feed stays due for retry.
func (r *FeedRepository) CommitSyncError(ctx context.Context, name string, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET status = ?, status_message = ?, updated_at = strftime('%s','now')
		WHERE name = ?
	`, StatusError, message, name)

	if err != nil {
		return fmt.Errorf("failed to commit sync error: %w", err)
	}

	return nil
}

// SetSuspended flips the suspension flag. Resuming leaves the feed in the
// resumed state until its next successful pass marks it ok.
func (r *FeedRepository) SetSuspended(ctx context.Context, name string, suspended bool) error {
	status := StatusResumed
	if suspended {
		status = StatusSuspended
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET suspended = ?, status = ?, updated_at = strftime('%s','now')
		WHERE name = ?
	`, suspended, status, name)

	if err != nil {
		return fmt.Errorf("failed to set feed suspension: %w", err)
	}

	return nil
}

func (r *FeedRepository) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}
