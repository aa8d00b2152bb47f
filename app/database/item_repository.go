package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/feedstash/feedstash/app/feed"
)

// ItemRepository handles database operations for retained items. It
// implements the reconciler's ItemStore and the tag mapper's
// UsageSnapshotter contracts.
type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, feed_name, guid, title, link, description, content,
	author, published_at, pinned, tags, image_url, storage_ref,
	download_status, downloaded_at, created_at`

func (r *ItemRepository) scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var item Item
	var publishedAt, createdAt int64
	var downloadedAt sql.NullInt64
	var tagsJSON string

	err := row.Scan(
		&item.ID, &item.FeedName, &item.GUID, &item.Title, &item.Link,
		&item.Description, &item.Content, &item.Author, &publishedAt,
		&item.Pinned, &tagsJSON, &item.ImageURL, &item.StorageRef,
		&item.DownloadStatus, &downloadedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	item.PublishedAt = time.Unix(publishedAt, 0).UTC()
	item.CreatedAt = time.Unix(createdAt, 0).UTC()
	if downloadedAt.Valid {
		t := time.Unix(downloadedAt.Int64, 0).UTC()
		item.DownloadedAt = &t
	}
	if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}

	return &item, nil
}

func (r *ItemRepository) ListItems(ctx context.Context, feedName string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE feed_name = ?
		ORDER BY published_at DESC
	`, feedName)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

// ListRecords returns the persisted-item view the reconciler diffs against.
func (r *ItemRepository) ListRecords(ctx context.Context, feedName string) ([]feed.ItemRecord, error) {
	items, err := r.ListItems(ctx, feedName)
	if err != nil {
		return nil, err
	}

	records := make([]feed.ItemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, item.Record())
	}
	return records, nil
}

// CreateItem materializes a canonical item as a persisted record. Tags are
// already re-domained by the caller.
func (r *ItemRepository) CreateItem(ctx context.Context, feedName string, item feed.Item, localTags []string) (feed.ItemRecord, error) {
	if localTags == nil {
		localTags = []string{}
	}
	tagsJSON, err := json.Marshal(localTags)
	if err != nil {
		return feed.ItemRecord{}, fmt.Errorf("failed to encode tags: %w", err)
	}

	imageURL := ""
	if item.Image != nil {
		imageURL = item.Image.URL
	}
	storageRef := feedName + "/" + feed.SafeFilename(item.Title) + ".md"

	downloadStatus := DownloadSkipped
	if item.Content == "" && item.Link != "" {
		downloadStatus = DownloadPending
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO items (
			feed_name, guid, title, link, description, content, author,
			published_at, tags, image_url, storage_ref, download_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, feedName, item.ID, item.Title, item.Link, item.Description,
		item.Content, item.Author, item.PublishedAt.Unix(), string(tagsJSON),
		imageURL, storageRef, downloadStatus)

	if err != nil {
		return feed.ItemRecord{}, fmt.Errorf("failed to create item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return feed.ItemRecord{}, fmt.Errorf("failed to read created item id: %w", err)
	}

	return feed.ItemRecord{
		ID:          strconv.FormatInt(id, 10),
		GUID:        item.ID,
		PublishedAt: item.PublishedAt,
		Tags:        localTags,
		StorageRef:  storageRef,
	}, nil
}

// DeleteItem evicts a persisted record. Pinned rows are never deleted.
func (r *ItemRepository) DeleteItem(ctx context.Context, rec feed.ItemRecord) error {
	id, err := strconv.ParseInt(rec.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item id %q: %w", rec.ID, err)
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = ? AND pinned = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d not deleted (missing or pinned)", id)
	}

	return nil
}

func (r *ItemRepository) SetPinned(ctx context.Context, itemID int64, pinned bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET pinned = ? WHERE id = ?`, pinned, itemID)
	if err != nil {
		return fmt.Errorf("failed to set pinned flag: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check pin result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d not found", itemID)
	}

	return nil
}

// TagUsage counts how often each local tag occurs across all retained items.
// This is the corpus snapshot the tag mapper refreshes from.
func (r *ItemRepository) TagUsage(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT value, COUNT(*)
		FROM items, json_each(items.tags)
		GROUP BY value
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tag usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int)
	for rows.Next() {
		var tag string
		var count int
		if err := rows.Scan(&tag, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tag usage row: %w", err)
		}
		usage[tag] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag usage rows: %w", err)
	}

	return usage, nil
}

// GetItemsForDownload returns items awaiting article content download.
func (r *ItemRepository) GetItemsForDownload(ctx context.Context, feedName string, limit int) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE feed_name = ? AND download_status = ?
		ORDER BY published_at DESC
		LIMIT ?
	`, feedName, DownloadPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for download: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

// UpdateItemDownload records the outcome of an article download attempt.
func (r *ItemRepository) UpdateItemDownload(ctx context.Context, itemID int64, content, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE items
		SET content = CASE WHEN ? != '' THEN ? ELSE content END,
		    download_status = ?, downloaded_at = strftime('%s','now')
		WHERE id = ?
	`, content, content, status, itemID)

	if err != nil {
		return fmt.Errorf("failed to update item download: %w", err)
	}

	return nil
}

func (r *ItemRepository) GetItemCount(ctx context.Context, feedName string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE feed_name = ?`, feedName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

func (r *ItemRepository) GetTotalItemCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get total item count: %w", err)
	}
	return count, nil
}

func (r *ItemRepository) GetItemByID(ctx context.Context, itemID int64) (*Item, error) {
	item, err := r.scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, itemID))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}
