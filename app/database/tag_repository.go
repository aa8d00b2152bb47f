package database

import (
	"context"
	"fmt"

	"github.com/feedstash/feedstash/app/tags"
)

// TagRepository is the durable home of the global tag mapping table. All
// access goes through the tag mapper's gate; this type never takes locks of
// its own beyond the transaction below.
type TagRepository struct {
	db *DB
}

func NewTagRepository(db *DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) Load(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT external_label, local_label FROM tag_mappings`)
	if err != nil {
		return nil, fmt.Errorf("failed to load tag mappings: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var external, local string
		if err := rows.Scan(&external, &local); err != nil {
			return nil, fmt.Errorf("failed to scan tag mapping row: %w", err)
		}
		mapping[external] = local
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag mapping rows: %w", err)
	}

	return mapping, nil
}

// Append writes pending rows as one transaction.
func (r *TagRepository) Append(ctx context.Context, pending []tags.Row) error {
	if len(pending) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tag append: %w", err)
	}
	defer tx.Rollback()

	for _, row := range pending {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tag_mappings (external_label, local_label)
			VALUES (?, ?)
			ON CONFLICT (external_label) DO UPDATE SET
				local_label = excluded.local_label
		`, row.External, row.Local)
		if err != nil {
			return fmt.Errorf("failed to append tag mapping %q: %w", row.External, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag append: %w", err)
	}

	return nil
}

// Rewrite replaces the whole table with the given rows. Called with no rows
// it empties the table, with the surviving contents expected in a follow-up
// Append.
func (r *TagRepository) Rewrite(ctx context.Context, rows []tags.Row) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tag rewrite: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tag_mappings`); err != nil {
		return fmt.Errorf("failed to clear tag mappings: %w", err)
	}

	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tag_mappings (external_label, local_label)
			VALUES (?, ?)
		`, row.External, row.Local)
		if err != nil {
			return fmt.Errorf("failed to rewrite tag mapping %q: %w", row.External, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag rewrite: %w", err)
	}

	return nil
}
