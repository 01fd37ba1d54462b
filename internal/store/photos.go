package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/eatmefirst/internal/model"
)

// SetItemPhoto stores (or replaces) an item's processed photo.
func (s *Store) SetItemPhoto(ctx context.Context, itemID int64, data []byte, mime string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, itemID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %d: %w", itemID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO item_photos (item_id, data, mime, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (item_id) DO UPDATE SET
		     data = excluded.data, mime = excluded.mime, updated_at = excluded.updated_at`,
		itemID, data, mime, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("setting item photo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item photo: %w", err)
	}
	return nil
}

// GetItemPhoto returns an item's photo data and MIME type. Data is nil if the
// item has no photo.
func (s *Store) GetItemPhoto(ctx context.Context, itemID int64) ([]byte, string, error) {
	var data []byte
	var mime string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, mime FROM item_photos WHERE item_id = ?`, itemID,
	).Scan(&data, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item photo: %w", err)
	}
	return data, mime, nil
}
