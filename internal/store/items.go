package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/eatmefirst/internal/model"
)

var itemColumns = []string{
	"i.id", "i.name", "i.image", "i.expiry_date", "i.category", "i.quantity", "i.notes",
	"i.created_at", "i.consumed_at", "i.status",
	"n.calories", "n.protein", "n.carbs", "n.fat",
	"p.item_id IS NOT NULL",
}

func selectItems() sq.SelectBuilder {
	return sq.Select(itemColumns...).
		From("items i").
		LeftJoin("item_nutrition n ON n.item_id = i.id").
		LeftJoin("item_photos p ON p.item_id = i.id")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(sc rowScanner) (*model.Item, error) {
	var (
		item                   model.Item
		image, quantity, notes sql.NullString
		category, status       string
		createdAt, consumedAt  nullTime
		cal, prot, carbs, fat  sql.NullFloat64
	)
	err := sc.Scan(&item.ID, &item.Name, &image, &item.ExpiryDate, &category, &quantity, &notes,
		&createdAt, &consumedAt, &status,
		&cal, &prot, &carbs, &fat,
		&item.HasPhoto)
	if err != nil {
		return nil, err
	}

	item.Image = image.String
	item.Category = model.Category(category)
	item.Quantity = quantity.String
	if item.Quantity == "" {
		item.Quantity = model.DefaultQuantity
	}
	item.Notes = notes.String
	item.CreatedAt = createdAt.Time
	item.ConsumedAt = consumedAt.ptr()
	item.Status = model.Status(status)

	nutrition := &model.Nutrition{
		Calories: floatPtr(cal),
		Protein:  floatPtr(prot),
		Carbs:    floatPtr(carbs),
		Fat:      floatPtr(fat),
	}
	if !nutrition.IsEmpty() {
		item.Nutrition = nutrition
	}
	return &item, nil
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func (s *Store) queryItems(ctx context.Context, b sq.SelectBuilder) ([]model.Item, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building item query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CreateItem validates and inserts a new active item, together with its
// nutrition record when one is supplied.
func (s *Store) CreateItem(ctx context.Context, n model.NewItem) (*model.Item, error) {
	expiry, err := n.Validate()
	if err != nil {
		return nil, err
	}

	quantity := strings.TrimSpace(n.Quantity)
	if quantity == "" {
		quantity = model.DefaultQuantity
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO items (name, image, expiry_date, category, quantity, notes, created_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(n.Name), nullString(n.Image), expiry.String(), string(n.Category),
		quantity, nullString(n.Notes), formatTime(s.now()), string(model.StatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	if !n.Nutrition.IsEmpty() {
		if err := putNutrition(ctx, tx, id, n.Nutrition); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return s.GetItem(ctx, id)
}

// GetItem returns an item by ID, or nil if it does not exist.
func (s *Store) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	query, args, err := selectItems().Where(sq.Eq{"i.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building item query: %w", err)
	}

	item, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListActiveItems returns active items, soonest expiry first.
func (s *Store) ListActiveItems(ctx context.Context) ([]model.Item, error) {
	return s.queryItems(ctx, selectItems().
		Where(sq.Eq{"i.status": string(model.StatusActive)}).
		OrderBy("i.expiry_date ASC", "i.id ASC"))
}

// ListActiveItemsByCategory returns active items stored in one category,
// soonest expiry first.
func (s *Store) ListActiveItemsByCategory(ctx context.Context, category model.Category) ([]model.Item, error) {
	if !category.Valid() {
		return nil, model.NewValidationError("category", "must be Fridge, Pantry or Freezer")
	}
	return s.queryItems(ctx, selectItems().
		Where(sq.Eq{"i.status": string(model.StatusActive), "i.category": string(category)}).
		OrderBy("i.expiry_date ASC", "i.id ASC"))
}

// ListExpiringItems returns active items expiring on or before threshold,
// soonest expiry first.
func (s *Store) ListExpiringItems(ctx context.Context, threshold model.Date) ([]model.Item, error) {
	return s.queryItems(ctx, selectItems().
		Where(sq.Eq{"i.status": string(model.StatusActive)}).
		Where(sq.LtOrEq{"i.expiry_date": threshold.String()}).
		OrderBy("i.expiry_date ASC", "i.id ASC"))
}

// ListItems returns items with the given status (all items if empty), most
// recently finished first.
func (s *Store) ListItems(ctx context.Context, status model.Status) ([]model.Item, error) {
	b := selectItems().OrderBy("COALESCE(i.consumed_at, i.expiry_date) DESC", "i.id DESC")
	if status != "" {
		if !status.Valid() {
			return nil, model.NewValidationError("status", "must be active, consumed or expired")
		}
		b = b.Where(sq.Eq{"i.status": string(status)})
	}
	return s.queryItems(ctx, b)
}

// UpdateItem applies a partial update. Status, consumed_at and created_at are
// never touched.
func (s *Store) UpdateItem(ctx context.Context, id int64, u model.ItemUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking item: %w", err)
	}

	b := sq.Update("items").Where(sq.Eq{"id": id})
	changed := false
	set := func(column string, value any) {
		b = b.Set(column, value)
		changed = true
	}
	if u.Name != nil {
		set("name", strings.TrimSpace(*u.Name))
	}
	if u.Image != nil {
		set("image", nullString(*u.Image))
	}
	if u.ExpiryDate != nil {
		expiry, _ := model.ParseDate(*u.ExpiryDate)
		set("expiry_date", expiry.String())
	}
	if u.Category != nil {
		set("category", string(*u.Category))
	}
	if u.Quantity != nil {
		quantity := strings.TrimSpace(*u.Quantity)
		if quantity == "" {
			quantity = model.DefaultQuantity
		}
		set("quantity", quantity)
	}
	if u.Notes != nil {
		set("notes", nullString(*u.Notes))
	}

	if changed {
		query, args, err := b.ToSql()
		if err != nil {
			return fmt.Errorf("building item update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
	}

	if u.Nutrition != nil {
		if u.Nutrition.IsEmpty() {
			if _, err := tx.ExecContext(ctx, `DELETE FROM item_nutrition WHERE item_id = ?`, id); err != nil {
				return fmt.Errorf("clearing nutrition: %w", err)
			}
		} else if err := putNutrition(ctx, tx, id, u.Nutrition); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item update: %w", err)
	}
	return nil
}

func putNutrition(ctx context.Context, tx *sql.Tx, itemID int64, n *model.Nutrition) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO item_nutrition (item_id, calories, protein, carbs, fat) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (item_id) DO UPDATE SET
		     calories = excluded.calories, protein = excluded.protein,
		     carbs = excluded.carbs, fat = excluded.fat`,
		itemID, n.Calories, n.Protein, n.Carbs, n.Fat,
	)
	if err != nil {
		return fmt.Errorf("storing nutrition: %w", err)
	}
	return nil
}

// DeleteItem permanently removes an item regardless of its status.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// SetItemStatus moves an active item to a terminal status. consumedAt must be
// set for consumed and nil for expired.
func (s *Store) SetItemStatus(ctx context.Context, id int64, status model.Status, consumedAt *time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("moving item %d to %q: %w", id, status, model.ErrInvalidTransition)
	}
	if (status == model.StatusConsumed) != (consumedAt != nil) {
		return fmt.Errorf("consumed_at must be set exactly when status is consumed: %w", model.ErrValidation)
	}

	var consumed sql.NullString
	if consumedAt != nil {
		consumed = sql.NullString{String: formatTime(*consumedAt), Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = ?, consumed_at = ? WHERE id = ? AND status = 'active'`,
		string(status), consumed, id,
	)
	if err != nil {
		return fmt.Errorf("setting item status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting item status: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM items WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking item status: %w", err)
	}
	return fmt.Errorf("item %d is %s: %w", id, current, model.ErrInvalidTransition)
}

// ExpireItemsBefore moves every active item whose expiry date is strictly
// before day to expired and returns how many were moved.
func (s *Store) ExpireItemsBefore(ctx context.Context, day model.Date) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = 'expired' WHERE status = 'active' AND expiry_date < ?`,
		day.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("expiring items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expiring items: %w", err)
	}
	return n, nil
}

// CountItemsByStatus returns the number of items per status.
func (s *Store) CountItemsByStatus(ctx context.Context) (model.StatusCounts, error) {
	var counts model.StatusCounts

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM items GROUP BY status`)
	if err != nil {
		return counts, fmt.Errorf("counting items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scanning item count: %w", err)
		}
		switch model.Status(status) {
		case model.StatusActive:
			counts.Active = n
		case model.StatusConsumed:
			counts.Consumed = n
		case model.StatusExpired:
			counts.Expired = n
		}
	}
	return counts, rows.Err()
}

// CountExpiringItems returns the number of active items expiring on or before
// threshold.
func (s *Store) CountExpiringItems(ctx context.Context, threshold model.Date) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE status = 'active' AND expiry_date <= ?`,
		threshold.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting expiring items: %w", err)
	}
	return n, nil
}
