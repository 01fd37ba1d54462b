package model

import (
	"strings"
	"time"
)

// Category is the storage location of an item.
type Category string

// Item categories.
const (
	CategoryFridge  Category = "Fridge"
	CategoryPantry  Category = "Pantry"
	CategoryFreezer Category = "Freezer"
)

// Categories lists every valid category.
var Categories = []Category{CategoryFridge, CategoryPantry, CategoryFreezer}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFridge, CategoryPantry, CategoryFreezer:
		return true
	}
	return false
}

// Status is the lifecycle state of an item.
type Status string

// Item statuses. Consumed and expired are terminal.
const (
	StatusActive   Status = "active"
	StatusConsumed Status = "consumed"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusConsumed, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusConsumed || s == StatusExpired
}

// DefaultQuantity is stored when no quantity is supplied.
const DefaultQuantity = "1"

// Item is a perishable inventory item.
type Item struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Image      string     `json:"image,omitempty"`
	ExpiryDate Date       `json:"expiry_date"`
	Category   Category   `json:"category"`
	Quantity   string     `json:"quantity"`
	Notes      string     `json:"notes,omitempty"`
	Nutrition  *Nutrition `json:"nutrition,omitempty"`
	HasPhoto   bool       `json:"has_photo"`
	CreatedAt  time.Time  `json:"created_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	Status     Status     `json:"status"`
}

// Nutrition holds optional per-100g nutrition facts for an item.
type Nutrition struct {
	Calories *float64 `json:"calories,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
}

// IsEmpty reports whether no nutrition value is set.
func (n *Nutrition) IsEmpty() bool {
	return n == nil || (n.Calories == nil && n.Protein == nil && n.Carbs == nil && n.Fat == nil)
}

func (n *Nutrition) validate(errs []FieldError) []FieldError {
	if n == nil {
		return errs
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"nutrition.calories", n.Calories},
		{"nutrition.protein", n.Protein},
		{"nutrition.carbs", n.Carbs},
		{"nutrition.fat", n.Fat},
	} {
		if f.v != nil && *f.v < 0 {
			errs = append(errs, FieldError{Field: f.name, Message: "must not be negative"})
		}
	}
	return errs
}

// NewItem holds the caller-supplied fields for creating an item.
type NewItem struct {
	Name       string     `json:"name"`
	Image      string     `json:"image,omitempty"`
	ExpiryDate string     `json:"expiry_date"`
	Category   Category   `json:"category"`
	Quantity   string     `json:"quantity,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Nutrition  *Nutrition `json:"nutrition,omitempty"`
}

// Validate checks the fields and returns the parsed expiry date.
func (n NewItem) Validate() (Date, error) {
	var errs []FieldError
	if strings.TrimSpace(n.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if !n.Category.Valid() {
		errs = append(errs, FieldError{Field: "category", Message: "must be Fridge, Pantry or Freezer"})
	}
	expiry, err := ParseDate(n.ExpiryDate)
	if err != nil {
		errs = append(errs, FieldError{Field: "expiry_date", Message: "must be a YYYY-MM-DD date"})
	}
	errs = n.Nutrition.validate(errs)
	if len(errs) > 0 {
		return Date{}, NewValidationErrors(errs)
	}
	return expiry, nil
}

// ItemUpdate holds a partial update. Nil fields are left unchanged.
// A non-nil Nutrition replaces the stored record; an empty one removes it.
type ItemUpdate struct {
	Name       *string    `json:"name,omitempty"`
	Image      *string    `json:"image,omitempty"`
	ExpiryDate *string    `json:"expiry_date,omitempty"`
	Category   *Category  `json:"category,omitempty"`
	Quantity   *string    `json:"quantity,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	Nutrition  *Nutrition `json:"nutrition,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ItemUpdate) Empty() bool {
	return u.Name == nil && u.Image == nil && u.ExpiryDate == nil && u.Category == nil &&
		u.Quantity == nil && u.Notes == nil && u.Nutrition == nil
}

// Validate checks the supplied fields.
func (u ItemUpdate) Validate() error {
	var errs []FieldError
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "must not be empty"})
	}
	if u.Category != nil && !u.Category.Valid() {
		errs = append(errs, FieldError{Field: "category", Message: "must be Fridge, Pantry or Freezer"})
	}
	if u.ExpiryDate != nil {
		if _, err := ParseDate(*u.ExpiryDate); err != nil {
			errs = append(errs, FieldError{Field: "expiry_date", Message: "must be a YYYY-MM-DD date"})
		}
	}
	errs = u.Nutrition.validate(errs)
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// StatusCounts holds the number of items per status.
type StatusCounts struct {
	Active   int `json:"active"`
	Consumed int `json:"consumed"`
	Expired  int `json:"expired"`
}

// Total returns the number of stored items.
func (c StatusCounts) Total() int {
	return c.Active + c.Consumed + c.Expired
}
