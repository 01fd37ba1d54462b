package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestNewItemValidate(t *testing.T) {
	tests := []struct {
		name       string
		item       NewItem
		wantFields []string
	}{
		{
			name: "valid",
			item: NewItem{Name: "Milk", ExpiryDate: "2026-10-20", Category: CategoryFridge},
		},
		{
			name:       "empty name",
			item:       NewItem{Name: "  ", ExpiryDate: "2026-10-20", Category: CategoryFridge},
			wantFields: []string{"name"},
		},
		{
			name:       "unknown category",
			item:       NewItem{Name: "Milk", ExpiryDate: "2026-10-20", Category: "Cellar"},
			wantFields: []string{"category"},
		},
		{
			name:       "bad date",
			item:       NewItem{Name: "Milk", ExpiryDate: "20/10/2026", Category: CategoryFridge},
			wantFields: []string{"expiry_date"},
		},
		{
			name:       "negative nutrition",
			item:       NewItem{Name: "Milk", ExpiryDate: "2026-10-20", Category: CategoryFridge, Nutrition: &Nutrition{Fat: ptr(-1.0)}},
			wantFields: []string{"nutrition.fat"},
		},
		{
			name:       "everything wrong",
			item:       NewItem{},
			wantFields: []string{"name", "category", "expiry_date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expiry, err := tt.item.Validate()
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if expiry.String() != tt.item.ExpiryDate {
					t.Errorf("expiry = %s, want %s", expiry, tt.item.ExpiryDate)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if len(ve.Errors) != len(tt.wantFields) {
				t.Fatalf("got %d field errors (%v), want %d", len(ve.Errors), ve.Errors, len(tt.wantFields))
			}
			for i, f := range tt.wantFields {
				if ve.Errors[i].Field != f {
					t.Errorf("field %d = %q, want %q", i, ve.Errors[i].Field, f)
				}
			}
		})
	}
}

func TestItemUpdateValidate(t *testing.T) {
	bad := CategoryFridge + "x"
	if err := (ItemUpdate{Category: &bad}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for bad category, got %v", err)
	}
	if err := (ItemUpdate{Name: ptr("")}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if err := (ItemUpdate{ExpiryDate: ptr("tomorrow")}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for bad date, got %v", err)
	}
	if err := (ItemUpdate{Notes: ptr("")}).Validate(); err != nil {
		t.Errorf("clearing notes should be allowed: %v", err)
	}
	if !(ItemUpdate{}).Empty() {
		t.Error("zero update should be empty")
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusActive.Terminal() {
		t.Error("active must not be terminal")
	}
	if !StatusConsumed.Terminal() || !StatusExpired.Terminal() {
		t.Error("consumed and expired must be terminal")
	}
}

func TestDateJSONAndScan(t *testing.T) {
	d := NewDate(2026, time.October, 17)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2026-10-17"` {
		t.Errorf("marshal = %s", data)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d) {
		t.Errorf("unmarshal = %s, want %s", back, d)
	}

	var scanned Date
	if err := scanned.Scan("2026-10-18"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !scanned.Equal(d.AddDays(1)) {
		t.Errorf("scan = %s", scanned)
	}
	if err := scanned.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestDateOfUsesWallClock(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	late := time.Date(2026, time.October, 17, 23, 30, 0, 0, loc)
	if got := DateOf(late).String(); got != "2026-10-17" {
		t.Errorf("DateOf = %s, want 2026-10-17", got)
	}
}
