package lookup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erazemk/eatmefirst/internal/model"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWithURL(srv.URL, 5*time.Second, newTestLogger())
}

func TestProduct_Success(t *testing.T) {
	t.Parallel()

	body := `{
		"status": 1,
		"product": {
			"product_name": "Greek Yogurt",
			"image_url": "https://images.example/yogurt.jpg",
			"quantity": "500 g",
			"nutriments": {
				"energy-kcal_100g": 97,
				"proteins_100g": 9,
				"carbohydrates_100g": 3.6,
				"fat_100g": 5
			}
		}
	}`

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3800123456789.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})

	p, err := c.Product(context.Background(), "3800123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil prefill")
	}
	if p.Name != "Greek Yogurt" || p.Quantity != "500 g" || p.Image != "https://images.example/yogurt.jpg" {
		t.Errorf("unexpected prefill: %+v", p)
	}
	if p.Category != model.CategoryFridge {
		t.Errorf("Category = %q, want Fridge", p.Category)
	}
	if p.Nutrition == nil {
		t.Fatal("expected nutrition")
	}
	if *p.Nutrition.Calories != 97 || *p.Nutrition.Protein != 9 || *p.Nutrition.Carbs != 3.6 || *p.Nutrition.Fat != 5 {
		t.Errorf("unexpected nutrition: %+v", p.Nutrition)
	}

	n := p.NewItem(model.NewDate(2026, 11, 1))
	if _, err := n.Validate(); err != nil {
		t.Errorf("prefill should produce a valid item: %v", err)
	}
	if n.ExpiryDate != "2026-11-01" {
		t.Errorf("ExpiryDate = %q", n.ExpiryDate)
	}
}

func TestProduct_CaloriesFallBackToServing(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":1,"product":{"product_name":"Bar","nutriments":{"energy-kcal_serving":210}}}`))
	})

	p, err := c.Product(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Nutrition == nil || p.Nutrition.Calories == nil || *p.Nutrition.Calories != 210 {
		t.Errorf("expected serving calories, got %+v", p.Nutrition)
	}
	if p.Nutrition.Protein != nil {
		t.Errorf("Protein = %v, want nil", *p.Nutrition.Protein)
	}
}

func TestProduct_NoNutriments(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":1,"product":{"product_name":"Water"}}`))
	})

	p, err := c.Product(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Nutrition != nil {
		t.Errorf("expected no nutrition, got %+v", p.Nutrition)
	}
}

func TestProduct_Unknown(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":0,"status_verbose":"product not found"}`))
	})

	p, err := c.Product(context.Background(), "00000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil prefill, got %+v", p)
	}
}

func TestProduct_NotFoundStatus(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	p, err := c.Product(context.Background(), "00000000")
	if err != nil || p != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", p, err)
	}
}

func TestProduct_ServerError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := c.Product(context.Background(), "12345678"); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestProduct_InvalidJSON(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not valid json`))
	})

	if _, err := c.Product(context.Background(), "12345678"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidateBarcode(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"", "1234567", "123456789012345", "12345abc", "../../etc"} {
		if err := ValidateBarcode(bad); !errors.Is(err, model.ErrValidation) {
			t.Errorf("ValidateBarcode(%q) = %v, want validation error", bad, err)
		}
	}
	for _, good := range []string{"12345678", "3800123456789", "12345678901234"} {
		if err := ValidateBarcode(good); err != nil {
			t.Errorf("ValidateBarcode(%q) = %v", good, err)
		}
	}
}
