package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/eatmefirst/internal/auth"
	"github.com/erazemk/eatmefirst/internal/db"
	"github.com/erazemk/eatmefirst/internal/lookup"
	"github.com/erazemk/eatmefirst/internal/metrics"
	"github.com/erazemk/eatmefirst/internal/model"
	"github.com/erazemk/eatmefirst/internal/pantry"
	"github.com/erazemk/eatmefirst/internal/store"
)

const testJWTSecret = "test-secret"

var testNow = time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	server *httptest.Server
	store  *store.Store
	tokens *auth.Tokens
	admin  string
	clock  *testClock
}

// testClock is read by server goroutines while tests move it forward.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeLookup map[string]*lookup.Prefill

func (f fakeLookup) Product(_ context.Context, barcode string) (*lookup.Prefill, error) {
	if err := lookup.ValidateBarcode(barcode); err != nil {
		return nil, err
	}
	return f[barcode], nil
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{clock: &testClock{t: testNow}}
	clock := env.clock.now

	s := store.New(db.NewTestDB(t), store.WithClock(clock))
	svc := pantry.New(s, pantry.WithClock(clock))
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	tokens := auth.NewTokens(testJWTSecret, time.Hour)
	router := NewRouter(Deps{
		Store:   s,
		Pantry:  svc,
		Tokens:  tokens,
		Metrics: metrics.New().Handler(),
		Lookup: fakeLookup{"3800123456789": {
			Barcode:  "3800123456789",
			Name:     "Greek Yogurt",
			Category: model.CategoryFridge,
		}},
		Now: clock,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	env.server, env.store, env.tokens = server, s, tokens

	// Create admin user.
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	s.CreateUser(context.Background(), "admin", string(hash), model.RoleAdmin)

	// Get token.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp loginResponse
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" {
		t.Fatal("empty token from login")
	}
	env.admin = loginResp.Token

	return env
}

// tokenFor creates a user with the given role and returns a token for it.
func (e *testEnv) tokenFor(t *testing.T, username, role string) string {
	t.Helper()
	u, err := e.store.CreateUser(context.Background(), username, "x", role)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	token, _, err := e.tokens.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if raw, ok := body.([]byte); ok {
		r = bytes.NewReader(raw)
	} else if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	// Test invalid credentials.
	resp := env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "nobody", "password": "password"})
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestItemsAPIFlow(t *testing.T) {
	env := setupTestServer(t)

	// Create item.
	resp := env.do(t, "POST", "/api/items", env.admin, map[string]any{
		"name":        "Yogurt",
		"expiry_date": "2026-10-19",
		"category":    "Fridge",
		"nutrition":   map[string]float64{"calories": 61},
	})
	expectStatus(t, resp, http.StatusCreated)
	created := decode[itemView](t, resp)
	if created.ID == 0 || created.Status != model.StatusActive || created.Quantity != "1" {
		t.Fatalf("unexpected item: %+v", created)
	}
	if created.DaysRemaining != 2 || created.Urgency != "critical" {
		t.Errorf("days_remaining=%d urgency=%s", created.DaysRemaining, created.Urgency)
	}
	path := "/api/items/" + itoa(created.ID)

	// List items.
	resp = env.do(t, "GET", "/api/items", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decode[[]itemView](t, resp); len(items) != 1 {
		t.Fatalf("expected 1 active item, got %d", len(items))
	}

	// Partial update.
	resp = env.do(t, "PATCH", path, env.admin, map[string]string{"expiry_date": "2026-10-30"})
	expectStatus(t, resp, http.StatusOK)
	updated := decode[itemView](t, resp)
	if updated.Name != "Yogurt" || updated.ExpiryDate.String() != "2026-10-30" || updated.Urgency != "safe" {
		t.Errorf("unexpected update result: %+v", updated)
	}
	if updated.Nutrition == nil || *updated.Nutrition.Calories != 61 {
		t.Errorf("nutrition lost on update: %+v", updated.Nutrition)
	}

	// Consume, then try to waste.
	resp = env.do(t, "POST", path+"/consume", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	consumed := decode[itemView](t, resp)
	if consumed.Status != model.StatusConsumed || consumed.ConsumedAt == nil {
		t.Errorf("unexpected consumed item: %+v", consumed)
	}

	resp = env.do(t, "POST", path+"/waste", env.admin, nil)
	expectStatus(t, resp, http.StatusConflict)

	// History.
	resp = env.do(t, "GET", "/api/history?status=consumed", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if history := decode[[]model.Item](t, resp); len(history) != 1 {
		t.Errorf("expected 1 consumed item, got %d", len(history))
	}

	// Delete twice.
	resp = env.do(t, "DELETE", path, env.admin, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp = env.do(t, "DELETE", path, env.admin, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp = env.do(t, "GET", path, env.admin, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestCreateItemValidation(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/items", env.admin, map[string]any{
		"name":        " ",
		"expiry_date": "tomorrow",
		"category":    "Fridge",
	})
	expectStatus(t, resp, http.StatusBadRequest)

	body := decode[validationResponse](t, resp)
	if len(body.Fields) != 2 || body.Fields[0].Field != "name" || body.Fields[1].Field != "expiry_date" {
		t.Errorf("unexpected field errors: %+v", body.Fields)
	}

	resp = env.do(t, "GET", "/api/stats", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if stats := decode[map[string]any](t, resp); stats["total_active"].(float64) != 0 {
		t.Errorf("expected no rows after failed create, got %v", stats)
	}

	resp = env.do(t, "POST", "/api/items", env.admin, map[string]any{"name": "x", "colour": "red"})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestExpiringAndStats(t *testing.T) {
	env := setupTestServer(t)

	for name, expiry := range map[string]string{
		"Old":    "2026-10-16",
		"Today":  "2026-10-17",
		"Soon":   "2026-10-20",
		"Later":  "2026-10-21",
		"Frozen": "2027-01-01",
	} {
		resp := env.do(t, "POST", "/api/items", env.admin, map[string]string{
			"name": name, "expiry_date": expiry, "category": "Pantry",
		})
		expectStatus(t, resp, http.StatusCreated)
	}

	resp := env.do(t, "GET", "/api/expiring", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	expiring := decode[expiringResponse](t, resp)
	if expiring.ThresholdDays != 3 || len(expiring.Items) != 2 {
		t.Fatalf("unexpected expiring list: %+v", expiring)
	}
	if expiring.Items[0].Name != "Today" || expiring.Items[1].Name != "Soon" {
		t.Errorf("unexpected order: %s, %s", expiring.Items[0].Name, expiring.Items[1].Name)
	}

	resp = env.do(t, "GET", "/api/expiring?by=2026-10-21", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if by := decode[expiringResponse](t, resp); len(by.Items) != 3 || by.By != "2026-10-21" {
		t.Errorf("unexpected expiring-by list: %+v", by)
	}

	resp = env.do(t, "GET", "/api/expiring?by=soon", env.admin, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, "GET", "/api/stats", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	stats := decode[map[string]float64](t, resp)
	if stats["total_active"] != 4 || stats["expiring_soon"] != 2 || stats["expired"] != 1 || stats["consumed"] != 0 {
		t.Errorf("unexpected stats: %v", stats)
	}

	resp = env.do(t, "GET", "/api/items?category=Pantry", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decode[[]itemView](t, resp); len(items) != 4 {
		t.Errorf("expected 4 active pantry items, got %d", len(items))
	}

	resp = env.do(t, "GET", "/api/items?category=Garage", env.admin, nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestPhotoUpload(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/items", env.admin, map[string]string{
		"name": "Cake", "expiry_date": "2026-10-18", "category": "Fridge",
	})
	expectStatus(t, resp, http.StatusCreated)
	path := "/api/items/" + itoa(decode[itemView](t, resp).ID)

	resp = env.do(t, "GET", path+"/photo", env.admin, nil)
	expectStatus(t, resp, http.StatusNotFound)

	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for x := 0; x < 32; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{200, 100, 0, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)

	resp = env.do(t, "PUT", path+"/photo", env.admin, buf.Bytes())
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, "GET", path+"/photo", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}

	resp = env.do(t, "GET", path, env.admin, nil)
	if !decode[itemView](t, resp).HasPhoto {
		t.Error("expected has_photo after upload")
	}

	resp = env.do(t, "PUT", path+"/photo", env.admin, []byte("GIF89a"))
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, "PUT", "/api/items/999/photo", env.admin, buf.Bytes())
	expectStatus(t, resp, http.StatusNotFound)
}

func TestLookup(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "GET", "/api/lookup/3800123456789", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if p := decode[lookup.Prefill](t, resp); p.Name != "Greek Yogurt" || p.Category != model.CategoryFridge {
		t.Errorf("unexpected prefill: %+v", p)
	}

	resp = env.do(t, "GET", "/api/lookup/12345678", env.admin, nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = env.do(t, "GET", "/api/lookup/abc", env.admin, nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestLookupDisabled(t *testing.T) {
	s := store.New(db.NewTestDB(t))
	svc := pantry.New(s)
	svc.Initialize(context.Background())
	tokens := auth.NewTokens(testJWTSecret, time.Hour)
	server := httptest.NewServer(NewRouter(Deps{Store: s, Pantry: svc, Tokens: tokens}))
	t.Cleanup(server.Close)

	u, _ := s.CreateUser(context.Background(), "viewer", "x", model.RoleViewer)
	token, _, _ := tokens.Issue(u)

	req, _ := http.NewRequest("GET", server.URL+"/api/lookup/12345678", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected /metrics to be absent, got %d", resp.StatusCode)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "GET", "/api/items", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = env.do(t, "GET", "/api/items", "not-a-token", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	// Metrics are public.
	resp = env.do(t, "GET", "/metrics", "", nil)
	expectStatus(t, resp, http.StatusOK)
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)
	viewer := env.tokenFor(t, "kid", model.RoleViewer)
	member := env.tokenFor(t, "partner", model.RoleMember)

	item := map[string]string{"name": "Milk", "expiry_date": "2026-10-20", "category": "Fridge"}

	// Viewers read but cannot change items.
	resp := env.do(t, "POST", "/api/items", viewer, item)
	expectStatus(t, resp, http.StatusForbidden)
	resp = env.do(t, "GET", "/api/items", viewer, nil)
	expectStatus(t, resp, http.StatusOK)

	// Members manage items but not accounts.
	resp = env.do(t, "POST", "/api/items", member, item)
	expectStatus(t, resp, http.StatusCreated)
	resp = env.do(t, "GET", "/api/users", member, nil)
	expectStatus(t, resp, http.StatusForbidden)
}

func TestUserManagement(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/users", env.admin, map[string]string{
		"username": "partner", "password": "long enough",
	})
	expectStatus(t, resp, http.StatusCreated)
	created := decode[model.User](t, resp)
	if created.Role != model.RoleMember {
		t.Errorf("expected default role member, got %q", created.Role)
	}

	resp = env.do(t, "POST", "/api/users", env.admin, map[string]string{
		"username": "partner", "password": "long enough",
	})
	expectStatus(t, resp, http.StatusConflict)

	resp = env.do(t, "POST", "/api/users", env.admin, map[string]string{
		"username": "short", "password": "123",
	})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, "GET", "/api/users", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if users := decode[[]model.User](t, resp); len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	resp = env.do(t, "DELETE", "/api/users/1", env.admin, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, "DELETE", "/api/users/"+itoa(created.ID), env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	resp = env.do(t, "DELETE", "/api/users/"+itoa(created.ID), env.admin, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestDeletedUserTokenRejected(t *testing.T) {
	env := setupTestServer(t)
	token := env.tokenFor(t, "leaver", model.RoleMember)

	users, _ := env.store.ListUsers(context.Background())
	for _, u := range users {
		if u.Username == "leaver" {
			env.store.DeleteUser(context.Background(), u.ID)
		}
	}

	resp := env.do(t, "GET", "/api/items", token, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/auth/logout", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, "GET", "/api/items", env.admin, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestChangePassword(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "PUT", "/api/auth/password", env.admin, map[string]string{
		"current_password": "wrong", "new_password": "brand new secret",
	})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = env.do(t, "PUT", "/api/auth/password", env.admin, map[string]string{
		"current_password": "password", "new_password": "brand new secret",
	})
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "brand new secret"})
	expectStatus(t, resp, http.StatusOK)
}

func TestRequestIDHeader(t *testing.T) {
	h := LoggingMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestID(r.Context()) == "" {
			t.Error("expected request ID in context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated X-Request-ID")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestListsCatchUpAfterDayChange(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/items", env.admin, map[string]string{
		"name": "Soup", "expiry_date": "2026-10-17", "category": "Fridge",
	})
	expectStatus(t, resp, http.StatusCreated)

	// Two days pass without any command.
	env.clock.advance(48 * time.Hour)

	resp = env.do(t, "GET", "/api/items", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decode[[]itemView](t, resp); len(items) != 0 {
		t.Errorf("expected no active items, got %+v", items)
	}

	resp = env.do(t, "GET", "/api/expiring", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if expiring := decode[expiringResponse](t, resp); len(expiring.Items) != 0 {
		t.Errorf("expected no expiring items, got %+v", expiring.Items)
	}

	resp = env.do(t, "GET", "/api/history?status=expired", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if history := decode[[]model.Item](t, resp); len(history) != 1 {
		t.Errorf("expected 1 expired item, got %d", len(history))
	}
}
