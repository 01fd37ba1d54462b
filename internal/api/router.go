package api

import (
	"net/http"
	"time"

	"github.com/erazemk/eatmefirst/internal/auth"
	"github.com/erazemk/eatmefirst/internal/imaging"
	"github.com/erazemk/eatmefirst/internal/model"
	"github.com/erazemk/eatmefirst/internal/pantry"
	"github.com/erazemk/eatmefirst/internal/store"
)

// Deps holds everything the router serves from.
type Deps struct {
	Store   *store.Store
	Pantry  *pantry.Service
	Tokens  *auth.Tokens
	Photos  *imaging.Processor
	Lookup  ProductLookup // nil disables /api/lookup
	Metrics http.Handler  // nil disables /metrics
	Now     func() time.Time
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Photos == nil {
		d.Photos = imaging.NewProcessor()
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{Store: d.Store, Tokens: d.Tokens}
	usersHandler := &UsersHandler{Store: d.Store}
	itemsHandler := &ItemsHandler{Pantry: d.Pantry, Photos: d.Photos, Now: d.Now}
	inventoryHandler := &InventoryHandler{Items: itemsHandler}
	lookupHandler := &LookupHandler{Products: d.Lookup}

	authMW := AuthMiddleware(d.Tokens, d.Store)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireMember := RequireRole(model.RoleMember)
	read := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	write := func(h http.HandlerFunc) http.Handler { return authMW(requireMember(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", read(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", read(authHandler.Logout))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Items: read (all roles), write (member+).
	mux.Handle("GET /api/items", read(itemsHandler.List))
	mux.Handle("POST /api/items", write(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", read(itemsHandler.Get))
	mux.Handle("PATCH /api/items/{id}", write(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", write(itemsHandler.Delete))
	mux.Handle("POST /api/items/{id}/consume", write(itemsHandler.Consume))
	mux.Handle("POST /api/items/{id}/waste", write(itemsHandler.Waste))
	mux.Handle("PUT /api/items/{id}/photo", write(itemsHandler.UploadPhoto))
	mux.Handle("GET /api/items/{id}/photo", read(itemsHandler.GetPhoto))

	// Dashboard views.
	mux.Handle("GET /api/expiring", read(inventoryHandler.Expiring))
	mux.Handle("GET /api/stats", read(inventoryHandler.Stats))
	mux.Handle("GET /api/history", read(inventoryHandler.History))

	mux.Handle("GET /api/lookup/{barcode}", read(lookupHandler.Product))

	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	return mux
}
