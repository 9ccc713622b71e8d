package http

import (
	"net/http"

	"github.com/atinyakov/folio/internal/middleware"
	"github.com/atinyakov/folio/internal/resource"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NotificationsPath is the websocket endpoint below /api.
const NotificationsPath = "/ws/admin-notifications"

// Pusher serves the admin notification socket.
type Pusher interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// NewRouter constructs and returns an HTTP handler that serves
// the content API under /api and stored files under /uploads.
//
// Routes:
//
//	POST /api/auth/login                  → authHandler.Login
//	POST /api/auth/logout                 → authHandler.Logout (auth)
//	POST /api/contact                     → content.Contact
//	GET  /api/ws/admin-notifications      → pusher.ServeWS (auth)
//	GET|PUT /api/{profile,settings,resume}, POST .../update
//	GET /api/{collection}[/{id}], POST, PUT /{id}, DELETE /{id}, PUT /reorder
//
// Reads of public content need no session; writes, messages and the
// socket require a bearer token.
//
// Middleware chain (applied in order):
//  1. RequestID                           : tags each request
//  2. WithRequestLogging(logger)          : logs requests and statuses
//  3. Recoverer                           : turns panics into 500s
//  4. AllowContentType(json, multipart)   : rejects other bodies
func NewRouter(
	authHandler *AuthHandler,
	content *ContentHandler,
	pusher Pusher,
	authn middleware.Authenticator,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))

	requireAuth := middleware.BearerAuth(authn)

	r.Handle(UploadsPrefix+"*", http.StripPrefix(UploadsPrefix, content.Uploads.FileServer()))

	r.Route("/api", func(r chi.Router) {
		r.Handle(UploadsPrefix+"*", http.StripPrefix("/api"+UploadsPrefix, content.Uploads.FileServer()))

		// Public endpoints
		r.Post(resource.Auth.Prefix()+"/"+resource.ActionLogin, authHandler.Login)
		r.Post(resource.Contact.Prefix(), content.Contact)

		// Protected endpoints outside the content tables
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post(resource.Auth.Prefix()+"/"+resource.ActionLogout, authHandler.Logout)
			r.Get(NotificationsPath, pusher.ServeWS)
		})

		for _, res := range []resource.Resource{resource.Profile, resource.Settings, resource.Resume} {
			mountSingleton(r, content, res, requireAuth)
		}
		for res, rt := range resource.DefaultTable() {
			if rt.Collection {
				mountCollection(r, content, res, requireAuth)
			}
		}
	})

	return r
}

func mountSingleton(r chi.Router, h *ContentHandler, res resource.Resource, requireAuth func(http.Handler) http.Handler) {
	name, prefix := res.String(), res.Prefix()
	r.Get(prefix, h.Singleton(name))

	update := h.MergeSingleton(name)
	if res == resource.Resume {
		// The resume order is always replaced whole.
		update = h.PutSingleton(name)
	}
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Put(prefix, h.PutSingleton(name))
		r.Post(prefix+"/"+resource.ActionUpdate, update)
	})
}

func mountCollection(r chi.Router, h *ContentHandler, res resource.Resource, requireAuth func(http.Handler) http.Handler) {
	name := res.String()
	writes := func(r chi.Router) {
		r.Post("/", h.Create(name))
		r.Put("/"+resource.ActionReorder, h.Reorder(name))
		r.Put("/{id}", h.Update(name))
		r.Delete("/{id}", h.Delete(name))
	}

	r.Route(res.Prefix(), func(r chi.Router) {
		if res == resource.Messages {
			r.Use(requireAuth)
			r.Get("/", h.Messages(name))
			r.Get("/{id}", h.Get(name))
			writes(r)
			return
		}
		r.Get("/", h.List(name))
		r.Get("/{id}", h.Get(name))
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			writes(r)
		})
	})
}
