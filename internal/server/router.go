// Package server assembles the HTTP router for the storage API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/reponote/storage/internal/files"
	appMiddleware "github.com/reponote/storage/internal/middleware"
	"github.com/reponote/storage/internal/response"

	_ "github.com/reponote/storage/docs/swagger"
)

// NewRouter wires the public and authenticated routes. Every request to
// /upload and /download passes through the auth gate before reaching the
// files handler.
func NewRouter(authn appMiddleware.Authenticator, filesHandler *files.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, _ string) bool { return true },
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	// Swagger UI at /swagger/index.html
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.RequireAuth(authn))
		r.Post("/upload", filesHandler.Upload)
		r.Get("/download/{object_name}", filesHandler.Download)
	})

	return r
}
