/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the scanner frontend

ROUTE GROUPS:
  /api/lookup           Resolve a query
  /api/tables/*         Table configs and contents
  /api/history/*        Recent searches
  /api/fixtures/*       Demo data (sqlite backend only)
  /*                    Index page listing endpoints

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/finder/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/lookup", h.Lookup)

		// Table routes
		r.Route("/tables", func(r chi.Router) {
			r.Get("/", h.ListTables)
			r.Get("/{name}/rows", h.ListRows)
		})

		// History routes
		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.GetHistory)
			r.Delete("/", h.ClearHistory)
			r.Put("/capacity", h.SetHistoryCapacity)
			r.Get("/{id}", h.GetHistoryEntry)
		})

		// Fixture routes
		r.Route("/fixtures", func(r chi.Router) {
			r.Get("/", h.ListFixtures)
			r.Get("/current", h.GetCurrentFixture)
			r.Post("/load", h.LoadFixture)
			r.Post("/reset", h.ResetFixtures)
		})
	})

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(indexHTML))
	})

	return r
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>Property Finder</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Property Finder API</h1>
<p>Scan or type an ID and look it up in the configured tables.</p>
<h2>API Endpoints</h2>
<ul>
<li><code>/api/lookup?q=PTQF31083&amp;table=cell</code> - Resolve a query</li>
<li><a href="/api/tables">/api/tables</a> - Configured tables</li>
<li><a href="/api/history">/api/history</a> - Recent searches</li>
<li><a href="/api/fixtures">/api/fixtures</a> - Demo data sets</li>
</ul>
</body>
</html>`
