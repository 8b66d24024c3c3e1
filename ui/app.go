package ui

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gomdp/app"
	"gomdp/ports"
)

//go:embed templates/* static/*
var embeddedFiles embed.FS

// App is the catalog UI: read-only HTML views over stored models and their
// runs. Anything that mutates the catalog goes through the JSON API instead.
type App struct {
	router    *chi.Mux
	models    ports.ModelRepository
	runs      ports.RunRepository
	catalog   *app.CatalogService
	runner    *app.RunService
	templates *template.Template
}

// Deps bundles the catalog access the UI reads from.
type Deps struct {
	Models  ports.ModelRepository
	Runs    ports.RunRepository
	Catalog *app.CatalogService
	Runner  *app.RunService
}

// NewApp creates a new UI application.
func NewApp(deps Deps) (*App, error) {
	// Parse templates (including fragments)
	funcMap := template.FuncMap{
		"mul": func(a, b float64) float64 { return a * b },
		"add": func(a, b int) int { return a + b },
		"max": func(a, b float64) float64 {
			if a > b {
				return a
			}
			return b
		},
		"until": func(n int) []int {
			res := make([]int, n)
			for i := range res {
				res[i] = i
			}
			return res
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html", "templates/fragments/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	a := &App{
		router:    chi.NewRouter(),
		models:    deps.Models,
		runs:      deps.Runs,
		catalog:   deps.Catalog,
		runner:    deps.Runner,
		templates: templates,
	}

	a.setupMiddleware()
	a.setupRoutes()

	return a, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))

	// Serve static files straight from the embedded tree
	staticFS := http.FileServer(http.FS(embeddedFiles))
	a.router.Handle("/static/*", staticFS)
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/models/{id}", a.handleModelDetail)
	a.router.Get("/models/{id}/payload", a.handleModelPayload)
	a.router.Get("/runs/{id}", a.handleRunDetail)
}

// Start starts the HTTP server
func (a *App) Start(port string) error {
	addr := ":" + port
	log.Printf("Starting GoMDP UI server on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

// Template helpers
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	w.Header().Set("Content-Type", "text/html")
	if err := a.templates.ExecuteTemplate(w, templateName, data); err != nil {
		log.Printf("Template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}
