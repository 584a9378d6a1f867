// Package api serves the ingestion pipeline over HTTP and MCP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/smartsense/smartsense"
	apimiddleware "github.com/smartsense/smartsense/infrastructure/api/middleware"
	v1 "github.com/smartsense/smartsense/infrastructure/api/v1"
	"github.com/smartsense/smartsense/infrastructure/api/v1/dto"
	mcpinternal "github.com/smartsense/smartsense/internal/mcp"
)

// RequestTimeout bounds every non-MCP request.
const RequestTimeout = 2 * time.Minute

// APIServer provides an HTTP API backed by a smartsense Client.
type APIServer struct {
	client       *smartsense.Client
	version      string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates a new APIServer wired to the given Client. The
// client's API keys write-protect POST /ingest; every other route is open.
func NewAPIServer(client *smartsense.Client, version string) *APIServer {
	return &APIServer{
		client:  client,
		version: version,
		logger:  client.Logger(),
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
// If not called, ListenAndServe creates a default router with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client
	cfg := c.Config()

	ingestRouter := v1.NewIngestRouter(c.Runs, cfg.Assets().RowSource(), a.logger)
	floorplanRouter := v1.NewFloorplanRouter(c.Floorplan, "", a.logger)
	propertiesRouter := v1.NewPropertiesRouter(c.Properties, a.logger)
	searchRouter := v1.NewSearchRouter(c.Search, a.logger)

	router.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(RequestTimeout))

		r.Get("/", a.status)
		r.Get(HealthPath, a.status)

		r.Mount("/parse-floorplan", floorplanRouter.Routes())
		r.Mount("/properties", propertiesRouter.Routes())
		r.Mount("/search", searchRouter.Routes())

		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.WriteProtectAuth(cfg.APIKeys()))
			r.Mount("/ingest", ingestRouter.Routes())
		})
	})

	// No timeout middleware: the streamable handler writes its own
	// session headers.
	mcpSrv := mcpinternal.NewServer(c.Floorplan, c.Runs, c.Search, c.Properties, a.version, a.logger)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

func (a *APIServer) status(w http.ResponseWriter, _ *http.Request) {
	resp := dto.StatusResponse{Status: "ok", Version: a.version}
	if id, ok := a.client.Runs.Active(); ok {
		resp.ActiveRun = id
	}
	apimiddleware.WriteJSON(w, http.StatusOK, resp)
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	srv := NewServer(addr, a.logger, WithCORSOrigins(a.client.Config().CORSOrigins()))
	a.server = &srv

	if a.routerCalled && a.router != nil {
		srv.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(srv.Router())
	}

	return srv.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}
