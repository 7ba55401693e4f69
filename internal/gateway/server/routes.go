package server

import (
	"net/http"

	"depindex/internal/gateway/handler"
	"depindex/internal/gateway/middleware"
	"depindex/internal/index"
)

type MuxOptions struct {
	Gzip bool
}

func NewMux(
	indexHandler *handler.IndexHandler,
	publishHandler *handler.PublishHandler,
	healthHandler *handler.HealthHandler,
	redirectHandler *handler.RedirectHandler,
	opts MuxOptions,
) http.Handler {
	mux := http.NewServeMux()

	// Index artifacts
	mux.HandleFunc("GET /api/v2/names.list", indexHandler.HandleNames)
	mux.HandleFunc("GET /api/v2/versions.list", indexHandler.HandleVersions)
	mux.HandleFunc("GET /api/v2/deps/{name}", indexHandler.HandlePackageDependencies)

	// Bulk dependency API
	mux.HandleFunc("GET /api/v1/dependencies", indexHandler.HandleDependencies(index.BulkMarshal))
	mux.HandleFunc("GET /api/v1/dependencies.json", indexHandler.HandleDependencies(index.BulkJSON))
	mux.HandleFunc("GET /api/v1/dependencies.cbor", indexHandler.HandleDependencies(index.BulkCBOR))

	// Registration
	mux.HandleFunc("POST /api/v1/add_spec.json", indexHandler.HandleAddSpec)
	mux.HandleFunc("POST /api/v1/remove_spec.json", indexHandler.HandleRemoveSpec)

	// Mirror
	mux.HandleFunc("POST /api/v1/publish", publishHandler.HandlePublish)

	// Upstream-owned paths
	mux.HandleFunc("GET /{$}", redirectHandler.HandleRoot)
	for _, pattern := range []string{
		"GET /quick/",
		"GET /fetch/",
		"GET /gems/",
		"GET /specs.4.8.gz",
		"GET /latest_specs.4.8.gz",
		"GET /prerelease_specs.4.8.gz",
	} {
		mux.HandleFunc(pattern, redirectHandler.HandlePassthrough)
	}
	mux.HandleFunc("GET /robots.txt", handler.HandleRobots)

	mux.HandleFunc("GET /healthz", healthHandler.HandleHealth)

	// Middleware
	var h http.Handler = mux
	if opts.Gzip {
		h = middleware.Gzip(h)
	}
	return middleware.Logging(middleware.CORS(h))
}
