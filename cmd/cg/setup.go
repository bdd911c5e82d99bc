package main

import (
	"os"
	"path/filepath"

	"github.com/citegraph/citegraph/internal/cache"
	"github.com/citegraph/citegraph/internal/config"
	"github.com/citegraph/citegraph/internal/crossref"
	"github.com/citegraph/citegraph/internal/graph"
	"github.com/citegraph/citegraph/internal/inspire"
	"github.com/citegraph/citegraph/internal/library"
	"github.com/citegraph/citegraph/internal/ratelimit"
)

// app bundles the wired components commands draw from. One instance is
// built per invocation; the cache must be flushed before exit so
// debounced writes reach disk.
type app struct {
	cfg     *config.GlobalConfig
	window  *ratelimit.Window
	inspire *inspire.Client
	cache   *cache.Cache
	library *library.Library // nil when no library is configured
	engine  *graph.Engine
}

// buildApp wires the engine from global config. Exits on config errors.
func buildApp() *app {
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	window := ratelimit.New(cfg.RateMaxRequests(), cfg.RateWindow())
	client := inspire.NewClient(window)

	ttl := cfg.TTLHours()
	store := cache.New(cfg.CacheDir,
		cache.WithTTL(cache.NamespaceCitations, ttl),
		cache.WithTTL(cache.NamespaceAuthors, ttl),
		cache.WithTTL(cache.NamespaceGraph, ttl),
	)

	a := &app{
		cfg:     cfg,
		window:  window,
		inspire: client,
		cache:   store,
	}

	opts := []graph.EngineOption{graph.WithEnrichment(cfg.EnrichSettings())}
	if path := libraryPath(cfg); path != "" {
		lib, err := library.Open(path)
		if err != nil {
			exitWithError(ExitConfigError, "opening library %s: %v", path, err)
		}
		a.library = lib
		opts = append(opts, graph.WithLibrary(lib))
	}
	a.engine = graph.NewEngine(client, store, opts...)
	return a
}

// close flushes pending cache writes and releases the library handle.
func (a *app) close() {
	a.cache.Flush()
	if a.library != nil {
		a.library.Close()
	}
}

// libraryPath resolves the local library location: CITEGRAPH_LIBRARY
// wins over the config file; empty means no library.
func libraryPath(cfg *config.GlobalConfig) string {
	if p := os.Getenv("CITEGRAPH_LIBRARY"); p != "" {
		return config.ExpandTilde(p)
	}
	return cfg.LibraryPath
}

// mustLibraryPath returns the library path or exits if none is configured.
func mustLibraryPath(cfg *config.GlobalConfig) string {
	path := libraryPath(cfg)
	if path == "" {
		exitWithError(ExitConfigError,
			"no library configured: set library_path in %s or CITEGRAPH_LIBRARY",
			filepath.Join(config.GlobalConfigDir, config.GlobalConfigFile))
	}
	return path
}

// newCrossRefClient builds a CrossRef client honoring the configured
// polite-pool contact address (CROSSREF_MAILTO overrides config).
func newCrossRefClient(cfg *config.GlobalConfig) *crossref.Client {
	mailto := os.Getenv("CROSSREF_MAILTO")
	if mailto == "" {
		mailto = cfg.CrossRefMailto
	}
	return crossref.NewClient(crossref.WithMailto(mailto))
}
