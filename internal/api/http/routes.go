package http

import (
	"net/http"

	"github.com/sqlobserver/sqlobserver/internal/notify"
	"github.com/sqlobserver/sqlobserver/internal/observability"
)

// Routes holds what the API routes serve. Cache and Changes may be nil.
type Routes struct {
	Console Console
	Stats   *observability.QueryStats
	Cache   CacheStatter
	Changes *notify.Notifier
	// Stop ends pending change requests when closed.
	Stop <-chan struct{}
}

// Register mounts the API routes on mux, wrapping each in mw.
func Register(mux *http.ServeMux, rt Routes, mw func(http.Handler) http.Handler) {
	mux.Handle("/v1/query", mw(NewQueryHandler(rt.Console)))
	mux.Handle("/v1/explain", mw(NewExplainHandler(rt.Console)))
	mux.Handle("/v1/tables", mw(NewTablesHandler(rt.Console)))
	mux.Handle("/v1/stats", mw(NewStatsHandler(rt.Stats, rt.Cache, 10)))
	if rt.Changes != nil {
		mux.Handle("/v1/changes", mw(NewChangesHandler(rt.Changes, DefaultChangeWait, rt.Stop)))
	}
	mux.HandleFunc("/health", HealthHandler("sqlobserver"))
}
