package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sqlobserver/sqlobserver/internal/console"
	"github.com/sqlobserver/sqlobserver/internal/observability"
	"github.com/sqlobserver/sqlobserver/internal/query/parser"
	"github.com/sqlobserver/sqlobserver/internal/schema"
	"github.com/sqlobserver/sqlobserver/internal/source"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// maxRequestBody bounds the size of a query request.
const maxRequestBody = 64 << 10

// QueryParam is the URL parameter carrying the query on GET requests.
const QueryParam = "querytext"

var errMethodNotAllowed = errors.New("method not allowed")

// Console is the query surface the handlers serve.
type Console interface {
	Run(ctx context.Context, raw string) (*console.Result, error)
	Explain(ctx context.Context, raw string) (*parser.Plan, error)
	Tables(ctx context.Context) ([]schema.TableInfo, error)
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse represents the query response.
type QueryResponse struct {
	Columns   []string      `json:"columns"`
	Rows      types.Dataset `json:"rows"`
	Stats     QueryStats    `json:"stats"`
	RequestID string        `json:"request_id"`
}

// QueryStats contains execution statistics.
type QueryStats struct {
	RecordCount     int   `json:"record_count"`
	ExecutionTimeMs int64 `json:"execution_time_ms"`
}

// ExplainResponse describes the plan of a valid query.
type ExplainResponse struct {
	Query     string   `json:"query"`
	Source    string   `json:"source"`
	Fields    []string `json:"fields"`
	Plan      string   `json:"plan"`
	RequestID string   `json:"request_id"`
}

// TablesResponse lists the queryable tables.
type TablesResponse struct {
	Tables    []schema.TableInfo `json:"tables"`
	RequestID string             `json:"request_id"`
}

// readQuery extracts the query from a POST body or the GET parameter.
// An empty query is passed through; the console decides what blank means.
func readQuery(r *http.Request) (string, error) {
	switch r.Method {
	case http.MethodGet:
		return r.URL.Query().Get(QueryParam), nil
	case http.MethodPost:
		var req QueryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil && err != io.EOF {
			return "", fmt.Errorf("invalid request body: %v", err)
		}
		return req.Query, nil
	default:
		return "", errMethodNotAllowed
	}
}

func writeReadError(w http.ResponseWriter, err error, requestID string) {
	if errors.Is(err, errMethodNotAllowed) {
		writeError(w, http.StatusMethodNotAllowed, err.Error(), requestID)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error(), requestID)
}

// QueryHandler handles /v1/query requests.
type QueryHandler struct {
	console Console
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(c Console) *QueryHandler {
	return &QueryHandler{console: c}
}

// ServeHTTP handles the query HTTP request.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	query, err := readQuery(r)
	if err != nil {
		writeReadError(w, err, requestID)
		return
	}

	result, err := h.console.Run(r.Context(), query)
	if err != nil {
		writeFailure(w, err, requestID)
		return
	}

	resp := QueryResponse{
		Columns: result.Columns,
		Rows:    result.Records,
		Stats: QueryStats{
			RecordCount:     result.RecordCount,
			ExecutionTimeMs: result.ElapsedMs,
		},
		RequestID: requestID,
	}

	// Ensure rows is not nil for JSON serialization
	if resp.Rows == nil {
		resp.Rows = types.Dataset{}
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ExplainHandler handles /v1/explain requests.
type ExplainHandler struct {
	console Console
}

// NewExplainHandler creates a new explain handler.
func NewExplainHandler(c Console) *ExplainHandler {
	return &ExplainHandler{console: c}
}

// ServeHTTP validates the query and returns its plan.
func (h *ExplainHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	query, err := readQuery(r)
	if err != nil {
		writeReadError(w, err, requestID)
		return
	}

	plan, err := h.console.Explain(r.Context(), query)
	if err != nil {
		writeFailure(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, ExplainResponse{
		Query:     plan.Query,
		Source:    plan.Source,
		Fields:    plan.Fields,
		Plan:      plan.String(),
		RequestID: requestID,
	})
}

// TablesHandler handles GET /v1/tables requests.
type TablesHandler struct {
	console Console
}

// NewTablesHandler creates a new table listing handler.
func NewTablesHandler(c Console) *TablesHandler {
	return &TablesHandler{console: c}
}

// ServeHTTP lists the tables.
func (h *TablesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	tables, err := h.console.Tables(r.Context())
	if err != nil {
		writeFailure(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, TablesResponse{Tables: tables, RequestID: requestID})
}

// CacheStatter reports dataset cache counters.
type CacheStatter interface {
	Stats() source.CacheStats
}

// StatsResponse is the observability snapshot.
type StatsResponse struct {
	Queries observability.Snapshot `json:"queries"`
	Cache   *source.CacheStats     `json:"cache,omitempty"`
}

// StatsHandler handles GET /v1/stats requests.
type StatsHandler struct {
	stats *observability.QueryStats
	cache CacheStatter
	topN  int
}

// NewStatsHandler creates a stats handler. cache may be nil.
func NewStatsHandler(stats *observability.QueryStats, cache CacheStatter, topN int) *StatsHandler {
	if topN <= 0 {
		topN = 10
	}
	return &StatsHandler{stats: stats, cache: cache, topN: topN}
}

// ServeHTTP returns the current statistics.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", GetRequestID(r.Context()))
		return
	}

	resp := StatsResponse{Queries: h.stats.Snapshot(h.topN)}
	if h.cache != nil {
		cs := h.cache.Stats()
		resp.Cache = &cs
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthHandler reports liveness.
func HealthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": service})
	}
}
