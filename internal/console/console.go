// Package console answers pseudo-SQL queries against the students dataset.
//
// A request fetches the dataset once, inspects its schema, validates the
// query against that schema and projects the selected fields.
package console

import (
	"context"
	"strings"
	"time"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/internal/observability"
	"github.com/sqlobserver/sqlobserver/internal/query/executor"
	"github.com/sqlobserver/sqlobserver/internal/query/parser"
	"github.com/sqlobserver/sqlobserver/internal/schema"
	"github.com/sqlobserver/sqlobserver/internal/source"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// DefaultQuery is run when the submitted query is blank.
const DefaultQuery = "select * from students;"

// Result is the outcome of a successful query.
type Result struct {
	Plan        *parser.Plan
	Columns     []string
	Records     types.Dataset
	RecordCount int
	ElapsedMs   int64
}

// Option configures a Console.
type Option func(*Console)

// WithDefaultQuery sets the query used for blank input. An empty string
// disables the substitution so blank input fails with EMPTY_QUERY.
func WithDefaultQuery(query string) Option {
	return func(c *Console) {
		c.defaultQuery = query
	}
}

// WithStats records usage and failures in stats.
func WithStats(stats *observability.QueryStats) Option {
	return func(c *Console) {
		c.stats = stats
	}
}

// WithClock replaces the clock used for execution time.
func WithClock(now func() time.Time) Option {
	return func(c *Console) {
		c.now = now
	}
}

// Console runs queries against the dataset returned by a fetcher.
type Console struct {
	fetcher      source.Fetcher
	defaultQuery string
	stats        *observability.QueryStats
	now          func() time.Time
}

// New creates a console reading from fetcher.
func New(fetcher source.Fetcher, opts ...Option) *Console {
	c := &Console{
		fetcher:      fetcher,
		defaultQuery: DefaultQuery,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes raw. The elapsed time covers fetching, validation and
// projection.
func (c *Console) Run(ctx context.Context, raw string) (*Result, error) {
	start := c.now()
	query := c.resolve(raw)

	ds, sch, plan, err := c.prepare(ctx, query)
	if err != nil {
		c.recordFailure(query, err)
		return nil, err
	}

	records := executor.Project(ds, plan)
	elapsed := c.now().Sub(start)
	result := &Result{
		Plan:        plan,
		Columns:     executor.Columns(sch, plan),
		Records:     records,
		RecordCount: len(records),
		ElapsedMs:   elapsed.Milliseconds(),
	}

	if c.stats != nil {
		c.stats.RecordQuery(plan.Query, plan.Source, plan.Fields, elapsed)
	}
	return result, nil
}

// Explain validates raw and returns its plan without projecting.
func (c *Console) Explain(ctx context.Context, raw string) (*parser.Plan, error) {
	_, _, plan, err := c.prepare(ctx, c.resolve(raw))
	return plan, err
}

// Tables lists the queryable tables with their fields.
func (c *Console) Tables(ctx context.Context) ([]schema.TableInfo, error) {
	ds, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return []schema.TableInfo{schema.Describe(parser.TableStudents, ds)}, nil
}

func (c *Console) resolve(raw string) string {
	if strings.TrimSpace(raw) == "" && c.defaultQuery != "" {
		return c.defaultQuery
	}
	return raw
}

// prepare fetches the dataset and validates query against its schema.
// The fetch completes before validation begins.
func (c *Console) prepare(ctx context.Context, query string) (types.Dataset, *schema.Schema, *parser.Plan, error) {
	ds, err := c.fetcher.Fetch(source.WithQueryText(ctx, query))
	if err != nil {
		return nil, nil, nil, err
	}
	sch := schema.Inspect(ds)
	plan, err := parser.Validate(query, sch)
	if err != nil {
		return nil, nil, nil, err
	}
	return ds, sch, plan, nil
}

func (c *Console) recordFailure(query string, err error) {
	if c.stats == nil {
		return
	}
	code := oerrors.GetCode(err)
	category := string(oerrors.GetCategory(err))
	if code == "" {
		code = oerrors.CodeUnexpected
		category = string(oerrors.ErrCategoryInternal)
	}
	c.stats.RecordFailure(strings.TrimSpace(query), code, category)
}
