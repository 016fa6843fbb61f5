// Package source retrieves the dataset that queries run against.
//
// Every source returns an ordered, uniform types.Dataset or a FETCH category
// error from internal/errors. Sources never return a partial dataset.
package source

import (
	"context"
	"encoding/json"
	"errors"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// Fetcher retrieves the dataset. Fetch blocks until the dataset is fully
// retrieved or the attempt fails.
type Fetcher interface {
	Fetch(ctx context.Context) (types.Dataset, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (types.Dataset, error)

// Fetch calls f(ctx).
func (f FetcherFunc) Fetch(ctx context.Context) (types.Dataset, error) {
	return f(ctx)
}

type queryTextKey struct{}

// WithQueryText attaches the query being answered to ctx. Sources that
// forward the query upstream read it with QueryText.
func WithQueryText(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryTextKey{}, query)
}

// QueryText returns the query attached by WithQueryText, if any.
func QueryText(ctx context.Context) string {
	if q, ok := ctx.Value(queryTextKey{}).(string); ok {
		return q
	}
	return ""
}

// Decode parses a JSON array of objects into a dataset and checks that all
// records share the key set of the first one. A JSON null decodes to an empty
// dataset.
func Decode(data []byte) (types.Dataset, error) {
	var ds types.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, oerrors.NewFetchError(oerrors.CodeDecodeFailed, "dataset is not a JSON array of objects", err)
	}
	if ds == nil {
		ds = types.Dataset{}
	}
	if err := ds.CheckUniform(); err != nil {
		return nil, oerrors.NewFetchError(oerrors.CodeNonUniformDataset, "dataset records do not share one schema", err)
	}
	return ds, nil
}

// asFetchError makes sure failures leaving a source are FETCH errors.
func asFetchError(detail string, err error) error {
	if err == nil || oerrors.IsFetchFailure(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return oerrors.FetchFailure(detail, err).WithRetryable(false)
	}
	return oerrors.FetchFailure(detail, err)
}
