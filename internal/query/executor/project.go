// Package executor applies validated plans to fetched datasets.
package executor

import (
	"github.com/sqlobserver/sqlobserver/internal/query/parser"
	"github.com/sqlobserver/sqlobserver/internal/schema"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// Project returns the dataset restricted to the plan's fields.
//
// A wildcard anywhere in the select list returns the input as is. Otherwise
// each output record holds the selected fields in the order the source
// record defines them, not the order they were selected in. The input is
// never modified.
func Project(ds types.Dataset, plan *parser.Plan) types.Dataset {
	if plan.HasWildcard() {
		return ds
	}

	selected := make(map[string]struct{}, len(plan.Fields))
	for _, f := range plan.Fields {
		selected[f] = struct{}{}
	}

	out := make(types.Dataset, 0, len(ds))
	for _, rec := range ds {
		fields := make([]types.Field, 0, len(selected))
		rec.Each(func(name string, value interface{}) {
			if _, ok := selected[name]; ok {
				fields = append(fields, types.Field{Name: name, Value: value})
			}
		})
		out = append(out, types.NewRecord(fields...))
	}
	return out
}

// Columns returns the header of a projection: the schema fields the plan
// keeps, in schema order. It is defined for empty results too.
func Columns(s *schema.Schema, plan *parser.Plan) []string {
	if plan.HasWildcard() {
		return s.Names()
	}
	return s.Filter(plan.Fields)
}
