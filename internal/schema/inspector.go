// Package schema derives the field names available to queries from the
// shape of a fetched dataset.
package schema

import (
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// Schema is the ordered set of field names of the queryable table.
// It is built fresh for every fetched dataset and never mutated.
type Schema struct {
	names []string
	index map[string]struct{}
}

// TableInfo describes a table for listings.
type TableInfo struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// Inspect returns the schema of the dataset, taken from its first record.
// An empty dataset yields an empty schema.
func Inspect(ds types.Dataset) *Schema {
	if len(ds) == 0 {
		return New()
	}
	return New(ds[0].Keys()...)
}

// New builds a schema from field names in order. Duplicates are dropped.
func New(names ...string) *Schema {
	s := &Schema{
		names: make([]string, 0, len(names)),
		index: make(map[string]struct{}, len(names)),
	}
	for _, name := range names {
		if _, dup := s.index[name]; dup {
			continue
		}
		s.index[name] = struct{}{}
		s.names = append(s.names, name)
	}
	return s
}

// Names returns a copy of the field names in schema order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.names)
}

// Has reports whether name is a field of the schema. The comparison is
// exact and case-sensitive.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Filter returns the schema fields that appear in fields, in schema order.
func (s *Schema) Filter(fields []string) []string {
	want := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		want[f] = struct{}{}
	}
	out := make([]string, 0, len(fields))
	for _, name := range s.names {
		if _, ok := want[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Describe returns the listing entry for a table backed by the dataset.
func Describe(table string, ds types.Dataset) TableInfo {
	return TableInfo{Name: table, Fields: Inspect(ds).Names()}
}
