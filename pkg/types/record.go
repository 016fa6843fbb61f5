// Package types provides core data types for SQL Observer.
package types

import (
	"encoding/json"
	"reflect"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Field is a single name/value pair of a record.
type Field struct {
	Name  string
	Value interface{}
}

// Record is a single row of the dataset. Unlike a Go map it remembers the
// order its fields were defined in, which is the order they appear in the
// source JSON object or SQLite row.
type Record struct {
	fields *orderedmap.OrderedMap[string, interface{}]
}

// NewRecord creates a record with the given fields in order.
// A repeated name keeps its first position and takes the last value.
func NewRecord(fields ...Field) Record {
	r := Record{fields: orderedmap.New[string, interface{}]()}
	for _, f := range fields {
		r.fields.Set(f.Name, f.Value)
	}
	return r
}

// Get returns the value of the named field.
func (r Record) Get(name string) (interface{}, bool) {
	if r.fields == nil {
		return nil, false
	}
	return r.fields.Get(name)
}

// Has reports whether the record defines the named field.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Len returns the number of fields.
func (r Record) Len() int {
	if r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the field names in record order.
func (r Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	r.Each(func(name string, _ interface{}) {
		keys = append(keys, name)
	})
	return keys
}

// Values returns the field values in record order.
func (r Record) Values() []interface{} {
	values := make([]interface{}, 0, r.Len())
	r.Each(func(_ string, value interface{}) {
		values = append(values, value)
	})
	return values
}

// Each calls fn for every field in record order.
func (r Record) Each(fn func(name string, value interface{})) {
	if r.fields == nil {
		return
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Equal reports whether both records hold the same fields, in the same order,
// with deeply equal values.
func (r Record) Equal(other Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	a, b := r.Keys(), other.Keys()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
		va, _ := r.Get(a[i])
		vb, _ := other.Get(b[i])
		if !reflect.DeepEqual(va, vb) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as a JSON object with keys in record order.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.fields == nil {
		return []byte("{}"), nil
	}
	return r.fields.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object keeping the key order of the input.
// Numbers decode as float64.
func (r *Record) UnmarshalJSON(data []byte) error {
	fields := orderedmap.New[string, interface{}]()
	if err := fields.UnmarshalJSON(data); err != nil {
		return err
	}
	r.fields = fields
	return nil
}

var (
	_ json.Marshaler   = Record{}
	_ json.Unmarshaler = (*Record)(nil)
)
