package types

import (
	"fmt"
)

// Dataset is an ordered sequence of uniform records.
type Dataset []Record

// Len returns the number of records.
func (d Dataset) Len() int {
	return len(d)
}

// Equal reports whether both datasets hold equal records in the same order.
func (d Dataset) Equal(other Dataset) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if !d[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// CheckUniform verifies that every record has the key set of the first
// record. Key order may differ between records; membership may not.
func (d Dataset) CheckUniform() error {
	if len(d) == 0 {
		return nil
	}
	first := d[0]
	for i := 1; i < len(d); i++ {
		rec := d[i]
		if rec.Len() != first.Len() {
			return &NonUniformError{Index: i, Reason: fmt.Sprintf("has %d fields, want %d", rec.Len(), first.Len())}
		}
		for _, key := range first.Keys() {
			if !rec.Has(key) {
				return &NonUniformError{Index: i, Reason: fmt.Sprintf("missing field %q", key)}
			}
		}
	}
	return nil
}
