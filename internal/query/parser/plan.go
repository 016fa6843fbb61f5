// Package parser validates the restricted select statement accepted by SQL
// Observer and turns it into a Plan.
package parser

import (
	"fmt"
	"strings"
)

const (
	// Wildcard selects every field of the table.
	Wildcard = "*"

	// TableStudents is the only table queries may read from.
	TableStudents = "students"
)

// Plan is a validated query ready for projection.
type Plan struct {
	// Query is the normalized statement the plan was built from.
	Query string

	// Source is the table name; always TableStudents.
	Source string

	// Fields are the validated select-list tokens in query order.
	// The wildcard is kept verbatim.
	Fields []string
}

// HasWildcard reports whether any select-list token is the wildcard.
func (p *Plan) HasWildcard() bool {
	for _, f := range p.Fields {
		if f == Wildcard {
			return true
		}
	}
	return false
}

// String renders the execution plan.
func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SCAN %s\n", p.Source)
	if p.HasWildcard() {
		b.WriteString("PROJECT *")
	} else {
		fmt.Fprintf(&b, "PROJECT %s (source field order)", strings.Join(p.Fields, ", "))
	}
	return b.String()
}
