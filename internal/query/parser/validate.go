package parser

import (
	"strings"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/internal/schema"
)

const (
	keywordSelect = "select"
	keywordFrom   = "from"
	terminator    = ";"
	listSeparator = ","
)

// Normalize trims the raw query and terminates it with a semicolon.
// A blank query normalizes to the empty string.
func Normalize(raw string) string {
	query := strings.TrimSpace(raw)
	if query == "" {
		return ""
	}
	if !strings.HasSuffix(query, terminator) {
		query += terminator
	}
	return query
}

// Validate checks the query against the schema and returns the plan to
// project, or a QUERY category error naming what is wrong.
//
// Clauses are located by the first occurrence of each keyword. The table
// name is the text between the end of the first "from" and the first ";".
// The select list is the text between one character past the end of the
// first "select" and the first "from". Keywords are case-sensitive and are
// found anywhere in the text, including inside identifiers.
func Validate(raw string, s *schema.Schema) (*Plan, error) {
	query := Normalize(raw)
	if query == "" {
		return nil, oerrors.EmptyQuery()
	}

	fromAt := strings.Index(query, keywordFrom)
	if fromAt < 0 {
		return nil, oerrors.MissingClause(keywordFrom)
	}

	table := strings.TrimSpace(between(query, fromAt+len(keywordFrom), strings.Index(query, terminator)))
	if table != TableStudents {
		return nil, oerrors.UnknownTable(table)
	}

	selectAt := strings.Index(query, keywordSelect)
	if selectAt < 0 {
		return nil, oerrors.MissingClause(keywordSelect)
	}

	listStart := selectAt + len(keywordSelect) + 1
	if listStart > fromAt {
		return nil, oerrors.MisplacedClause(keywordSelect, "select list must precede from")
	}

	fields := strings.Split(query[listStart:fromAt], listSeparator)
	var unknown []string
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] != Wildcard && (s == nil || !s.Has(fields[i])) {
			unknown = append(unknown, fields[i])
		}
	}
	if len(unknown) > 0 {
		return nil, oerrors.UnknownField(unknown...)
	}

	return &Plan{
		Query:  query,
		Source: TableStudents,
		Fields: fields,
	}, nil
}

// between returns s[start:end], or "" when the span is inverted or end is
// missing (-1).
func between(s string, start, end int) string {
	if end < start || start > len(s) {
		return ""
	}
	return s[start:end]
}
