// Package render formats query results for terminals.
package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/sqlobserver/sqlobserver/internal/console"
	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/internal/query/parser"
	"github.com/sqlobserver/sqlobserver/internal/schema"
)

// SuccessLabel returns the summary line printed above a result table.
func SuccessLabel(count int, elapsedMs int64) string {
	return fmt.Sprintf("Record count: %d; Execution time: %dms;", count, elapsedMs)
}

// FailureLabel names the failure kind and its message.
func FailureLabel(err error) string {
	var oe *oerrors.ObserverError
	if !errors.As(err, &oe) {
		return fmt.Sprintf("Query failed: %v", err)
	}
	return fmt.Sprintf("Query failed: %s: %s", oe.Code, oe.Message)
}

// Result writes the success label and the result table.
func Result(w io.Writer, r *console.Result) error {
	rows := make([][]interface{}, 0, len(r.Records))
	for _, rec := range r.Records {
		row := make([]interface{}, len(r.Columns))
		for i, col := range r.Columns {
			row[i], _ = rec.Get(col)
		}
		rows = append(rows, row)
	}
	return Rows(w, r.RecordCount, r.ElapsedMs, r.Columns, rows)
}

// Rows writes the success label and a table of positional rows.
func Rows(w io.Writer, count int, elapsedMs int64, columns []string, rows [][]interface{}) error {
	if _, err := fmt.Fprintln(w, SuccessLabel(count, elapsedMs)); err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	fmt.Fprintln(tw, strings.Join(rule(columns), "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// Failure writes the failure label.
func Failure(w io.Writer, err error) error {
	_, werr := fmt.Fprintln(w, FailureLabel(err))
	return werr
}

// Plan writes an execution plan.
func Plan(w io.Writer, p *parser.Plan) error {
	_, err := fmt.Fprintln(w, p.String())
	return err
}

// Tables writes the table listing, one table per line followed by its fields.
func Tables(w io.Writer, tables []schema.TableInfo) error {
	for _, t := range tables {
		if _, err := fmt.Fprintf(w, "%s\n", t.Name); err != nil {
			return err
		}
		for _, f := range t.Fields {
			if _, err := fmt.Fprintf(w, "  %s\n", f); err != nil {
				return err
			}
		}
	}
	return nil
}

// FormatValue renders a scalar the way it reads in the source JSON.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func rule(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = strings.Repeat("-", len(c))
	}
	return out
}
