package render

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sqlobserver/sqlobserver/internal/console"
	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/internal/query/parser"
	"github.com/sqlobserver/sqlobserver/internal/schema"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

func TestSuccessLabel(t *testing.T) {
	if got := SuccessLabel(2, 15); got != "Record count: 2; Execution time: 15ms;" {
		t.Errorf("label = %q", got)
	}
}

func TestFailureLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{oerrors.UnknownField("Z"), `Query failed: UNKNOWN_FIELD: unknown field "Z"`},
		{oerrors.UnknownTable("teachers"), `Query failed: UNKNOWN_TABLE: unknown table "teachers"`},
		{oerrors.MissingClause("from"), `Query failed: MISSING_CLAUSE: missing "from" clause`},
		{fmt.Errorf("boom"), "Query failed: boom"},
	}
	for _, tt := range tests {
		if got := FailureLabel(tt.err); got != tt.want {
			t.Errorf("FailureLabel(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestResult(t *testing.T) {
	r := &console.Result{
		Columns: []string{"StudentID", "LastName"},
		Records: types.Dataset{
			types.NewRecord(
				types.Field{Name: "StudentID", Value: 1.0},
				types.Field{Name: "LastName", Value: "Doe"},
			),
			types.NewRecord(
				types.Field{Name: "StudentID", Value: 22.5},
				types.Field{Name: "LastName", Value: nil},
			),
		},
		RecordCount: 2,
		ElapsedMs:   3,
	}

	var buf bytes.Buffer
	if err := Result(&buf, r); err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	want := "Record count: 2; Execution time: 3ms;\n" +
		"StudentID  LastName\n" +
		"---------  --------\n" +
		"1          Doe\n" +
		"22.5       null\n"
	if buf.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestResult_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Result(&buf, &console.Result{Columns: []string{"City"}}); err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 || lines[0] != "Record count: 0; Execution time: 0ms;" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPlanAndTables(t *testing.T) {
	var buf bytes.Buffer
	Plan(&buf, &parser.Plan{Source: "students", Fields: []string{"*"}})
	if buf.String() != "SCAN students\nPROJECT *\n" {
		t.Errorf("plan output %q", buf.String())
	}

	buf.Reset()
	Tables(&buf, []schema.TableInfo{{Name: "students", Fields: []string{"StudentID", "City"}}})
	if buf.String() != "students\n  StudentID\n  City\n" {
		t.Errorf("tables output %q", buf.String())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "null"},
		{"x", "x"},
		{3.0, "3"},
		{0.25, "0.25"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRows(t *testing.T) {
	var buf bytes.Buffer
	err := Rows(&buf, 1, 12, []string{"City", "Active"}, [][]interface{}{{"Oulu", true}})
	if err != nil {
		t.Fatalf("Rows failed: %v", err)
	}
	want := "Record count: 1; Execution time: 12ms;\n" +
		"City  Active\n" +
		"----  ------\n" +
		"Oulu  true\n"
	if buf.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
}
