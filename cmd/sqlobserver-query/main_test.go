package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const students = `[
  {"StudentID": 1, "LastName": "Doe", "City": "Oulu"},
  {"StudentID": 2, "LastName": "Roe", "City": "Turku"}
]`

func writeStudents(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "students.json")
	if err := os.WriteFile(path, []byte(students), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Query(t *testing.T) {
	path := writeStudents(t)
	code, out, _ := runCLI(t, "", "-source", "file", "-source-path", path, "select City, LastName from students;")
	if code != 0 {
		t.Fatalf("exit code = %d, output %q", code, out)
	}
	if !strings.HasPrefix(out, "Record count: 2; Execution time: ") {
		t.Errorf("missing success label: %q", out)
	}
	if !strings.Contains(out, "LastName  City") {
		t.Errorf("columns should follow source order: %q", out)
	}
}

func TestRun_SplitArgsFormOneQuery(t *testing.T) {
	path := writeStudents(t)
	code, out, _ := runCLI(t, "", "-source", "file", "-source-path", path, "select", "City", "from", "students")
	if code != 0 {
		t.Fatalf("exit code = %d, output %q", code, out)
	}
	if !strings.Contains(out, "Turku") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRun_Failure(t *testing.T) {
	path := writeStudents(t)
	code, out, _ := runCLI(t, "", "-source", "file", "-source-path", path, "-q", "select * from teachers;")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.HasPrefix(out, "Query failed: UNKNOWN_TABLE") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRun_Stdin(t *testing.T) {
	path := writeStudents(t)
	input := "select LastName from students;\n\nselect Age from students;\n"
	code, out, _ := runCLI(t, input, "-source", "file", "-source-path", path)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1 after a failing line", code)
	}
	if strings.Count(out, "Record count: 2;") != 2 {
		t.Errorf("expected two successes (blank line runs the default): %q", out)
	}
	if !strings.Contains(out, "Query failed: UNKNOWN_FIELD") {
		t.Errorf("expected unknown field failure: %q", out)
	}
}

func TestRun_ExplainAndTables(t *testing.T) {
	path := writeStudents(t)

	code, out, _ := runCLI(t, "", "-source", "file", "-source-path", path, "-explain", "select City from students")
	if code != 0 || !strings.Contains(out, "SCAN students") || !strings.Contains(out, "PROJECT City") {
		t.Errorf("explain: code %d output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "-source", "file", "-source-path", path, "-tables")
	if code != 0 || !strings.HasPrefix(out, "students\n  StudentID\n  LastName\n  City\n") {
		t.Errorf("tables: code %d output %q", code, out)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	if code, _, _ := runCLI(t, "", "-no-such-flag"); code != 2 {
		t.Errorf("unknown flag exit code = %d, want 2", code)
	}
	if code, _, _ := runCLI(t, "", "-source", "file"); code != 2 {
		t.Errorf("missing path exit code = %d, want 2", code)
	}
	if code, _, _ := runCLI(t, "", "-remote", "localhost:1", "-tables"); code != 2 {
		t.Errorf("remote tables exit code = %d, want 2", code)
	}
}

func TestRun_Examples(t *testing.T) {
	code, out, _ := runCLI(t, "", "-examples")
	if code != 0 || !strings.Contains(out, "select LastName, City from students") {
		t.Errorf("code %d output %q", code, out)
	}
}
