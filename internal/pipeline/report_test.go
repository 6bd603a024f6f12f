package pipeline

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/electwix/rst-lint/internal/config"
	"github.com/electwix/rst-lint/internal/diagnostics"
)

func intPtr(v int) *int { return &v }

func reportSummary() Summary {
	return Summary{Results: []FileResult{
		{Path: "clean.rst"},
		{Path: "bad.rst", Records: []diagnostics.Record{
			{Line: intPtr(1), Source: "bad.rst", Level: diagnostics.LevelInfo, Type: "INFO", Message: "Hyperlink target \"x\" is not referenced."},
			{Line: intPtr(2), Source: "bad.rst", Level: diagnostics.LevelWarning, Type: "WARNING", Message: "Title underline too short."},
			{Source: "bad.rst", Level: diagnostics.LevelError, Type: "ERROR", Message: "Anonymous hyperlink mismatch."},
		}},
	}}
}

func TestReportText(t *testing.T) {
	tests := []struct {
		name  string
		level diagnostics.Level
		want  string
	}{
		{
			name:  "warning",
			level: diagnostics.LevelWarning,
			want: "INFO File clean.rst is clean.\n" +
				"WARNING bad.rst:2 Title underline too short.\n" +
				"ERROR bad.rst:None Anonymous hyperlink mismatch.\n",
		},
		{
			name:  "severe hides everything",
			level: diagnostics.LevelSevere,
			want:  "INFO File clean.rst is clean.\nINFO File bad.rst is clean.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Report(&buf, reportSummary(), ReportOptions{Format: config.FormatText, Level: tt.level})
			if err != nil {
				t.Fatalf("Report returned error: %v", err)
			}
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReportJSON(t *testing.T) {
	var buf bytes.Buffer
	err := Report(&buf, reportSummary(), ReportOptions{Format: config.FormatJSON, Level: diagnostics.LevelWarning})
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON array: %v (%q)", err, buf.String())
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0]["type"] != "WARNING" || got[0]["line"] != float64(2) {
		t.Errorf("first record = %v", got[0])
	}
	if got[1]["line"] != nil {
		t.Errorf("missing line should encode as null, got %v", got[1]["line"])
	}
}

func TestReportJSONClean(t *testing.T) {
	var buf bytes.Buffer
	err := Report(&buf, Summary{Results: []FileResult{{Path: "a.rst"}}}, ReportOptions{Format: config.FormatJSON})
	if err != nil {
		t.Fatalf("Report returned error: %v", err)
	}
	if got := buf.String(); got != "[]\n" {
		t.Errorf("output = %q, want empty array", got)
	}
}

func TestReportUnknownFormat(t *testing.T) {
	if err := Report(&bytes.Buffer{}, Summary{}, ReportOptions{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
