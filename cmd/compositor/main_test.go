package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/product-compositor/internal/logger"
	"github.com/menta2k/product-compositor/pkg/batch"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.Logger.SetOutput(&buf)
	t.Cleanup(func() { logger.Logger.SetOutput(os.Stderr) })
	return &buf
}

func TestWriteReport(t *testing.T) {
	logs := captureLogs(t)
	dir := t.TempDir()
	report := batch.Report{Results: []batch.Result{{SourceID: "front", CompositeHandle: "out/front.png"}}}

	writeReport(dir, report)

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	if err != nil {
		t.Fatalf("Expected report.json to be written, got %v", err)
	}
	var got batch.Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Expected valid JSON report, got %v", err)
	}
	if len(got.Results) != 1 || got.Results[0].SourceID != "front" {
		t.Errorf("Expected one result for front, got %+v", got.Results)
	}
	if logs.Len() != 0 {
		t.Errorf("Expected no warnings, got %s", logs.String())
	}
}

func TestWriteReportUnwritableDir(t *testing.T) {
	logs := captureLogs(t)

	writeReport(filepath.Join(t.TempDir(), "missing", "dir"), batch.Report{})

	if !strings.Contains(logs.String(), "failed to write report") {
		t.Errorf("Expected write failure to be logged, got %q", logs.String())
	}
}
