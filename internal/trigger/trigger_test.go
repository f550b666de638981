package trigger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, dir string, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("App,Category,Rating,Reviews\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "\"App %d, Pro\",TOOLS,4.%d,%d\n", i, i%10, i*3)
	}
	path := filepath.Join(dir, "apps.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestCountRowsSkipsHeaderAndHandlesQuotes(t *testing.T) {
	path := writeCSV(t, t.TempDir(), 42)
	n, err := CountRows(path)
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	if n != 42 {
		t.Fatalf("expected 42 rows, got %d", n)
	}
}

func TestCountRowsMultilineField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.csv")
	os.WriteFile(path, []byte("App,Notes\nA,\"line one\nline two\"\nB,plain\n"), 0o644)
	n, err := CountRows(path)
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
}

func TestCheckNewDataFirstRun(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir, 10)

	res, err := CheckNewData(data, filepath.Join(dir, "marker.txt"), 100)
	if err != nil {
		t.Fatalf("CheckNewData: %v", err)
	}
	if !res.FirstRun || !res.HasNewData || res.NewRows != 10 {
		t.Fatalf("first run should always retrain, got %+v", res)
	}
}

func TestCheckNewDataThreshold(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir, 250)
	marker := filepath.Join(dir, "models", "marker.txt")

	if err := MarkTrained(marker, 151); err != nil {
		t.Fatalf("MarkTrained: %v", err)
	}
	res, err := CheckNewData(data, marker, 100)
	if err != nil {
		t.Fatalf("CheckNewData: %v", err)
	}
	if res.HasNewData || res.NewRows != 99 {
		t.Fatalf("99 new rows must not trigger, got %+v", res)
	}

	MarkTrained(marker, 150)
	res, _ = CheckNewData(data, marker, 100)
	if !res.HasNewData || res.NewRows != 100 {
		t.Fatalf("100 new rows must trigger, got %+v", res)
	}
}

func TestCheckNewDataDefaultThreshold(t *testing.T) {
	dir := t.TempDir()
	data := writeCSV(t, dir, 5)
	marker := filepath.Join(dir, "marker.txt")
	MarkTrained(marker, 0)

	res, err := CheckNewData(data, marker, 0)
	if err != nil {
		t.Fatalf("CheckNewData: %v", err)
	}
	if res.Threshold != DefaultThreshold || res.HasNewData {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCheckNewDataErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := CheckNewData(filepath.Join(dir, "absent.csv"), filepath.Join(dir, "m"), 100); err == nil {
		t.Fatal("expected error for missing dataset")
	}

	data := writeCSV(t, dir, 3)
	marker := filepath.Join(dir, "marker.txt")
	os.WriteFile(marker, []byte("2025-01-01 10:00:00"), 0o644)
	if _, err := CheckNewData(data, marker, 100); err == nil {
		t.Fatal("expected error for unparseable marker")
	}
}

func TestResultWriteSentinels(t *testing.T) {
	dir := t.TempDir()
	if err := (Result{HasNewData: true, NewRows: 120}).WriteSentinels(dir); err != nil {
		t.Fatalf("WriteSentinels: %v", err)
	}
	has, _ := os.ReadFile(filepath.Join(dir, "has_new_data.txt"))
	count, _ := os.ReadFile(filepath.Join(dir, "new_data_count.txt"))
	if string(has) != "true" || string(count) != "120" {
		t.Fatalf("unexpected sentinels %q %q", has, count)
	}
}

func TestDatasetStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.csv")
	os.WriteFile(path, []byte("App,Category,Rating\nA,GAME,4.1\nB,TOOLS,3.9\nC,GAME,4.5\n\"D, Lite\",FAMILY,4.0\n"), 0o644)

	s, err := DatasetStats(path)
	if err != nil {
		t.Fatalf("DatasetStats: %v", err)
	}
	if s.TotalRows != 4 || s.Categories != 3 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.LastUpdated.IsZero() {
		t.Fatal("expected modification time")
	}
}

func TestDatasetStatsWithoutCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.csv")
	os.WriteFile(path, []byte("App,Rating\nA,4.1\n"), 0o644)

	s, err := DatasetStats(path)
	if err != nil {
		t.Fatalf("DatasetStats: %v", err)
	}
	if s.TotalRows != 1 || s.Categories != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}
