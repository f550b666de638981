package trigger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultThreshold is the number of new rows that justifies retraining.
const DefaultThreshold = 100

// Result describes whether the dataset grew enough since the last training.
type Result struct {
	CurrentRows int  `json:"current_rows"`
	NewRows     int  `json:"new_rows"`
	Threshold   int  `json:"threshold"`
	FirstRun    bool `json:"first_run"`
	HasNewData  bool `json:"has_new_data"`
}

// CheckNewData counts the data rows of the CSV at dataPath and compares them with the
// count recorded at markerPath. Without a marker a retrain is always due.
func CheckNewData(dataPath, markerPath string, threshold int) (Result, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	rows, err := CountRows(dataPath)
	if err != nil {
		return Result{}, err
	}
	res := Result{CurrentRows: rows, Threshold: threshold}

	last, err := readMarker(markerPath)
	if errors.Is(err, os.ErrNotExist) {
		res.FirstRun = true
		res.NewRows = rows
		res.HasNewData = true
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}

	res.NewRows = rows - last
	res.HasNewData = res.NewRows >= threshold
	return res, nil
}

// MarkTrained records the row count a model was trained on.
func MarkTrained(markerPath string, rows int) error {
	if err := os.MkdirAll(filepath.Dir(markerPath), 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	if err := os.WriteFile(markerPath, []byte(strconv.Itoa(rows)), 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// CountRows returns the number of records after the header line.
func CountRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	n := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read dataset %s: %w", path, err)
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n - 1, nil
}

func readMarker(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse marker %s: %w", path, err)
	}
	return v, nil
}

// WriteSentinels writes has_new_data.txt and new_data_count.txt for shell steps.
func (r Result) WriteSentinels(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sentinel dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "has_new_data.txt"), []byte(strconv.FormatBool(r.HasNewData)), 0o644); err != nil {
		return fmt.Errorf("write has_new_data: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "new_data_count.txt"), []byte(strconv.Itoa(r.NewRows)), 0o644); err != nil {
		return fmt.Errorf("write new_data_count: %w", err)
	}
	return nil
}
