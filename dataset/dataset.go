package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Dataset is a labeled, columnar, in-memory table. It is the unit of data a
// single turn operates on and is always passed explicitly, never held in
// shared state.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

func New(columns []string, rows [][]string) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset requires at least one column")
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
	}
	return &Dataset{Columns: columns, Rows: rows}, nil
}

// ReadCSV builds a dataset from CSV input. The first record is taken as the
// header row.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv input is empty")
	}
	return New(records[0], records[1:])
}

// CSV renders the dataset back to CSV text. This is the serialization used at
// the sandbox boundary.
func (d *Dataset) CSV() (string, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	if err := writer.Write(d.Columns); err != nil {
		return "", err
	}
	if err := writer.WriteAll(d.Rows); err != nil {
		return "", err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (d *Dataset) NumRows() int {
	return len(d.Rows)
}

func (d *Dataset) NumColumns() int {
	return len(d.Columns)
}
