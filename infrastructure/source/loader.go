// Package source reads property rows from spreadsheets.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/smartsense/smartsense/domain/property"
)

// ErrSourceMissing indicates the row source file does not exist.
var ErrSourceMissing = errors.New("row source not found")

// ErrUnsupportedFormat indicates a file extension the loader cannot read.
var ErrUnsupportedFormat = errors.New("unsupported row source format")

// Loader implements property.RowLoader for .xlsx, .xlsm and .csv files.
type Loader struct{}

// NewLoader creates a Loader.
func NewLoader() Loader { return Loader{} }

// Load reads every data row of path. The first row is the header.
func (Loader) Load(ctx context.Context, path string) ([]property.Row, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return nil, fmt.Errorf("stat row source: %w", err)
	}

	var records [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readWorkbook(path)
	case ".csv":
		records, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return toRows(records), nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		records = append(records, rec)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return records, nil
}

// toRows pairs cells with headers. Unnamed columns and fully blank rows
// are dropped; the row index counts every data row after the header.
func toRows(records [][]string) []property.Row {
	if len(records) == 0 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = property.NormaliseHeader(h)
	}

	rows := make([]property.Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		cells := make(map[string]string, len(header))
		for c, v := range rec {
			if c >= len(header) || header[c] == "" {
				continue
			}
			cells[header[c]] = v
		}
		row := property.NewRow(i+1, cells)
		if row.Len() == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
