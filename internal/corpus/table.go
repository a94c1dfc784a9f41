package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/kotae/internal/models"
)

// readTable returns the header and data rows of a .csv file or the first sheet of a .xlsx file.
func readTable(path string) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, nil, fmt.Errorf("%w: %s: FAQ table must be .csv or .xlsx", models.ErrSourceInvalid, path)
	}
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", models.ErrSourceUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: %s: missing header row", models.ErrSourceInvalid, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", models.ErrSourceInvalid, path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", models.ErrSourceInvalid, path, err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

func readXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", models.ErrSourceInvalid, path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%w: %s: workbook has no sheets", models.ErrSourceInvalid, path)
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", models.ErrSourceInvalid, path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%w: %s: missing header row", models.ErrSourceInvalid, path)
	}
	return all[0], all[1:], nil
}

// findColumn returns the index of the header equal to name (case-insensitive, trimmed), or
// else of the first header containing name; -1 if none.
func findColumn(header []string, name string) int {
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == name {
			return i
		}
	}
	for i, h := range header {
		if strings.Contains(strings.ToLower(h), name) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
