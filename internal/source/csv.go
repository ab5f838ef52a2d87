package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// errNoUsableRows is wrapped in a DataLoadError when every data row failed
// coercion.
var errNoUsableRows = errors.New("no row could be coerced")

// CSV reads drill runs from a delimited file with a header row.
type CSV struct {
	name      string
	open      func() (io.ReadCloser, error)
	companies CompanyTable
}

// NewCSVFile creates a CSV source backed by a file on disk.
func NewCSVFile(path string, companies CompanyTable) *CSV {
	return &CSV{
		name:      path,
		open:      func() (io.ReadCloser, error) { return os.Open(path) },
		companies: companies,
	}
}

// NewCSVReader creates a CSV source over an already-open reader. The reader
// is consumed by the first ReadRecords call.
func NewCSVReader(name string, r io.Reader, companies CompanyTable) *CSV {
	return &CSV{
		name:      name,
		open:      func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
		companies: companies,
	}
}

// Name returns the file name used in error messages.
func (c *CSV) Name() string { return c.name }

// ReadRecords parses the whole file.
func (c *CSV) ReadRecords(ctx context.Context, onSkip func(*model.FieldCoercionError)) ([]model.Record, error) {
	f, err := c.open()
	if err != nil {
		return nil, &model.DataLoadError{Source: c.name, Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, &model.DataLoadError{Source: c.name, Err: fmt.Errorf("read header: %w", err)}
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}
	if missing := missingColumns(index); len(missing) > 0 {
		return nil, &model.DataLoadError{Source: c.name, Missing: missing}
	}

	cv := coercer{companies: c.companies}
	var records []model.Record
	rows := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rows++
		if err != nil {
			if onSkip != nil {
				onSkip(&model.FieldCoercionError{Row: rows, Column: "*", Err: err})
			}
			continue
		}
		get := func(col string) (string, bool) {
			i, ok := index[col]
			if !ok || i >= len(fields) {
				return "", false
			}
			return fields[i], true
		}
		rec, cerr := cv.record(rows, get)
		if cerr != nil {
			if onSkip != nil {
				onSkip(cerr)
			}
			continue
		}
		records = append(records, rec)
	}

	if rows > 0 && len(records) == 0 {
		return nil, &model.DataLoadError{Source: c.name, Err: errNoUsableRows}
	}
	return records, nil
}
