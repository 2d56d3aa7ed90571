package processor

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/papertrove/papertrove/pkg/models"
)

// CSVProcessor emits one unit per data row. Rows are the atomic unit
// for CSVs regardless of size.
type CSVProcessor struct{}

var _ Processor = (*CSVProcessor)(nil)

// NewCSVProcessor creates a CSV processor.
func NewCSVProcessor() *CSVProcessor {
	return &CSVProcessor{}
}

// FileType returns the processed file type.
func (p *CSVProcessor) FileType() models.FileType { return models.FileTypeCSV }

// SupportedTypes returns the handled MIME types.
func (p *CSVProcessor) SupportedTypes() []string {
	return []string{"text/csv", "application/csv"}
}

// SupportedExtensions returns the handled extensions.
func (p *CSVProcessor) SupportedExtensions() []string {
	return []string{"csv"}
}

// Process reads the CSV and renders each data row as
// "col1: v1 | col2: v2 | ...". The first row is treated as the header.
func (p *CSVProcessor) Process(ctx context.Context, data []byte) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // ragged rows are common in exports

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Result{Technical: map[string]string{"rows": "0"}}, nil
		}
		return nil, fmt.Errorf("read csv header: %w: %v", models.ErrProcessor, err)
	}

	result := &Result{
		Technical: map[string]string{
			"columns": strings.Join(header, ", "),
		},
	}

	var raw strings.Builder
	rowIndex := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w: %v", rowIndex, models.ErrProcessor, err)
		}

		text := renderRow(header, record)
		result.Units = append(result.Units, Unit{
			Key:  rowIndex,
			Kind: UnitRow,
			Text: text,
		})
		if raw.Len() > 0 {
			raw.WriteByte('\n')
		}
		raw.WriteString(text)
		rowIndex++
	}

	result.Technical["rows"] = strconv.Itoa(rowIndex)
	result.RawText = raw.String()
	return result, nil
}

func renderRow(header, record []string) string {
	parts := make([]string, 0, len(record))
	for i, value := range record {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = "col" + strconv.Itoa(i+1)
		}
		parts = append(parts, name+": "+strings.TrimSpace(value))
	}
	return strings.Join(parts, " | ")
}
