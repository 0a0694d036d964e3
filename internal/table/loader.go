package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const inferenceSampleSize = 100

// datetimeLayouts are tried in order during type inference and parsing
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02.01.2006",
}

// LoadCSV reads a delimited text file into a Table. Column types are
// inferred from a sample of values; rows with the wrong field count are
// reported as RowErrors and excluded, cells that fail to parse under the
// inferred column type become null and are reported as well.
func LoadCSV(path string) (*Table, []RowError, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the CLI user
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Read(f, name)
}

// Read parses CSV data from a reader into a named Table
func Read(r io.Reader, name string) (*Table, []RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // arity checked manually so bad rows can be reported

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) == 0 {
		return nil, nil, fmt.Errorf("empty header row")
	}

	var records [][]string
	var rowErrors []RowError

	line := 1 // header was line 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		if len(record) != len(header) {
			rowErrors = append(rowErrors, RowError{
				Line:   line,
				Reason: fmt.Sprintf("expected %d fields, got %d", len(header), len(record)),
			})
			continue
		}
		records = append(records, record)
	}

	columns := inferSchema(header, records)

	rows := make([][]Value, 0, len(records))
	for i, record := range records {
		row := make([]Value, len(columns))
		for j, raw := range record {
			value, ok := parseValue(raw, columns[j].Type)
			if !ok {
				rowErrors = append(rowErrors, RowError{
					Line:   i + 2,
					Reason: fmt.Sprintf("column %q: cannot parse %q as %s", columns[j].Name, raw, columns[j].Type),
				})
				value = NullValue(columns[j].Type)
			}
			row[j] = value
		}
		rows = append(rows, row)
	}

	return &Table{Name: name, Columns: columns, Rows: rows}, rowErrors, nil
}

// inferSchema picks a type per column from a sample of records. A column
// only gets a non-string type when every sampled non-empty value parses.
func inferSchema(header []string, records [][]string) Schema {
	columns := make(Schema, len(header))

	sample := records
	if len(sample) > inferenceSampleSize {
		sample = sample[:inferenceSampleSize]
	}

	for j, name := range header {
		columns[j] = Column{
			Name: strings.TrimSpace(name),
			Type: inferColumnType(sample, j),
		}
	}

	return columns
}

func inferColumnType(sample [][]string, col int) Type {
	isNumber := true
	isBoolean := true
	isDatetime := true
	seen := false

	for _, record := range sample {
		raw := strings.TrimSpace(record[col])
		if raw == "" {
			continue
		}
		seen = true

		if isNumber {
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				isNumber = false
			}
		}
		if isBoolean {
			if _, err := strconv.ParseBool(raw); err != nil {
				isBoolean = false
			}
		}
		if isDatetime && !parsesAsDatetime(raw) {
			isDatetime = false
		}
	}

	if !seen {
		return TypeString
	}

	// Boolean wins over number so "0"/"1"-only columns stay numeric
	switch {
	case isBoolean && !isNumber:
		return TypeBoolean
	case isNumber:
		return TypeNumber
	case isDatetime:
		return TypeDatetime
	default:
		return TypeString
	}
}

func parsesAsDatetime(raw string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, raw); err == nil {
			return true
		}
	}
	return false
}

// parseValue converts a raw cell into a typed Value. Empty cells are null.
func parseValue(raw string, t Type) (Value, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NullValue(t), true
	}

	switch t {
	case TypeString:
		return StringValue(raw), true
	case TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, false
		}
		return NumberValue(f), true
	case TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, false
		}
		return BooleanValue(b), true
	case TypeDatetime:
		return ParseDatetime(raw)
	}

	return Value{}, false
}

// ParseDatetime parses a datetime literal using the supported layouts
func ParseDatetime(raw string) (Value, bool) {
	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return DatetimeValue(ts), true
		}
	}
	return Value{}, false
}
