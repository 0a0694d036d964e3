package table

import (
	"strings"
	"testing"
)

const citiesCSV = `city,pop,capital,founded
Paris,2161000,true,0052-01-01
Lyon,513000,false,0043-01-01
Marseille,861000,false,0600-01-01
`

func TestReadInfersSchema(t *testing.T) {
	tbl, rowErrs, err := Read(strings.NewReader(citiesCSV), "cities")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("Read() row errors = %v, want none", rowErrs)
	}

	want := Schema{
		{Name: "city", Type: TypeString},
		{Name: "pop", Type: TypeNumber},
		{Name: "capital", Type: TypeBoolean},
		{Name: "founded", Type: TypeDatetime},
	}

	if len(tbl.Columns) != len(want) {
		t.Fatalf("columns = %d, want %d", len(tbl.Columns), len(want))
	}
	for i, col := range want {
		if tbl.Columns[i] != col {
			t.Errorf("column %d = %+v, want %+v", i, tbl.Columns[i], col)
		}
	}
	if tbl.NumRows() != 3 {
		t.Errorf("NumRows() = %d, want 3", tbl.NumRows())
	}
}

func TestReadArityMismatch(t *testing.T) {
	data := "a,b\n1,2\n3\n4,5,6\n7,8\n"

	tbl, rowErrs, err := Read(strings.NewReader(data), "t")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if tbl.NumRows() != 2 {
		t.Errorf("NumRows() = %d, want 2", tbl.NumRows())
	}
	if len(rowErrs) != 2 {
		t.Fatalf("row errors = %d, want 2", len(rowErrs))
	}
	if rowErrs[0].Line != 3 {
		t.Errorf("first error line = %d, want 3", rowErrs[0].Line)
	}
	if rowErrs[1].Line != 4 {
		t.Errorf("second error line = %d, want 4", rowErrs[1].Line)
	}
}

func TestReadBadCellPastSample(t *testing.T) {
	// enough numeric rows that the column stays numeric, with one bad
	// value past the inference sample
	var b strings.Builder
	b.WriteString("n\n")
	for i := 0; i < inferenceSampleSize; i++ {
		b.WriteString("1\n")
	}
	b.WriteString("oops\n")

	tbl, rowErrs, err := Read(strings.NewReader(b.String()), "t")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if tbl.Columns[0].Type != TypeNumber {
		t.Fatalf("column type = %v, want number", tbl.Columns[0].Type)
	}

	last := tbl.Rows[tbl.NumRows()-1][0]
	if !last.Null {
		t.Errorf("unparseable cell = %+v, want null", last)
	}
	if len(rowErrs) != 1 {
		t.Errorf("row errors = %d, want 1", len(rowErrs))
	}
}

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   Type
	}{
		{"integers", []string{"1", "2", "3"}, TypeNumber},
		{"floats", []string{"1.5", "-2", "3e4"}, TypeNumber},
		{"zero one stays numeric", []string{"0", "1", "0"}, TypeNumber},
		{"booleans", []string{"true", "false", "TRUE"}, TypeBoolean},
		{"dates", []string{"2024-01-02", "2023-11-30"}, TypeDatetime},
		{"mixed falls back to string", []string{"1", "x"}, TypeString},
		{"empty column", []string{"", ""}, TypeString},
		{"empty cells ignored", []string{"1", "", "2"}, TypeNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := make([][]string, len(tt.values))
			for i, v := range tt.values {
				sample[i] = []string{v}
			}
			if got := inferColumnType(sample, 0); got != tt.want {
				t.Errorf("inferColumnType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueCompare(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Value
		want    int
		wantErr bool
	}{
		{"equal strings", StringValue("a"), StringValue("a"), 0, false},
		{"string order", StringValue("a"), StringValue("b"), -1, false},
		{"number order", NumberValue(2), NumberValue(1), 1, false},
		{"bool order", BooleanValue(false), BooleanValue(true), -1, false},
		{"null sorts first", NullValue(TypeNumber), NumberValue(0), -1, false},
		{"type mismatch", StringValue("a"), NumberValue(1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Compare(tt.b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compare() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}
}
