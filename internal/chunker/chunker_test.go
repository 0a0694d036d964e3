package chunker

import (
	"testing"

	"github.com/csvchat/csvchat/internal/table"
)

func sampleTable() *table.Table {
	return &table.Table{
		Name: "cities",
		Columns: table.Schema{
			{Name: "city", Type: table.TypeString},
			{Name: "pop", Type: table.TypeNumber},
		},
		Rows: [][]table.Value{
			{table.StringValue("Paris"), table.NumberValue(2161000)},
			{table.StringValue("Lyon"), table.NullValue(table.TypeNumber)},
		},
	}
}

func TestChunk(t *testing.T) {
	docs := Chunk(sampleTable())

	if len(docs) != 2 {
		t.Fatalf("Chunk() returned %d documents, want 2", len(docs))
	}

	if docs[0].ID != "cities:0" {
		t.Errorf("ID = %q, want %q", docs[0].ID, "cities:0")
	}
	if docs[0].Text != "city: Paris; pop: 2161000" {
		t.Errorf("Text = %q", docs[0].Text)
	}

	// null cells keep their column in the serialization
	if docs[1].Text != "city: Lyon; pop: " {
		t.Errorf("Text = %q", docs[1].Text)
	}
	if docs[1].Row != 1 {
		t.Errorf("Row = %d, want 1", docs[1].Row)
	}
}

func TestChunkDeterministic(t *testing.T) {
	a := Chunk(sampleTable())
	b := Chunk(sampleTable())

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("identical tables produced different fingerprints")
	}
}

func TestFingerprintDetectsChange(t *testing.T) {
	tbl := sampleTable()
	before := Fingerprint(Chunk(tbl))

	tbl.Rows[0][1] = table.NumberValue(2161001)
	after := Fingerprint(Chunk(tbl))

	if before == after {
		t.Error("fingerprint did not change after a cell edit")
	}
}

func TestChunkEmptyTable(t *testing.T) {
	tbl := &table.Table{Name: "empty", Columns: table.Schema{{Name: "a"}}}

	docs := Chunk(tbl)
	if len(docs) != 0 {
		t.Fatalf("Chunk() returned %d documents, want 0", len(docs))
	}
	if Fingerprint(docs) == "" {
		t.Error("empty fingerprint")
	}
}
