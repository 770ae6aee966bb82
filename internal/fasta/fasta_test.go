package fasta

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	in := `>seq1 protein A # 100 # 400 # 1
MKVL
AAAA
>seq2
GGGG

>seq3 lonely header
`
	records, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{ID: "seq1", Description: "protein A # 100 # 400 # 1", Seq: "MKVLAAAA"},
		{ID: "seq2", Seq: "GGGG"},
		{ID: "seq3", Description: "lonely header"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %+v", records)
	}
}

func TestParseNoTrailingNewline(t *testing.T) {
	records, err := Parse(strings.NewReader(">a\nMK"))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Seq != "MK" {
		t.Errorf("records = %+v", records)
	}
}

func TestParseEmpty(t *testing.T) {
	records, err := Parse(strings.NewReader(""))
	if err != nil || len(records) != 0 {
		t.Errorf("records = %v, err = %v", records, err)
	}
}

func TestIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.faa")
	if err := os.WriteFile(path, []byte(">a x\nMK\n>b\nVL\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	idx, err := Index(path)
	if err != nil {
		t.Fatal(err)
	}
	if idx["a"] != "MK" || idx["b"] != "VL" {
		t.Errorf("index = %v", idx)
	}
}
