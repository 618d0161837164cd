package jsonl

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/opdb"
)

func TestWriteReadBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.jsonl")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	blocks := []*opdb.BlockData{
		{Number: 0, Hash: common.HexToHash("0x01"), TxCount: 0, Header: opdb.HexBytes{0xc0}},
		{Number: 1, Hash: common.HexToHash("0x02"), ParentHash: common.HexToHash("0x01"), TxCount: 2, Receipts: opdb.HexBytes{0xc0}},
	}
	if err := w.ImportBlocks(blocks); err != nil {
		t.Fatalf("ImportBlocks failed: %v", err)
	}
	if w.Written() != 2 {
		t.Errorf("Written = %d, want 2", w.Written())
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(raw), "\n"); lines != 2 {
		t.Errorf("wrote %d lines, want 2", lines)
	}
	if !strings.Contains(string(raw), `"height":1`) {
		t.Errorf("missing height key: %s", raw)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	got, err := r.ReadAllBlocks()
	if err != nil {
		t.Fatalf("ReadAllBlocks failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d blocks, want 2", len(got))
	}
	for i := range blocks {
		if got[i].Number != blocks[i].Number || got[i].Hash != blocks[i].Hash || got[i].TxCount != blocks[i].TxCount {
			t.Errorf("block %d mismatch: got %+v, want %+v", i, got[i], blocks[i])
		}
	}
	if string(got[0].Header) != string(blocks[0].Header) || string(got[1].Receipts) != string(blocks[1].Receipts) {
		t.Error("RLP payloads did not round trip")
	}

	if _, err := r.ReadBlock(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReadMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	content := `{"height":7}` + "\n\n{not json}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	block, err := r.ReadBlock()
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if block.Number != 7 {
		t.Errorf("Number = %d, want 7", block.Number)
	}

	_, err = r.ReadBlock()
	if err == nil || err == io.EOF {
		t.Fatalf("expected unmarshal error, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error %q does not name line 3", err)
	}
}

func TestWriteBlockSingleLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.jsonl")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.WriteBlock(&opdb.BlockData{Number: 3}); err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(raw), "}\n") || strings.Count(string(raw), "\n") != 1 {
		t.Errorf("expected a single newline-terminated object, got %q", raw)
	}
}

func TestNewReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}
