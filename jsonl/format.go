// Package jsonl stores exported blocks one JSON object per line.
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/luxfi/opdb"
)

// maxLineSize bounds a single encoded block. Bodies of busy blocks run
// well past bufio's 64KiB default.
const maxLineSize = 100 * 1024 * 1024

// Writer appends blocks to a JSONL file. It is the exporter's sink and is
// not safe for concurrent use.
type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	enc     *json.Encoder
	written uint64
}

var _ opdb.Importer = (*Writer)(nil)

// NewWriter truncates or creates the file at path.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	buf := bufio.NewWriter(file)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{file: file, buf: buf, enc: enc}, nil
}

// WriteBlock encodes block as the next line.
func (w *Writer) WriteBlock(block *opdb.BlockData) error {
	if err := w.enc.Encode(block); err != nil {
		return fmt.Errorf("failed to encode block %d: %w", block.Number, err)
	}
	w.written++
	return nil
}

// ImportBlocks writes the batch in the order given.
func (w *Writer) ImportBlocks(blocks []*opdb.BlockData) error {
	for _, block := range blocks {
		if err := w.WriteBlock(block); err != nil {
			return err
		}
	}
	return nil
}

// Written reports how many blocks have been encoded so far.
func (w *Writer) Written() uint64 { return w.written }

func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", w.file.Name(), err)
	}
	return nil
}

// Close flushes pending lines and closes the file.
func (w *Writer) Close() error {
	return errors.Join(w.Flush(), w.file.Close())
}

// Reader iterates the blocks of a JSONL file. Blank lines are skipped.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{file: file, scanner: scanner}, nil
}

// ReadBlock returns the next block, or io.EOF once the file is exhausted.
func (r *Reader) ReadBlock() (*opdb.BlockData, error) {
	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		block := new(opdb.BlockData)
		if err := json.Unmarshal(text, block); err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		return block, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

// ReadAllBlocks drains the remaining blocks.
func (r *Reader) ReadAllBlocks() ([]*opdb.BlockData, error) {
	var blocks []*opdb.BlockData
	for {
		block, err := r.ReadBlock()
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
}

func (r *Reader) Close() error {
	return r.file.Close()
}
