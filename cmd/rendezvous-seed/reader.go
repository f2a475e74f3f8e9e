package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
)

const readBufferRows = 1000

// parquetReader streams seed rows from the parquet files of a directory in name order.
type parquetReader struct {
	files []string
}

// newParquetReader scans dir for parquet files.
func newParquetReader(dir string) (*parquetReader, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("glob parquet files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no parquet files found in %s", dir)
	}
	sort.Strings(files)
	return &parquetReader{files: files}, nil
}

// readCallback receives each row with its file index and its row offset within the file.
// Returning false stops the read.
type readCallback func(row *profileRow, fileIndex, rowOffset int) bool

// Read streams rows starting at fileIndex/rowOffset. maxRows=0 reads everything.
func (r *parquetReader) Read(fileIndex, rowOffset, maxRows int, cb readCallback) error {
	remaining := maxRows
	for fi := fileIndex; fi < len(r.files); fi++ {
		skip := 0
		if fi == fileIndex {
			skip = rowOffset
		}

		n, stopped, err := r.readFile(fi, skip, remaining, cb)
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(r.files[fi]), err)
		}
		if stopped {
			return nil
		}
		if maxRows > 0 {
			remaining -= n
			if remaining <= 0 {
				return nil
			}
		}
	}
	return nil
}

func (r *parquetReader) readFile(fi, skip, maxRows int, cb readCallback) (read int, stopped bool, err error) {
	f, err := os.Open(filepath.Clean(r.files[fi]))
	if err != nil {
		return 0, false, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	pr := parquet.NewGenericReader[profileRow](f)
	defer func() { _ = pr.Close() }()

	if skip > 0 {
		if int64(skip) >= pr.NumRows() {
			return 0, false, nil
		}
		if err := pr.SeekToRow(int64(skip)); err != nil {
			return 0, false, fmt.Errorf("seek to row %d: %w", skip, err)
		}
	}

	buf := make([]profileRow, readBufferRows)
	offset := skip
	for {
		n, readErr := pr.Read(buf)
		for i := 0; i < n; i++ {
			if !cb(&buf[i], fi, offset) {
				return read, true, nil
			}
			offset++
			read++
			if maxRows > 0 && read >= maxRows {
				return read, true, nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return read, false, nil
			}
			return read, false, fmt.Errorf("read rows: %w", readErr)
		}
	}
}
