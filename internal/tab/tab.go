// Package tab reads and writes the tab-delimited, header-bearing tables
// the pipeline stages exchange. Rows are plain string slices; callers
// resolve columns by name through the reader's header index.
package tab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// FieldCountError marks a row whose column count disagrees with the header.
// Readers surface it per row so callers can drop and count the row instead
// of aborting the batch.
type FieldCountError struct {
	Line int
	Want int
	Got  int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("line %d: %d fields, header has %d", e.Line, e.Got, e.Want)
}

// Reader streams rows from a header-bearing TSV.
type Reader struct {
	br     *bufio.Reader
	header []string
	idx    map[string]int
	line   int
}

// NewReader reads the header row and returns a Reader positioned at the
// first data row.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	line, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := strings.Split(line, "\t")
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return &Reader{br: br, header: header, idx: idx, line: 1}, nil
}

// Header returns the column names in file order.
func (r *Reader) Header() []string { return r.header }

// Col returns the index of a named column.
func (r *Reader) Col(name string) (int, bool) {
	i, ok := r.idx[name]
	return i, ok
}

// Next returns the next data row. It returns io.EOF at end of input and a
// *FieldCountError for rows with the wrong column count; the reader stays
// usable after a field-count error.
func (r *Reader) Next() ([]string, error) {
	line, err := readLine(r.br)
	if err != nil {
		return nil, err
	}
	r.line++
	fields := strings.Split(line, "\t")
	if len(fields) != len(r.header) {
		return nil, &FieldCountError{Line: r.line, Want: len(r.header), Got: len(fields)}
	}
	return fields, nil
}

// ReadChunk reads up to n rows, skipping field-count-broken rows and
// counting them in malformed. A short (or empty) chunk with a nil error
// means end of input.
func (r *Reader) ReadChunk(n int) (rows [][]string, malformed int, err error) {
	rows = make([][]string, 0, n)
	for len(rows) < n {
		row, err := r.Next()
		if err == io.EOF {
			return rows, malformed, nil
		}
		if err != nil {
			var fe *FieldCountError
			if asFieldCount(err, &fe) {
				malformed++
				continue
			}
			return rows, malformed, err
		}
		rows = append(rows, row)
	}
	return rows, malformed, nil
}

func asFieldCount(err error, target **FieldCountError) bool {
	fe, ok := err.(*FieldCountError)
	if ok {
		*target = fe
	}
	return ok
}

// readLine returns the next line without its terminator. Long lines are
// accumulated rather than truncated; annotation tables routinely exceed
// any fixed token size.
func readLine(br *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, err := br.ReadString('\n')
		sb.WriteString(chunk)
		if err == io.EOF {
			if sb.Len() == 0 {
				return "", io.EOF
			}
			return strings.TrimRight(sb.String(), "\r\n"), nil
		}
		if err != nil {
			return "", err
		}
		if strings.HasSuffix(chunk, "\n") {
			return strings.TrimRight(sb.String(), "\r\n"), nil
		}
	}
}

// Writer writes a header-bearing TSV.
type Writer struct {
	bw   *bufio.Writer
	cols int
}

// NewWriter writes the header row immediately and returns a Writer that
// enforces the header's column count on every row.
func NewWriter(w io.Writer, header []string) (*Writer, error) {
	bw := bufio.NewWriterSize(w, 1<<16)
	if _, err := bw.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return nil, err
	}
	return &Writer{bw: bw, cols: len(header)}, nil
}

// Write appends one data row.
func (w *Writer) Write(row []string) error {
	if len(row) != w.cols {
		return fmt.Errorf("row has %d fields, header has %d", len(row), w.cols)
	}
	_, err := w.bw.WriteString(strings.Join(row, "\t") + "\n")
	return err
}

// Flush drains the buffer.
func (w *Writer) Flush() error { return w.bw.Flush() }

// Table is a fully materialized TSV. Small inputs only; stages stream
// through Reader for anything sized.
type Table struct {
	Header []string
	Rows   [][]string
	idx    map[string]int
}

// NewTable builds a Table with a header index.
func NewTable(header []string, rows [][]string) *Table {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return &Table{Header: header, Rows: rows, idx: idx}
}

// Col returns the index of a named column.
func (t *Table) Col(name string) (int, bool) {
	i, ok := t.idx[name]
	return i, ok
}

// Get returns row's value in the named column, or "" if the column is
// unknown.
func (t *Table) Get(row []string, name string) string {
	i, ok := t.idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// ReadFile materializes a whole TSV, dropping and counting malformed rows.
func ReadFile(path string) (*Table, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	var rows [][]string
	malformed := 0
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			var fe *FieldCountError
			if asFieldCount(err, &fe) {
				malformed++
				continue
			}
			return nil, malformed, fmt.Errorf("%s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return NewTable(r.Header(), rows), malformed, nil
}

// WriteFile writes a Table to path via a temp file and rename so partial
// output is never observable under the final name.
func WriteFile(path string, t *Table) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w, err := NewWriter(f, t.Header)
	if err != nil {
		f.Close()
		return err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
