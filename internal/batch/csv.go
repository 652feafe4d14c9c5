package batch

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvStore keeps the table in a comma separated file whose first record is
// the header. A leading UTF-8 byte order mark is preserved.
type csvStore struct {
	path string
	bom  bool
}

func (s *csvStore) Path() string { return s.path }

func (s *csvStore) Load() (*Table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv table: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		s.bom = true
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv table %s: %w", s.path, err)
	}

	t := &Table{}
	if len(records) > 0 {
		t.Header, t.Rows = records[0], records[1:]
	}
	return t, nil
}

// Save writes the whole table to a temporary file and renames it over the
// original so that an interrupted save never truncates the data.
func (s *csvStore) Save(t *Table) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".askbatch-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temporary csv: %w", err)
	}
	defer os.Remove(tmp.Name())

	if info, err := os.Stat(s.path); err == nil {
		_ = tmp.Chmod(info.Mode().Perm())
	}
	if err := s.write(tmp, t); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace csv table: %w", err)
	}
	return nil
}

func (s *csvStore) write(w io.Writer, t *Table) error {
	if s.bom {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
	}

	width := t.width()
	cw := csv.NewWriter(w)
	if err := cw.Write(pad(t.Header, width)); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(pad(row, width)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// pad extends row with empty cells up to width without touching the input.
func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
