// Package batch loads the question table from a CSV or XLSX file and writes
// the outcomes back into a single output column.
package batch

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/askbatch/internal/chat"
)

// Table is a header row plus data rows. Rows may be ragged: a short row
// behaves as if the missing cells were empty.
type Table struct {
	Header []string
	Rows   [][]string

	// written holds the column indices changed by Apply since load.
	written map[int]struct{}
}

// Cell returns the value at row, col or "" when the cell does not exist.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// ColumnIndex returns the index of the column named name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Questions returns one Question per row whose cell in column is non-blank,
// numbered 1..n in row order. Blank or missing cells are skipped.
func (t *Table) Questions(column int) ([]chat.Question, error) {
	if column < 0 {
		return nil, fmt.Errorf("question column %d is negative", column)
	}
	if len(t.Header) > 0 && column >= len(t.Header) {
		return nil, fmt.Errorf("question column %d is out of range: table has %d columns", column, len(t.Header))
	}

	var qs []chat.Question
	for row := range t.Rows {
		text := strings.TrimSpace(t.Cell(row, column))
		if text == "" {
			continue
		}
		qs = append(qs, chat.Question{Index: len(qs) + 1, Row: row, Text: text})
	}
	return qs, nil
}

// Apply writes outcomes[i] into the row of questions[i] under the column
// named header, appending that column if it does not exist. Rows without an
// outcome keep their current value.
func (t *Table) Apply(header string, questions []chat.Question, outcomes []chat.Outcome) error {
	if len(outcomes) > len(questions) {
		return fmt.Errorf("%d outcomes for %d questions", len(outcomes), len(questions))
	}

	col := t.ColumnIndex(header)
	if col < 0 {
		col = len(t.Header)
		t.Header = append(t.Header, header)
	}

	for i, o := range outcomes {
		row := questions[i].Row
		if row < 0 || row >= len(t.Rows) {
			return fmt.Errorf("question %d refers to row %d outside the table", questions[i].Index, row)
		}
		for len(t.Rows[row]) <= col {
			t.Rows[row] = append(t.Rows[row], "")
		}
		t.Rows[row][col] = o.String()
	}

	if t.written == nil {
		t.written = make(map[int]struct{})
	}
	t.written[col] = struct{}{}
	return nil
}

// Written returns the indices of the columns changed by Apply.
func (t *Table) Written() []int {
	cols := make([]int, 0, len(t.written))
	for c := range t.written {
		cols = append(cols, c)
	}
	return cols
}

// width is the number of columns a rectangular rendering needs.
func (t *Table) width() int {
	w := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}
