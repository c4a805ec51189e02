// Package tabular holds the in-memory table representation shared by the
// validator, the chunk store and the query delegate, plus CSV/Excel parsing
// and descriptive statistics.
package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
)

// Record is one row keyed by column name.
type Record map[string]any

// Frame is a table in column order. A nil cell is a missing value.
type Frame struct {
	Columns []string
	Rows    [][]any
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

func (f *Frame) Width() int {
	if f == nil {
		return 0
	}
	return len(f.Columns)
}

// Head returns a frame sharing the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	return &Frame{Columns: f.Columns, Rows: f.Rows[:n]}
}

// Records converts rows to records with missing values normalized to "".
func (f *Frame) Records() []Record {
	out := make([]Record, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = f.record(row)
	}
	return out
}

// Preview returns the first n rows as records.
func (f *Frame) Preview(n int) []Record {
	return f.Head(n).Records()
}

func (f *Frame) record(row []any) Record {
	rec := make(Record, len(f.Columns))
	for j, name := range f.Columns {
		var v any
		if j < len(row) {
			v = row[j]
		}
		if v == nil {
			v = ""
		}
		rec[name] = v
	}
	return rec
}

// FromRecords builds a frame in the given column order. Keys absent from a
// record become "".
func FromRecords(columns []string, records []Record) *Frame {
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, name := range columns {
			v, ok := rec[name]
			if !ok || v == nil {
				v = ""
			}
			row[j] = v
		}
		rows[i] = row
	}
	return &Frame{Columns: append([]string(nil), columns...), Rows: rows}
}

// RenameColumns applies names positionally. When the counts differ only the
// overlapping prefix is renamed and the remaining source names are kept. It
// returns the number of columns renamed.
func (f *Frame) RenameColumns(names []string) int {
	n := len(names)
	if n > len(f.Columns) {
		n = len(f.Columns)
	}
	cols := append([]string(nil), f.Columns...)
	copy(cols, names[:n])
	f.Columns = cols
	return n
}

// ColumnTypes reports a pandas-style dtype name per column.
func (f *Frame) ColumnTypes() map[string]string {
	out := make(map[string]string, len(f.Columns))
	for j, name := range f.Columns {
		out[name] = columnType(f.column(j))
	}
	return out
}

// MissingCounts reports the number of missing cells per column.
func (f *Frame) MissingCounts() map[string]int {
	out := make(map[string]int, len(f.Columns))
	for j, name := range f.Columns {
		n := 0
		for _, v := range f.column(j) {
			if v == nil {
				n++
			}
		}
		out[name] = n
	}
	return out
}

func (f *Frame) column(j int) []any {
	out := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		if j < len(row) {
			out[i] = row[j]
		}
	}
	return out
}

func columnType(values []any) string {
	var ints, floats, bools, others, missing int
	for _, v := range values {
		switch v.(type) {
		case nil:
			missing++
		case int64:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		default:
			others++
		}
	}
	switch {
	case others > 0:
		return "object"
	case bools > 0 && (ints > 0 || floats > 0 || missing > 0):
		return "object"
	case bools > 0:
		return "bool"
	case floats > 0 || missing > 0:
		return "float64"
	case ints > 0:
		return "int64"
	default:
		return "object"
	}
}

// WriteCSV writes the header and every row.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns); err != nil {
		return err
	}
	record := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for j := range record {
			var v any
			if j < len(row) {
				v = row[j]
			}
			record[j] = FormatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVSize is the byte length of the CSV rendering.
func (f *Frame) CSVSize() int64 {
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		return 0
	}
	return int64(buf.Len())
}

// FormatCell renders a cell the way it is written to CSV.
func FormatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
