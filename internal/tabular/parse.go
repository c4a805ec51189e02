package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoColumns         = errors.New("no columns to parse from file")
	ErrUndecodable       = errors.New("could not decode file with any supported encoding")
)

// ParseOptions bounds a parse. MaxRows of zero reads every row.
type ParseOptions struct {
	MaxRows int
}

// Extension returns the lowercased extension without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Parse reads a CSV, XLSX or XLS payload. It returns the frame and the name
// of the text encoding used ("binary" for Excel formats).
func Parse(filename string, data []byte, opts ParseOptions) (*Frame, string, error) {
	switch Extension(filename) {
	case "csv":
		return parseCSV(data, opts)
	case "xlsx":
		f, err := parseXLSX(data, opts)
		return f, "binary", err
	case "xls":
		f, err := parseXLS(data, opts)
		return f, "binary", err
	default:
		return nil, "", ErrUnsupportedFormat
	}
}

type textEncoding struct {
	name string
	enc  encoding.Encoding
}

// Tried in order. A nil encoding means UTF-8, which is checked for validity
// rather than transcoded.
var csvEncodings = []textEncoding{
	{"utf-8", nil},
	{"latin-1", charmap.ISO8859_1},
	{"iso-8859-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
	{"utf-16", unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)},
}

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

func parseCSV(data []byte, opts ParseOptions) (*Frame, string, error) {
	if bytes.HasPrefix(data, utf16LEBOM) || bytes.HasPrefix(data, utf16BEBOM) {
		text, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
		f, err := readCSV(text, opts)
		return f, "utf-16", err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var lastErr error
	for _, e := range csvEncodings {
		text, err := decodeText(data, e.enc)
		if err != nil {
			lastErr = err
			continue
		}
		f, err := readCSV(text, opts)
		if err != nil {
			if errors.Is(err, ErrNoColumns) {
				return nil, e.name, err
			}
			lastErr = err
			continue
		}
		return f, e.name, nil
	}
	if lastErr == nil {
		lastErr = ErrUndecodable
	}
	return nil, "", lastErr
}

func decodeText(data []byte, enc encoding.Encoding) ([]byte, error) {
	if enc == nil {
		if !utf8.Valid(data) {
			return nil, ErrUndecodable
		}
		return data, nil
	}
	return enc.NewDecoder().Bytes(data)
}

func readCSV(text []byte, opts ParseOptions) (*Frame, error) {
	r := csv.NewReader(bytes.NewReader(text))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	f := &Frame{Columns: header}
	for opts.MaxRows == 0 || len(f.Rows) < opts.MaxRows {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(f.Rows)+1, err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", len(f.Rows)+1, len(record), len(header))
		}
		f.Rows = append(f.Rows, inferRow(record, len(header)))
	}
	return f, nil
}

func parseXLSX(data []byte, opts ParseOptions) (*Frame, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoColumns
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return frameFromGrid(rows, opts)
}

func parseXLS(data []byte, opts ParseOptions) (f *Frame, err error) {
	// The BIFF reader panics on some malformed workbooks.
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("reading workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoColumns
	}

	var grid [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		grid = append(grid, cells)
	}
	return frameFromGrid(trimTrailingEmpty(grid), opts)
}

// frameFromGrid treats the first row as the header. Data rows wider than the
// header widen it with blank names.
func frameFromGrid(grid [][]string, opts ParseOptions) (*Frame, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, ErrNoColumns
	}
	body := grid[1:]
	if opts.MaxRows > 0 && len(body) > opts.MaxRows {
		body = body[:opts.MaxRows]
	}

	header := append([]string(nil), grid[0]...)
	for _, row := range body {
		for len(header) < len(row) {
			header = append(header, "")
		}
	}

	f := &Frame{Columns: header, Rows: make([][]any, 0, len(body))}
	for _, row := range body {
		f.Rows = append(f.Rows, inferRow(row, len(header)))
	}
	return f, nil
}

func trimTrailingEmpty(grid [][]string) [][]string {
	for len(grid) > 0 && isBlankRow(grid[len(grid)-1]) {
		grid = grid[:len(grid)-1]
	}
	return grid
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
