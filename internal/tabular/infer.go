package tabular

import (
	"math"
	"strconv"
	"strings"
)

// Tokens read as missing, matching the usual spreadsheet and pandas defaults.
var missingTokens = map[string]struct{}{
	"#N/A": {}, "#NA": {}, "N/A": {}, "n/a": {}, "NA": {}, "<NA>": {},
	"NULL": {}, "null": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"None": {},
}

func inferRow(record []string, width int) []any {
	row := make([]any, width)
	for j := 0; j < width && j < len(record); j++ {
		row[j] = InferCell(record[j])
	}
	return row
}

// InferCell converts raw text into nil, int64, float64, bool or string.
func InferCell(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	if _, ok := missingTokens[t]; ok {
		return nil
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	switch strings.ToLower(t) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
