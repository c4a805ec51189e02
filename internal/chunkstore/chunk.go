package chunkstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/tabular"
)

const (
	MinChunkRows = 100
	MaxChunkRows = 10000

	// DefaultTargetBytes leaves headroom below DefaultMaxDocumentBytes.
	DefaultTargetBytes      = 10 * 1024 * 1024
	DefaultMaxDocumentBytes = 16 * 1024 * 1024
)

// ChunkKey is the document id of a chunk.
func ChunkKey(datasetID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", datasetID, index)
}

// SelectChunkSize picks rows per chunk so an average chunk stays near
// targetBytes, clamped to [MinChunkRows, MaxChunkRows].
func SelectChunkSize(totalBytes int64, rows int, targetBytes int64) int {
	if rows <= 0 || totalBytes <= 0 {
		return MaxChunkRows
	}
	avg := float64(totalBytes) / float64(rows)
	size := int(math.Floor(float64(targetBytes) / avg))
	if size < MinChunkRows {
		return MinChunkRows
	}
	if size > MaxChunkRows {
		return MaxChunkRows
	}
	return size
}

// Partition splits records into contiguous chunks of size rows. Only the last
// chunk may be shorter.
func Partition(records []tabular.Record, size int) [][]tabular.Record {
	if size <= 0 {
		size = MaxChunkRows
	}
	parts := make([][]tabular.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		parts = append(parts, records[start:end])
	}
	return parts
}

// EstimateSize is the byte length of records serialized as one JSON array.
func EstimateSize(records []tabular.Record) int64 {
	if len(records) == 0 {
		return 2
	}
	total := int64(2 + len(records) - 1)
	for _, rec := range records {
		b, err := json.Marshal(wireRecord(rec))
		if err != nil {
			continue
		}
		total += int64(len(b))
	}
	return total
}

// encodeRows serializes a chunk. Floats are written in positional notation
// with a decimal point so decodeRows can tell them apart from integers. jsonb
// keeps the scale of 1000000.0 but rewrites 1e+06 as 1000000.
func encodeRows(records []tabular.Record) ([]byte, error) {
	wire := make([]map[string]any, len(records))
	for i, rec := range records {
		wire[i] = wireRecord(rec)
	}
	return json.Marshal(wire)
}

func wireRecord(rec tabular.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if f, ok := v.(float64); ok {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				out[k] = ""
				continue
			}
			s := strconv.FormatFloat(f, 'f', -1, 64)
			if !strings.Contains(s, ".") {
				s += ".0"
			}
			out[k] = json.Number(s)
			continue
		}
		out[k] = v
	}
	return out
}

func decodeRows(data []byte) ([]tabular.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]tabular.Record, len(raw))
	for i, m := range raw {
		rec := make(tabular.Record, len(m))
		for k, v := range m {
			if n, ok := v.(json.Number); ok {
				rec[k] = numberValue(n)
				continue
			}
			if v == nil {
				v = ""
			}
			rec[k] = v
		}
		out[i] = rec
	}
	return out, nil
}

func numberValue(n json.Number) any {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return s
}

// EncodeRecords writes rows in the chunk wire format. Other documents that
// embed rows, such as dataset previews, use it so numeric types survive a
// round trip.
func EncodeRecords(records []tabular.Record) ([]byte, error) {
	return encodeRows(records)
}

func DecodeRecords(data []byte) ([]tabular.Record, error) {
	return decodeRows(data)
}
