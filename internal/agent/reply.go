// Package agent talks to the question-answering agent and decodes its replies.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/tabular"
)

// NamedFrame is a dataset handed to the agent under its display name.
type NamedFrame struct {
	Name  string
	Frame *tabular.Frame
}

// Agent answers a natural-language question over one or more frames.
type Agent interface {
	Chat(ctx context.Context, query string, frames []NamedFrame) (Reply, error)
}

type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
	KindChart Kind = "chart"
)

// Reply is one of TextReply, TableReply or ChartReply.
type Reply interface {
	Kind() Kind
}

type TextReply struct {
	Text string
}

type TableReply struct {
	Frame *tabular.Frame
}

// ChartReply points at a PNG the agent wrote to local disk.
type ChartReply struct {
	Path string
}

func (TextReply) Kind() Kind  { return KindText }
func (TableReply) Kind() Kind { return KindTable }
func (ChartReply) Kind() Kind { return KindChart }

var ErrMalformedReply = errors.New("malformed agent reply")

type rawReply struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// DecodeReply converts the agent wire format {"type", "value"} into a Reply.
// A bare JSON string is accepted as text, or as a chart when it names a .png.
func DecodeReply(raw []byte) (Reply, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedReply)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		return textOrChart(s), nil
	}

	var r rawReply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	switch r.Type {
	case "string":
		var s string
		if err := json.Unmarshal(r.Value, &s); err != nil {
			return nil, fmt.Errorf("%w: string value: %v", ErrMalformedReply, err)
		}
		return textOrChart(s), nil
	case "number":
		var n json.Number
		if err := json.Unmarshal(r.Value, &n); err != nil {
			return nil, fmt.Errorf("%w: number value: %v", ErrMalformedReply, err)
		}
		return TextReply{Text: n.String()}, nil
	case "dataframe":
		f, err := decodeFrame(r.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: dataframe value: %v", ErrMalformedReply, err)
		}
		return TableReply{Frame: f}, nil
	case "plot":
		var path string
		if err := json.Unmarshal(r.Value, &path); err != nil || path == "" {
			return nil, fmt.Errorf("%w: plot value must be a file path", ErrMalformedReply)
		}
		path = strings.TrimSpace(path)
		if !isPNG(path) {
			return nil, fmt.Errorf("%w: plot value must be a .png file", ErrMalformedReply)
		}
		return ChartReply{Path: path}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedReply, r.Type)
	}
}

func textOrChart(s string) Reply {
	if isPNG(strings.TrimSpace(s)) {
		return ChartReply{Path: strings.TrimSpace(s)}
	}
	return TextReply{Text: s}
}

func isPNG(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".png")
}

type splitFrame struct {
	Columns []string            `json:"columns"`
	Data    [][]json.RawMessage `json:"data"`
}

// decodeFrame accepts either {"columns": [...], "data": [[...]]} or a list of
// records. Record key order is taken from the first record.
func decodeFrame(raw json.RawMessage) (*tabular.Frame, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		return decodeRecords(raw)
	}

	var sf splitFrame
	if err := json.Unmarshal(raw, &sf); err != nil {
		return nil, err
	}
	f := &tabular.Frame{Columns: sf.Columns, Rows: make([][]any, len(sf.Data))}
	for i, cells := range sf.Data {
		row := make([]any, len(sf.Columns))
		for j := 0; j < len(cells) && j < len(row); j++ {
			row[j] = cellValue(cells[j])
		}
		f.Rows[i] = row
	}
	return f, nil
}

func decodeRecords(raw json.RawMessage) (*tabular.Frame, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	f := &tabular.Frame{}
	if len(items) == 0 {
		return f, nil
	}
	cols, err := objectKeys(items[0])
	if err != nil {
		return nil, err
	}
	f.Columns = cols
	for _, item := range items {
		var rec map[string]json.RawMessage
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, err
		}
		row := make([]any, len(cols))
		for j, c := range cols {
			if v, ok := rec[c]; ok {
				row[j] = cellValue(v)
			}
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("record is not an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func cellValue(raw json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i
			}
		}
		f, err := t.Float64()
		if err != nil {
			return s
		}
		return f
	case string, bool, nil:
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
