package tabular

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const mostCommonLimit = 10

type NumericStats struct {
	Mean        *float64 `json:"mean"`
	Median      *float64 `json:"median"`
	Std         *float64 `json:"std"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
	UniqueCount int      `json:"unique_count"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type CategoricalStats struct {
	UniqueCount int          `json:"unique_count"`
	MostCommon  []ValueCount `json:"most_common"`
}

type Summary struct {
	NumericColumns     map[string]NumericStats     `json:"numeric_columns"`
	CategoricalColumns map[string]CategoricalStats `json:"categorical_columns"`
}

// Stats summarizes each column according to its declared type: int64 and
// float64 columns are numeric, everything else categorical. Missing and ""
// cells are skipped.
func Stats(f *Frame, columnTypes map[string]string) Summary {
	s := Summary{
		NumericColumns:     map[string]NumericStats{},
		CategoricalColumns: map[string]CategoricalStats{},
	}
	for j, name := range f.Columns {
		values := f.column(j)
		switch columnTypes[name] {
		case "int64", "float64":
			s.NumericColumns[name] = numericStats(values)
		default:
			s.CategoricalColumns[name] = categoricalStats(values)
		}
	}
	return s
}

func numericStats(values []any) NumericStats {
	xs := make([]float64, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case int64:
			xs = append(xs, float64(t))
		case float64:
			xs = append(xs, t)
		case string:
			if n, ok := InferCell(t).(int64); ok {
				xs = append(xs, float64(n))
			} else if f, ok := InferCell(t).(float64); ok {
				xs = append(xs, f)
			}
		}
	}

	var out NumericStats
	if len(xs) == 0 {
		return out
	}
	sort.Float64s(xs)

	unique := 1
	for i := 1; i < len(xs); i++ {
		if xs[i] != xs[i-1] {
			unique++
		}
	}
	out.UniqueCount = unique
	out.Mean = finite(stat.Mean(xs, nil))
	out.Median = finite(median(xs))
	if len(xs) > 1 {
		out.Std = finite(stat.StdDev(xs, nil))
	}
	out.Min = finite(xs[0])
	out.Max = finite(xs[len(xs)-1])
	return out
}

// median expects sorted input.
func median(xs []float64) float64 {
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func categoricalStats(values []any) CategoricalStats {
	counts := map[string]int{}
	for _, v := range values {
		if v == nil {
			continue
		}
		key := FormatCell(v)
		if key == "" {
			continue
		}
		counts[key]++
	}

	top := make([]ValueCount, 0, len(counts))
	for value, count := range counts {
		top = append(top, ValueCount{Value: value, Count: count})
	}
	sort.Slice(top, func(i, k int) bool {
		if top[i].Count != top[k].Count {
			return top[i].Count > top[k].Count
		}
		return top[i].Value < top[k].Value
	})
	if len(top) > mostCommonLimit {
		top = top[:mostCommonLimit]
	}
	return CategoricalStats{UniqueCount: len(counts), MostCommon: top}
}
