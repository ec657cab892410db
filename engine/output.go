package engine

import (
	"fmt"
	"strconv"
)

// DefaultMetricName is the column name used for anonymous scalar outputs
// produced via Single.
const DefaultMetricName = "value"

// Metric is one named value of an aggregation output. Values has a fixed
// arity for the whole run: 1 for a scalar metric, m for a vector metric
// that expands into m table columns ("name.0" .. "name.m-1").
type Metric struct {
	Name   string
	Values []float64
}

// Output is the ordered collection of metrics produced by one aggregation
// call. The first successful call of a run fixes the schema (names and
// arities, in order); every later call must match it exactly.
type Output []Metric

// Single wraps a bare scalar under the default metric name.
func Single(v float64) Output {
	return Output{{Name: DefaultMetricName, Values: []float64{v}}}
}

// Scalar creates a named scalar metric.
func Scalar(name string, v float64) Metric {
	return Metric{Name: name, Values: []float64{v}}
}

// Vector creates a named fixed-arity metric.
func Vector(name string, values ...float64) Metric {
	return Metric{Name: name, Values: values}
}

// schema captures the metric names and arities fixed by the first
// successful aggregation call.
type schema struct {
	names   []string
	arities []int
	width   int // total row width (sum of arities)
}

func newSchema(out Output) (*schema, error) {
	if len(out) == 0 {
		return nil, fmt.Errorf("output contains no metrics")
	}
	s := &schema{
		names:   make([]string, len(out)),
		arities: make([]int, len(out)),
	}
	seen := make(map[string]struct{}, len(out))
	for i, m := range out {
		if m.Name == "" {
			return nil, fmt.Errorf("metric %d has an empty name", i)
		}
		if len(m.Values) == 0 {
			return nil, fmt.Errorf("metric %q has no values", m.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("duplicate metric name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		s.names[i] = m.Name
		s.arities[i] = len(m.Values)
		s.width += len(m.Values)
	}
	return s, nil
}

// check verifies that out matches the schema: same metric names in the
// same order, each with the same arity. Mismatches are never coerced or
// padded.
func (s *schema) check(out Output) error {
	if len(out) != len(s.names) {
		return fmt.Errorf("output has %d metrics, schema has %d", len(out), len(s.names))
	}
	for i, m := range out {
		if m.Name != s.names[i] {
			return fmt.Errorf("metric %d is %q, schema expects %q", i, m.Name, s.names[i])
		}
		if len(m.Values) != s.arities[i] {
			return fmt.Errorf("metric %q has arity %d, schema expects %d", m.Name, len(m.Values), s.arities[i])
		}
	}
	return nil
}

// flatten writes the output's values into row, which must have length
// schema.width. Callers run check first.
func (s *schema) flatten(out Output, row []float64) {
	pos := 0
	for _, m := range out {
		pos += copy(row[pos:], m.Values)
	}
}

// columnNames expands the schema into flat table column names. Scalar
// metrics keep their name; vector metrics get ".<i>" suffixes.
func (s *schema) columnNames() []string {
	cols := make([]string, 0, s.width)
	for i, name := range s.names {
		if s.arities[i] == 1 {
			cols = append(cols, name)
			continue
		}
		for j := 0; j < s.arities[i]; j++ {
			cols = append(cols, name+"."+strconv.Itoa(j))
		}
	}
	return cols
}
