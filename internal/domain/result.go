package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MeasureValue is the canonical representation of one aggregated value. A
// missing or non-numeric source value yields the no-value marker, which is
// distinguishable from an actual zero and renders as JSON null. It is never
// the number zero and never NaN.
type MeasureValue struct {
	value float64
	valid bool
}

// NoValue returns the typed no-value marker.
func NoValue() MeasureValue { return MeasureValue{} }

// NumericValue wraps an actual numeric measurement.
func NumericValue(v float64) MeasureValue {
	return MeasureValue{value: v, valid: true}
}

// Valid reports whether the value carries an actual number.
func (m MeasureValue) Valid() bool { return m.valid }

// Float64 returns the numeric value and whether one is present.
func (m MeasureValue) Float64() (float64, bool) { return m.value, m.valid }

func (m MeasureValue) String() string {
	if !m.valid {
		return "no value"
	}
	return strconv.FormatFloat(m.value, 'f', -1, 64)
}

// MarshalJSON renders the no-value marker as null, everything else as a
// number.
func (m MeasureValue) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON accepts null or a number.
func (m *MeasureValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = NoValue()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = NumericValue(v)
	return nil
}

// DataPoint is one result row, keyed by declared display names.
type DataPoint struct {
	Dimensions map[string]string       `json:"dimensions"`
	Measures   map[string]MeasureValue `json:"measures"`
}

// ColumnDescriptor describes one projected column of the result.
type ColumnDescriptor struct {
	DisplayName string          `json:"displayName"`
	Field       string          `json:"field"`
	Type        DataType        `json:"type,omitempty"`
	Aggregation AggregationFunc `json:"aggregation,omitempty"`
}

// ReportMetadata carries execution facts alongside the data points.
type ReportMetadata struct {
	Dimensions       []ColumnDescriptor `json:"dimensions"`
	Measures         []ColumnDescriptor `json:"measures"`
	ExecutionTime    time.Duration      `json:"executionTime"`
	TotalCount       int64              `json:"totalCount"`
	FilteredCount    int                `json:"filteredCount"`
	CacheHit         bool               `json:"cacheHit"`
	OptimizationTier string             `json:"optimizationTier,omitempty"`
	EstimatedSpeedup string             `json:"estimatedSpeedup,omitempty"`
	Suggestions      []string           `json:"suggestions,omitempty"`
}

// AggregatedData is the result of one report execution.
type AggregatedData struct {
	ReportID uuid.UUID      `json:"reportId"`
	Points   []DataPoint    `json:"points"`
	Metadata ReportMetadata `json:"metadata"`
}
