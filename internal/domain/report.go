package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AggregationFunc enumerates the closed set of measure aggregations.
type AggregationFunc string

const (
	AggSum    AggregationFunc = "sum"
	AggAvg    AggregationFunc = "avg"
	AggCount  AggregationFunc = "count"
	AggMin    AggregationFunc = "min"
	AggMax    AggregationFunc = "max"
	AggMedian AggregationFunc = "median"
	AggStdDev AggregationFunc = "stddev"
)

// Known reports whether the aggregation belongs to the closed set.
func (a AggregationFunc) Known() bool {
	switch a {
	case AggSum, AggAvg, AggCount, AggMin, AggMax, AggMedian, AggStdDev:
		return true
	}
	return false
}

// DataType classifies a dimension column.
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeDate    DataType = "date"
	TypeBoolean DataType = "boolean"
)

// TimeGranularity buckets a date dimension. Empty means no bucketing.
type TimeGranularity string

const (
	GranularityDay     TimeGranularity = "day"
	GranularityWeek    TimeGranularity = "week"
	GranularityMonth   TimeGranularity = "month"
	GranularityQuarter TimeGranularity = "quarter"
	GranularityYear    TimeGranularity = "year"
)

// Known reports whether the granularity belongs to the closed set.
func (g TimeGranularity) Known() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter, GranularityYear:
		return true
	}
	return false
}

// DataSource is a logical table reference. The partition optimizer may point
// an execution-local copy at a partition-optimized physical table; the
// caller's configuration is never mutated.
type DataSource struct {
	ID          string   `json:"id"`
	Table       string   `json:"table"`
	Alias       string   `json:"alias,omitempty"`
	BaseFilters []Filter `json:"baseFilters,omitempty"`
}

// Bucket is one custom numeric bucketing rule for a dimension: values in
// [Lower, Upper) map to Label.
type Bucket struct {
	Label string  `json:"label"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Dimension is a grouping column. Dimensions define the GROUP BY set and the
// row identity of the result.
type Dimension struct {
	DataSource  string          `json:"dataSource"`
	Field       string          `json:"field"`
	DisplayName string          `json:"displayName"`
	Type        DataType        `json:"type,omitempty"`
	Granularity TimeGranularity `json:"granularity,omitempty"`
	Values      []string        `json:"values,omitempty"`
	Buckets     []Bucket        `json:"buckets,omitempty"`
}

// Measure is an aggregated column. Count ignores the field.
type Measure struct {
	DataSource  string          `json:"dataSource"`
	Field       string          `json:"field"`
	DisplayName string          `json:"displayName"`
	Aggregation AggregationFunc `json:"aggregation"`
	Formula     string          `json:"formula,omitempty"`
}

// SortDirection orders a sorted column.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec orders the result by a projected column, addressed by display name.
type SortSpec struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction,omitempty"`
}

// ReportConfiguration is the declarative description of one report. The
// engine treats it as immutable input for a single execution.
type ReportConfiguration struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name,omitempty"`
	DataSources []DataSource  `json:"dataSources"`
	Dimensions  []Dimension   `json:"dimensions"`
	Measures    []Measure     `json:"measures"`
	Filters     []Filter      `json:"filters,omitempty"`
	Sort        []SortSpec    `json:"sort,omitempty"`
	Limit       int           `json:"limit,omitempty"`
	Offset      int           `json:"offset,omitempty"`
	CacheTTL    time.Duration `json:"cacheTtl,omitempty"`
}

// Validate checks the cross-references and closed sets the builder depends
// on. It fails fast so no plan is produced from a malformed configuration.
func (c ReportConfiguration) Validate() error {
	if len(c.DataSources) == 0 {
		return Configurationf("report declares no data sources")
	}

	sources := make(map[string]DataSource, len(c.DataSources))
	for _, ds := range c.DataSources {
		if ds.ID == "" || ds.Table == "" {
			return Configurationf("data source needs both an id and a table")
		}
		if _, dup := sources[ds.ID]; dup {
			return Configurationf("duplicate data source id %q", ds.ID)
		}
		sources[ds.ID] = ds
		for _, f := range ds.BaseFilters {
			if err := f.Validate(); err != nil {
				return err
			}
		}
	}

	if len(c.Dimensions) == 0 && len(c.Measures) == 0 {
		return Configurationf("report declares neither dimensions nor measures")
	}

	for _, d := range c.Dimensions {
		if d.Field == "" || d.DisplayName == "" {
			return Configurationf("dimension needs both a field and a display name")
		}
		if _, ok := sources[d.DataSource]; !ok {
			return NewConfigurationError(fmt.Errorf("%w: dimension %q references %q", ErrUnknownDataSource, d.DisplayName, d.DataSource))
		}
		if d.Granularity != "" && !d.Granularity.Known() {
			return Configurationf("dimension %q has unknown granularity %q", d.DisplayName, d.Granularity)
		}
		for _, b := range d.Buckets {
			if b.Lower >= b.Upper {
				return Configurationf("dimension %q bucket %q has an empty range", d.DisplayName, b.Label)
			}
		}
	}

	for _, m := range c.Measures {
		if m.DisplayName == "" {
			return Configurationf("measure needs a display name")
		}
		if !m.Aggregation.Known() {
			return Configurationf("measure %q has unknown aggregation %q", m.DisplayName, m.Aggregation)
		}
		if m.Field == "" && m.Aggregation != AggCount {
			return Configurationf("measure %q needs a field for aggregation %q", m.DisplayName, m.Aggregation)
		}
		if _, ok := sources[m.DataSource]; !ok {
			return NewConfigurationError(fmt.Errorf("%w: measure %q references %q", ErrUnknownDataSource, m.DisplayName, m.DataSource))
		}
	}

	for _, f := range c.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
		if f.DataSource != "" {
			if _, ok := sources[f.DataSource]; !ok {
				return NewConfigurationError(fmt.Errorf("%w: filter on %q references %q", ErrUnknownDataSource, f.Field, f.DataSource))
			}
		}
	}

	for _, s := range c.Sort {
		if s.Field == "" {
			return Configurationf("sort entry is missing a field")
		}
		if s.Direction != "" && s.Direction != SortAsc && s.Direction != SortDesc {
			return Configurationf("sort on %q has unknown direction %q", s.Field, s.Direction)
		}
	}

	if c.Limit < 0 || c.Offset < 0 {
		return Configurationf("limit and offset must not be negative")
	}

	return nil
}

// PrimarySource returns the first declared data source, which anchors the
// query plan.
func (c ReportConfiguration) PrimarySource() DataSource {
	return c.DataSources[0]
}

// SourceByID looks up a declared data source.
func (c ReportConfiguration) SourceByID(id string) (DataSource, bool) {
	for _, ds := range c.DataSources {
		if ds.ID == id {
			return ds, true
		}
	}
	return DataSource{}, false
}
