package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fieldlens/reporting/internal/domain"
	"github.com/fieldlens/reporting/internal/executor"
)

// Placeholder strings that some submission pipelines write where a numeric
// reading is missing. They normalize to the no-value marker, same as NULL.
var noValuePlaceholders = map[string]struct{}{
	"":     {},
	"-":    {},
	"--":   {},
	"n/a":  {},
	"na":   {},
	"null": {},
}

// Transform maps raw result rows into the canonical AggregatedData shape.
// It is pure: the same rows and configuration always produce the same
// output, byte for byte.
func Transform(rows []executor.Row, cfg domain.ReportConfiguration) (domain.AggregatedData, error) {
	data := domain.AggregatedData{
		ReportID: cfg.ID,
		Points:   make([]domain.DataPoint, 0, len(rows)),
	}

	for _, d := range cfg.Dimensions {
		data.Metadata.Dimensions = append(data.Metadata.Dimensions, domain.ColumnDescriptor{
			DisplayName: d.DisplayName,
			Field:       d.Field,
			Type:        d.Type,
		})
	}
	for _, m := range cfg.Measures {
		data.Metadata.Measures = append(data.Metadata.Measures, domain.ColumnDescriptor{
			DisplayName: m.DisplayName,
			Field:       m.Field,
			Aggregation: m.Aggregation,
		})
	}

	for i, row := range rows {
		point := domain.DataPoint{
			Dimensions: make(map[string]string, len(cfg.Dimensions)),
			Measures:   make(map[string]domain.MeasureValue, len(cfg.Measures)),
		}

		for _, d := range cfg.Dimensions {
			value, ok := row[d.DisplayName]
			if !ok {
				return domain.AggregatedData{}, &domain.TransformationError{
					Detail: fmt.Sprintf("row %d is missing dimension column %q", i, d.DisplayName),
				}
			}
			point.Dimensions[d.DisplayName] = dimensionLabel(value)
		}

		for _, m := range cfg.Measures {
			value, ok := row[m.DisplayName]
			if !ok {
				return domain.AggregatedData{}, &domain.TransformationError{
					Detail: fmt.Sprintf("row %d is missing measure column %q", i, m.DisplayName),
				}
			}
			point.Measures[m.DisplayName] = measureValue(value)
		}

		data.Points = append(data.Points, point)
	}

	data.Metadata.FilteredCount = len(data.Points)
	return data, nil
}

// dimensionLabel renders a grouping value as a display label. NULL renders
// as the empty string; the no-value marker is a measure-domain concept.
func dimensionLabel(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case [16]byte:
		// pgx scans uuid columns as byte arrays.
		return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
	default:
		return fmt.Sprintf("%v", v)
	}
}

// measureValue normalizes one raw measure cell. NULLs and non-numeric
// placeholder strings become the typed no-value marker, never zero and
// never NaN; numeric strings parse.
func measureValue(value any) domain.MeasureValue {
	switch v := value.(type) {
	case nil:
		return domain.NoValue()
	case float64:
		return domain.NumericValue(v)
	case float32:
		return domain.NumericValue(float64(v))
	case int64:
		return domain.NumericValue(float64(v))
	case int32:
		return domain.NumericValue(float64(v))
	case int16:
		return domain.NumericValue(float64(v))
	case int:
		return domain.NumericValue(float64(v))
	case string:
		trimmed := strings.TrimSpace(v)
		if _, placeholder := noValuePlaceholders[strings.ToLower(trimmed)]; placeholder {
			return domain.NoValue()
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return domain.NoValue()
		}
		return domain.NumericValue(parsed)
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return domain.NoValue()
		}
		return domain.NumericValue(f.Float64)
	default:
		return domain.NoValue()
	}
}
