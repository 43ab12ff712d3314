package transform

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fieldlens/reporting/internal/domain"
	"github.com/fieldlens/reporting/internal/executor"
)

func growthReport() domain.ReportConfiguration {
	return domain.ReportConfiguration{
		DataSources: []domain.DataSource{{ID: "obs", Table: "observations"}},
		Dimensions: []domain.Dimension{
			{DataSource: "obs", Field: "site_name", DisplayName: "Site", Type: domain.TypeString},
		},
		Measures: []domain.Measure{
			{DataSource: "obs", Field: "growth_index", DisplayName: "Growth Index", Aggregation: domain.AggAvg},
		},
	}
}

func TestTransform_NullBecomesNoValue(t *testing.T) {
	rows := []executor.Row{
		{"Site": "north", "Growth Index": nil},
		{"Site": "south", "Growth Index": float64(90)},
	}

	data, err := Transform(rows, growthReport())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if len(data.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(data.Points))
	}

	missing := data.Points[0].Measures["Growth Index"]
	if missing.Valid() {
		t.Fatal("NULL must map to the no-value marker")
	}
	if _, ok := missing.Float64(); ok {
		t.Fatal("the no-value marker must not report a number")
	}

	if v, ok := data.Points[1].Measures["Growth Index"].Float64(); !ok || v != 90 {
		t.Fatalf("expected 90, got %v %v", v, ok)
	}
}

func TestTransform_PlaceholderStringsBecomeNoValue(t *testing.T) {
	for _, raw := range []string{"", "-", "--", "n/a", "NA", "null", " - "} {
		rows := []executor.Row{{"Site": "x", "Growth Index": raw}}
		data, err := Transform(rows, growthReport())
		if err != nil {
			t.Fatalf("transform %q: %v", raw, err)
		}
		if data.Points[0].Measures["Growth Index"].Valid() {
			t.Fatalf("placeholder %q must map to the no-value marker", raw)
		}
	}
}

func TestTransform_NumericStringsParse(t *testing.T) {
	rows := []executor.Row{{"Site": "x", "Growth Index": "87.5"}}

	data, err := Transform(rows, growthReport())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if v, ok := data.Points[0].Measures["Growth Index"].Float64(); !ok || v != 87.5 {
		t.Fatalf("expected 87.5, got %v %v", v, ok)
	}
}

func TestTransform_MissingColumn(t *testing.T) {
	rows := []executor.Row{{"Site": "x"}}

	var terr *domain.TransformationError
	if _, err := Transform(rows, growthReport()); !errors.As(err, &terr) {
		t.Fatalf("expected TransformationError, got %v", err)
	}
}

func TestTransform_DimensionLabels(t *testing.T) {
	cfg := growthReport()
	cfg.Dimensions = []domain.Dimension{
		{DataSource: "obs", Field: "observed_at", DisplayName: "Observed", Type: domain.TypeDate},
		{DataSource: "obs", Field: "site_id", DisplayName: "Site ID"},
		{DataSource: "obs", Field: "irrigated", DisplayName: "Irrigated", Type: domain.TypeBoolean},
	}

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	id := [16]byte{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}
	rows := []executor.Row{{
		"Observed":     day,
		"Site ID":      id,
		"Irrigated":    true,
		"Growth Index": float64(1),
	}}

	data, err := Transform(rows, cfg)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	dims := data.Points[0].Dimensions
	if dims["Observed"] != "2024-03-15" {
		t.Fatalf("midnight timestamps render as dates, got %q", dims["Observed"])
	}
	if dims["Site ID"] != "550e8400-e29b-41d4-a716-446655440000" {
		t.Fatalf("uuid bytes render canonically, got %q", dims["Site ID"])
	}
	if dims["Irrigated"] != "true" {
		t.Fatalf("booleans render as strings, got %q", dims["Irrigated"])
	}
}

func TestTransform_NullDimensionRendersEmpty(t *testing.T) {
	rows := []executor.Row{{"Site": nil, "Growth Index": float64(5)}}

	data, err := Transform(rows, growthReport())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if got := data.Points[0].Dimensions["Site"]; got != "" {
		t.Fatalf("NULL dimensions render empty, got %q", got)
	}
}

func TestTransform_Deterministic(t *testing.T) {
	rows := []executor.Row{
		{"Site": "north", "Growth Index": nil},
		{"Site": "south", "Growth Index": float64(42.5)},
	}
	cfg := growthReport()

	first, err := Transform(rows, cfg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := Transform(rows, cfg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("output differs across runs:\n%s\n%s", a, b)
	}
}

func TestTransform_Metadata(t *testing.T) {
	rows := []executor.Row{
		{"Site": "north", "Growth Index": float64(1)},
		{"Site": "south", "Growth Index": float64(2)},
	}

	data, err := Transform(rows, growthReport())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if data.Metadata.FilteredCount != 2 {
		t.Fatalf("filtered count %d, want 2", data.Metadata.FilteredCount)
	}
	if len(data.Metadata.Dimensions) != 1 || data.Metadata.Dimensions[0].DisplayName != "Site" {
		t.Fatalf("unexpected dimension descriptors: %+v", data.Metadata.Dimensions)
	}
	if len(data.Metadata.Measures) != 1 || data.Metadata.Measures[0].Aggregation != domain.AggAvg {
		t.Fatalf("unexpected measure descriptors: %+v", data.Metadata.Measures)
	}
}
