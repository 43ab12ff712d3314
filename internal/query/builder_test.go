package query

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/fieldlens/reporting/internal/domain"
)

func fungicideReport() domain.ReportConfiguration {
	return domain.ReportConfiguration{
		DataSources: []domain.DataSource{
			{ID: "obs", Table: "observations"},
		},
		Dimensions: []domain.Dimension{
			{DataSource: "obs", Field: "created_date", DisplayName: "Created Date", Type: domain.TypeDate},
		},
		Measures: []domain.Measure{
			{DataSource: "obs", Field: "growth_index", DisplayName: "Avg Growth", Aggregation: domain.AggAvg},
		},
		Filters: []domain.Filter{
			{DataSource: "obs", Field: "fungicide_used", Operator: domain.OpEquals, Value: domain.ScalarValue("Yes")},
		},
	}
}

func TestBuildPlan_ValuesNeverInText(t *testing.T) {
	b := NewBuilder(DefaultEntityGraph())

	plan, err := b.BuildPlan(fungicideReport())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	sql, args := plan.SQL()
	if strings.Contains(sql, "Yes") {
		t.Fatalf("filter value spliced into statement text: %s", sql)
	}
	found := false
	for _, a := range args {
		if a == "Yes" {
			found = true
		}
	}
	if !found {
		t.Fatalf("filter value missing from bound arguments: %v", args)
	}
}

func TestBuildPlan_Shape(t *testing.T) {
	b := NewBuilder(DefaultEntityGraph())

	plan, err := b.BuildPlan(fungicideReport())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	sql, _ := plan.SQL()
	want := `SELECT observations.created_date AS "Created Date", avg(observations.growth_index) AS "Avg Growth" ` +
		`FROM observations WHERE observations.fungicide_used = $1 GROUP BY 1`
	if sql != want {
		t.Fatalf("unexpected statement:\n got %s\nwant %s", sql, want)
	}
}

func TestBuildPlan_Deterministic(t *testing.T) {
	b := NewBuilder(DefaultEntityGraph())
	cfg := fungicideReport()
	cfg.Sort = []domain.SortSpec{{Field: "Avg Growth", Direction: domain.SortDesc}}
	cfg.Limit = 50

	first, err := b.BuildPlan(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := b.BuildPlan(cfg)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("plans differ across builds:\n%+v\n%+v", first, second)
	}

	firstSQL, firstArgs := first.SQL()
	secondSQL, secondArgs := second.SQL()
	if firstSQL != secondSQL || !reflect.DeepEqual(firstArgs, secondArgs) {
		t.Fatal("serialized statements differ across builds")
	}
}

func TestBuildPlan_CrossEntityJoins(t *testing.T) {
	b := NewBuilder(DefaultEntityGraph())
	cfg := domain.ReportConfiguration{
		DataSources: []domain.DataSource{
			{ID: "prog", Table: "programs"},
			{ID: "obs", Table: "observations"},
		},
		Dimensions: []domain.Dimension{
			{DataSource: "prog", Field: "name", DisplayName: "Program"},
		},
		Measures: []domain.Measure{
			{DataSource: "obs", Field: "growth_index", DisplayName: "Avg Growth", Aggregation: domain.AggAvg},
			{DataSource: "obs", DisplayName: "Observations", Aggregation: domain.AggCount},
		},
	}

	plan, err := b.BuildPlan(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Two measures on the same entity share one resolved chain.
	if len(plan.Joins) != 3 {
		t.Fatalf("expected three deduplicated joins, got %d: %+v", len(plan.Joins), plan.Joins)
	}

	sql, _ := plan.SQL()
	wantJoins := "FROM programs JOIN sites ON sites.program_id = programs.id " +
		"JOIN submissions ON submissions.site_id = sites.id " +
		"JOIN observations ON observations.submission_id = submissions.id"
	if !strings.Contains(sql, wantJoins) {
		t.Fatalf("join chain missing or misordered:\n%s", sql)
	}
	if !strings.Contains(sql, `COUNT(*) AS "Observations"`) {
		t.Fatalf("count projection missing:\n%s", sql)
	}
}

func TestBuildPlan_ExplicitPathWins(t *testing.T) {
	b := NewBuilder(DefaultEntityGraph())
	cfg := fungicideReport()
	cfg.Filters = []domain.Filter{
		{
			Field:    "region",
			Operator: domain.OpEquals,
			Value:    domain.ScalarValue("north"),
			RelationshipPath: domain.RelationshipPath{
				{FromTable: "observations", ToTable: "submissions", JoinField: "submission_id", ForeignField: "id", Kind: domain.JoinInner},
				{FromTable: "submissions", ToTable: "sites", JoinField: "site_id", ForeignField: "id", Kind: domain.JoinInner},
			},
		},
	}

	plan, err := b.BuildPlan(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(plan.Joins) != 2 {
		t.Fatalf("expected the declared two-step chain, got %+v", plan.Joins)
	}

	// Filter column is read from the path's target, not the primary table.
	last := plan.Predicates[len(plan.Predicates)-1]
	if last.Column != "sites.region" {
		t.Fatalf("filter qualified as %q, want sites.region", last.Column)
	}
}

func TestBuildPlan_BaseFiltersPrecede(t *testing.T) {
	b := NewBuilder(DefaultEntityGraph())
	cfg := fungicideReport()
	cfg.DataSources[0].BaseFilters = []domain.Filter{
		{Field: "deleted_at", Operator: domain.OpIsNull},
	}

	plan, err := b.BuildPlan(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(plan.Predicates) != 2 {
		t.Fatalf("expected two predicates, got %d", len(plan.Predicates))
	}
	if plan.Predicates[0].Column != "observations.deleted_at" {
		t.Fatalf("base filter should compile first, got %q", plan.Predicates[0].Column)
	}
}

func TestBuildPlan_SortUnknownColumn(t *testing.T) {
	b := NewBuilder(DefaultEntityGraph())
	cfg := fungicideReport()
	cfg.Sort = []domain.SortSpec{{Field: "Yield"}}

	_, err := b.BuildPlan(cfg)
	if err == nil || !domain.IsConfiguration(err) {
		t.Fatalf("expected a configuration error for an unprojected sort column, got %v", err)
	}
}

func TestBuildPlan_MissingRelationship(t *testing.T) {
	g := NewEntityGraph()
	g.AddRelationship("programs", "sites", "id", "program_id", domain.JoinInner)
	b := NewBuilder(g)

	cfg := domain.ReportConfiguration{
		DataSources: []domain.DataSource{
			{ID: "obs", Table: "observations"},
			{ID: "prog", Table: "programs"},
		},
		Dimensions: []domain.Dimension{
			{DataSource: "prog", Field: "name", DisplayName: "Program"},
		},
		Measures: []domain.Measure{
			{DataSource: "obs", DisplayName: "Count", Aggregation: domain.AggCount},
		},
	}

	if _, err := b.BuildPlan(cfg); !errors.Is(err, domain.ErrMissingRelationship) {
		t.Fatalf("expected ErrMissingRelationship, got %v", err)
	}
}

func TestBuildPlan_LimitOffsetBound(t *testing.T) {
	b := NewBuilder(DefaultEntityGraph())
	cfg := fungicideReport()
	cfg.Limit = 25
	cfg.Offset = 50

	plan, err := b.BuildPlan(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	sql, args := plan.SQL()
	if !strings.HasSuffix(sql, "LIMIT $2 OFFSET $3") {
		t.Fatalf("limit and offset should be bound parameters:\n%s", sql)
	}
	if args[1] != 25 || args[2] != 50 {
		t.Fatalf("unexpected paging arguments: %v", args)
	}
}

func TestCountSQL_CountsGroups(t *testing.T) {
	b := NewBuilder(DefaultEntityGraph())

	plan, err := b.BuildPlan(fungicideReport())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	sql, args := plan.CountSQL()
	want := "SELECT COUNT(*) FROM (SELECT observations.created_date " +
		"FROM observations WHERE observations.fungicide_used = $1 GROUP BY 1) grouped"
	if sql != want {
		t.Fatalf("unexpected count statement:\n got %s\nwant %s", sql, want)
	}
	if len(args) != 1 || args[0] != "Yes" {
		t.Fatalf("unexpected count arguments: %v", args)
	}
}
