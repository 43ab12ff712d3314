package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/fieldlens/reporting/internal/domain"
)

func TestCompileFilter_EqualityBindsValue(t *testing.T) {
	f := domain.Filter{Field: "fungicide_used", Operator: domain.OpEquals, Value: domain.ScalarValue("Yes")}

	pred, err := CompileFilter(f, "observations")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if pred.Column != "observations.fungicide_used" {
		t.Fatalf("expected qualified column, got %q", pred.Column)
	}
	if len(pred.Args) != 1 || pred.Args[0] != "Yes" {
		t.Fatalf("expected value bound as argument, got %v", pred.Args)
	}

	b := &sqlBuilder{}
	fragment := predicateSQL(pred, b)
	if fragment != "observations.fungicide_used = $1" {
		t.Fatalf("unexpected fragment: %q", fragment)
	}
	if strings.Contains(fragment, "Yes") {
		t.Fatalf("filter value leaked into fragment text: %q", fragment)
	}
}

func TestCompileFilter_UnknownOperator(t *testing.T) {
	f := domain.Filter{Field: "crop", Operator: "fuzzy", Value: domain.ScalarValue("wheat")}

	if _, err := CompileFilter(f, ""); !errors.Is(err, domain.ErrUnsupportedOperator) {
		t.Fatalf("expected ErrUnsupportedOperator, got %v", err)
	}
}

func TestCompileFilter_ReversedRange(t *testing.T) {
	f := domain.Filter{Field: "growth_index", Operator: domain.OpBetween, Value: domain.ListValue(float64(20), float64(10))}

	if _, err := CompileFilter(f, ""); !errors.Is(err, domain.ErrInvalidFilterRange) {
		t.Fatalf("expected ErrInvalidFilterRange, got %v", err)
	}
}

func TestCompileFilter_BetweenBindsBothBounds(t *testing.T) {
	f := domain.Filter{Field: "observed_at", Operator: domain.OpBetween, Value: domain.ListValue("2024-01-01", "2024-06-30")}

	pred, err := CompileFilter(f, "observations")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	b := &sqlBuilder{}
	fragment := predicateSQL(pred, b)
	if fragment != "observations.observed_at BETWEEN $1 AND $2" {
		t.Fatalf("unexpected fragment: %q", fragment)
	}
	if len(b.args) != 2 {
		t.Fatalf("expected two bound arguments, got %v", b.args)
	}
}

func TestCompileFilter_NullChecksTakeNoParameters(t *testing.T) {
	f := domain.Filter{Field: "notes", Operator: domain.OpIsNotNull}

	pred, err := CompileFilter(f, "observations")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(pred.Args) != 0 {
		t.Fatalf("expected no arguments, got %v", pred.Args)
	}

	b := &sqlBuilder{}
	if fragment := predicateSQL(pred, b); fragment != "observations.notes IS NOT NULL" {
		t.Fatalf("unexpected fragment: %q", fragment)
	}
}

func TestCompileFilter_ContainsEscapesWildcards(t *testing.T) {
	f := domain.Filter{Field: "notes", Operator: domain.OpContains, Value: domain.ScalarValue("50%_dry")}

	pred, err := CompileFilter(f, "")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	arg := pred.Args[0].(string)
	if arg != `%50\%\_dry%` {
		t.Fatalf("expected escaped pattern argument, got %q", arg)
	}
}

func TestCompileFilter_MembershipBindsList(t *testing.T) {
	f := domain.Filter{Field: "region", Operator: domain.OpIn, Value: domain.ListValue("north", "south")}

	pred, err := CompileFilter(f, "sites")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	b := &sqlBuilder{}
	if fragment := predicateSQL(pred, b); fragment != "sites.region = ANY($1)" {
		t.Fatalf("unexpected fragment: %q", fragment)
	}
	list, ok := b.args[0].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected list bound as one argument, got %v", b.args)
	}
}

func TestCompileFilter_InvalidRegex(t *testing.T) {
	f := domain.Filter{Field: "notes", Operator: domain.OpRegex, Value: domain.ScalarValue("[unclosed")}

	var valueErr *domain.FilterValueError
	if _, err := CompileFilter(f, ""); !errors.As(err, &valueErr) {
		t.Fatalf("expected FilterValueError for invalid pattern, got %v", err)
	}
}

func TestCompileFilter_ValidRegex(t *testing.T) {
	f := domain.Filter{Field: "notes", Operator: domain.OpRegex, Value: domain.ScalarValue("^mildew")}

	pred, err := CompileFilter(f, "observations")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	b := &sqlBuilder{}
	if fragment := predicateSQL(pred, b); fragment != "observations.notes ~ $1" {
		t.Fatalf("unexpected fragment: %q", fragment)
	}
}
