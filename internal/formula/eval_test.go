package formula

import (
	"errors"
	"strings"
	"testing"
)

func TestEvaluateArithmetic(t *testing.T) {
	t.Parallel()

	vars := map[string]float64{"spend": 10, "revenue": 20}
	got, err := Evaluate("spend + revenue", vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 30 {
		t.Fatalf("expected 30, got %v", got)
	}
}

func TestEvaluatePrecedenceAndParens(t *testing.T) {
	t.Parallel()

	got, err := Evaluate("2 + 3 * 4", nil)
	if err != nil || got != 14 {
		t.Fatalf("expected 14, got %v (%v)", got, err)
	}
	got, err = Evaluate("(2 + 3) * 4", nil)
	if err != nil || got != 20 {
		t.Fatalf("expected 20, got %v (%v)", got, err)
	}
	got, err = Evaluate("-2 * -3", nil)
	if err != nil || got != 6 {
		t.Fatalf("expected 6, got %v (%v)", got, err)
	}
}

func TestEvaluateFunctions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		formula string
		want    float64
	}{
		{"abs(-5)", 5},
		{"round(2.6)", 3},
		{"floor(2.9)", 2},
		{"ceil(2.1)", 3},
		{"min(3, 1, 2)", 1},
		{"max(3, 1, 2)", 3},
		{"max(roas, 1)", 2.5},
	}
	vars := map[string]float64{"roas": 2.5}
	for _, tc := range cases {
		got, err := Evaluate(tc.formula, vars)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.formula, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.formula, tc.want, got)
		}
	}
}

func TestEvaluateRejections(t *testing.T) {
	t.Parallel()

	vars := map[string]float64{"spend": 10}
	cases := []string{
		"",
		"   ",
		"spend / 0",
		"unknown_var + 1",
		"sqrt(4)",
		"spend; drop",
		"1 +",
		"(1 + 2",
		"min()",
		"abs(1, 2)",
		"1 2",
		strings.Repeat("1+", 300) + "1",
	}
	for _, formula := range cases {
		if _, err := Evaluate(formula, vars); !errors.Is(err, ErrInvalidFormula) {
			t.Fatalf("%q: expected ErrInvalidFormula, got %v", formula, err)
		}
	}
}

func TestEvaluateNeverPanicsOnDeepNesting(t *testing.T) {
	t.Parallel()

	formula := strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100)
	got, err := Evaluate(formula, nil)
	if err != nil || got != 1 {
		t.Fatalf("expected 1, got %v (%v)", got, err)
	}
}
