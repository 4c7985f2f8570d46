package service

import (
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
)

func andExpr(rules ...entity.Rule) *entity.RuleExpression {
	return &entity.RuleExpression{LogicType: entity.LogicAnd, Rules: rules}
}

func orExpr(rules ...entity.Rule) *entity.RuleExpression {
	return &entity.RuleExpression{LogicType: entity.LogicOr, Rules: rules}
}

func contains(flag string) entity.Rule {
	return entity.Rule{Field: entity.FieldOrderFlags, Operator: entity.OpContains, Value: flag}
}

func notContains(flag string) entity.Rule {
	return entity.Rule{Field: entity.FieldOrderFlags, Operator: entity.OpNotContains, Value: flag}
}

func TestEvaluateConditionNilAlwaysIncluded(t *testing.T) {
	got, err := EvaluateCondition(nil, entity.StringList{"organic"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatal("nil condition should always evaluate to true")
	}
}

func TestEvaluateConditionAnd(t *testing.T) {
	expr := andExpr(contains("organic"), notContains("premium"))

	tests := []struct {
		name  string
		flags entity.StringList
		want  bool
	}{
		{"both satisfied", entity.StringList{"organic"}, true},
		{"contains fails", entity.StringList{"gluten_free"}, false},
		{"not_contains fails", entity.StringList{"organic", "premium"}, false},
		{"empty flags", entity.StringList{}, false},
		{"nil flags", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateCondition(expr, tt.flags)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("flags=%v: got %v, want %v", tt.flags, got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionOr(t *testing.T) {
	expr := orExpr(contains("organic"), contains("vegan"))

	tests := []struct {
		name  string
		flags entity.StringList
		want  bool
	}{
		{"first matches", entity.StringList{"organic"}, true},
		{"second matches", entity.StringList{"vegan", "bulk"}, true},
		{"none matches", entity.StringList{"bulk"}, false},
		{"empty flags", entity.StringList{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateCondition(expr, tt.flags)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("flags=%v: got %v, want %v", tt.flags, got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionNotContainsEmptyFlags(t *testing.T) {
	// 无标记订单上 not_contains 恒为真
	expr := andExpr(notContains("premium"))
	got, err := EvaluateCondition(expr, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Fatal("not_contains on empty flags should be true")
	}
}

func TestEvaluateConditionDeterministic(t *testing.T) {
	expr := andExpr(contains("organic"), notContains("premium"), contains("bulk"))
	flags := entity.StringList{"organic", "bulk"}

	first, err := EvaluateCondition(expr, flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := EvaluateCondition(expr, flags)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != first {
			t.Fatalf("evaluation not deterministic at iteration %d", i)
		}
	}
}

func TestEvaluateConditionInvalidExpression(t *testing.T) {
	tests := []struct {
		name string
		expr *entity.RuleExpression
	}{
		{"empty rules", &entity.RuleExpression{LogicType: entity.LogicAnd}},
		{"unknown logic type", &entity.RuleExpression{LogicType: "XOR", Rules: []entity.Rule{contains("a")}}},
		{"unknown operator", andExpr(entity.Rule{Field: entity.FieldOrderFlags, Operator: "matches", Value: "a"})},
		{"unknown field", andExpr(entity.Rule{Field: "customer_tier", Operator: entity.OpContains, Value: "a"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EvaluateCondition(tt.expr, entity.StringList{"a"}); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidateCondition(t *testing.T) {
	tests := []struct {
		name    string
		expr    *entity.RuleExpression
		wantErr bool
	}{
		{"valid AND", andExpr(contains("organic")), false},
		{"valid OR multi", orExpr(contains("a"), notContains("b")), false},
		{"nil expression", nil, true},
		{"bad logic type", &entity.RuleExpression{LogicType: "NOR", Rules: []entity.Rule{contains("a")}}, true},
		{"no rules", &entity.RuleExpression{LogicType: entity.LogicAnd}, true},
		{"bad field", andExpr(entity.Rule{Field: "season", Operator: entity.OpContains, Value: "a"}), true},
		{"bad operator", andExpr(entity.Rule{Field: entity.FieldOrderFlags, Operator: "eq", Value: "a"}), true},
		{"blank value", andExpr(contains("  ")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCondition(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("got err=%v, wantErr=%v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil {
				if _, ok := err.(*ValidationError); !ok {
					t.Errorf("expected *ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestFormatCondition(t *testing.T) {
	expr := andExpr(contains("organic"), notContains("premium"))
	got := FormatCondition(expr)
	want := "AND: contains(organic), not_contains(premium)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if FormatCondition(nil) != "" {
		t.Error("nil condition should format to empty string")
	}
}
