package service

import (
	"math"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
)

func yieldPtr(v float64) *float64 {
	return &v
}

func snapshotVersion() *entity.BOMVersion {
	return &entity.BOMVersion{
		ID:        "ver-1",
		ProductID: "prod-1",
		Version:   "1.0",
		Status:    entity.BOMStatusCurrent,
		Lines: []entity.BOMLine{
			{
				ID: "line-flour", LineNumber: 1, LineType: entity.LineTypeMaterial,
				MaterialID: "mat-flour", MaterialCode: "FLOUR", MaterialName: "面粉",
				Quantity: 0.5, Unit: "kg",
			},
			{
				ID: "line-organic", LineNumber: 2, LineType: entity.LineTypeMaterial,
				MaterialID: "mat-organic", MaterialCode: "OFLOUR", MaterialName: "有机面粉",
				Quantity: 0.2, Unit: "kg",
				Condition: andExpr(contains("organic")),
			},
			{
				ID: "line-trim", LineNumber: 3, LineType: entity.LineTypeByProduct,
				MaterialID: "mat-trim", MaterialCode: "TRIM", MaterialName: "边角料",
				YieldPercent: yieldPtr(5), Unit: "kg",
			},
		},
	}
}

func TestBuildSnapshotPartition(t *testing.T) {
	result, err := BuildSnapshot(snapshotVersion(), entity.StringList{"organic"}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Included) != 3 {
		t.Fatalf("expected 3 included rows, got %d", len(result.Included))
	}
	if len(result.Excluded) != 0 {
		t.Fatalf("expected 0 excluded rows, got %d", len(result.Excluded))
	}

	result, err = BuildSnapshot(snapshotVersion(), entity.StringList{}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Included) != 2 {
		t.Fatalf("expected 2 included rows without organic flag, got %d", len(result.Included))
	}
	if len(result.Excluded) != 1 {
		t.Fatalf("expected 1 excluded row, got %d", len(result.Excluded))
	}
	if result.Excluded[0].MaterialID != "mat-organic" {
		t.Errorf("wrong excluded material: %s", result.Excluded[0].MaterialID)
	}
	if result.Excluded[0].Included {
		t.Error("excluded row must carry included=false")
	}
	if result.Excluded[0].Condition == nil {
		t.Error("excluded row must carry the evaluated condition copy")
	}
}

func TestBuildSnapshotQuantities(t *testing.T) {
	result, err := BuildSnapshot(snapshotVersion(), entity.StringList{"organic"}, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byMaterial := make(map[string]entity.WorkOrderMaterial)
	for _, m := range result.Included {
		byMaterial[m.MaterialID] = m
	}

	flour := byMaterial["mat-flour"]
	if math.Abs(flour.RequiredQty-100) > 1e-9 {
		t.Errorf("flour required_qty = %v, want 100", flour.RequiredQty)
	}
	if math.Abs(flour.QuantityPerUnit-0.5) > 1e-9 {
		t.Errorf("flour quantity_per_unit = %v, want 0.5", flour.QuantityPerUnit)
	}

	trim := byMaterial["mat-trim"]
	if trim.ExpectedQty == nil {
		t.Fatal("by-product expected_qty missing")
	}
	if math.Abs(*trim.ExpectedQty-10) > 1e-9 {
		t.Errorf("trim expected_qty = %v, want 10", *trim.ExpectedQty)
	}
	if trim.RequiredQty != 0 {
		t.Errorf("by-product must not have required_qty, got %v", trim.RequiredQty)
	}
}

func TestBuildSnapshotImmutableCopies(t *testing.T) {
	v := snapshotVersion()
	result, err := BuildSnapshot(v, entity.StringList{"organic"}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var snap *entity.WorkOrderMaterial
	for i := range result.Included {
		if result.Included[i].MaterialID == "mat-organic" {
			snap = &result.Included[i]
		}
	}
	if snap == nil {
		t.Fatal("conditional line missing from snapshot")
	}

	// 源BOM行事后变更不得影响快照
	v.Lines[1].Condition.Rules[0].Value = "vegan"
	v.Lines[1].MaterialName = "改名"

	if snap.Condition.Rules[0].Value != "organic" {
		t.Error("snapshot condition shares memory with source line")
	}
	if snap.MaterialName != "有机面粉" {
		t.Error("snapshot fields must be value copies")
	}
}

func TestBuildSnapshotFreshIDs(t *testing.T) {
	result, err := BuildSnapshot(snapshotVersion(), entity.StringList{}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	all := append([]entity.WorkOrderMaterial{}, result.Included...)
	all = append(all, result.Excluded...)
	for _, m := range all {
		if m.ID == "" || len(m.ID) != 32 {
			t.Errorf("snapshot row has invalid id %q", m.ID)
		}
		if seen[m.ID] {
			t.Errorf("duplicate snapshot id %q", m.ID)
		}
		seen[m.ID] = true
		if m.BOMLineID == "" {
			t.Error("snapshot row must reference its source line")
		}
	}
}

func TestBuildSnapshotInvalidConditionFails(t *testing.T) {
	v := snapshotVersion()
	v.Lines[1].Condition = &entity.RuleExpression{LogicType: "XOR", Rules: []entity.Rule{contains("a")}}

	if _, err := BuildSnapshot(v, entity.StringList{"a"}, 100); err == nil {
		t.Fatal("invalid stored condition must fail snapshot build")
	}
}

func TestVariance(t *testing.T) {
	v, ok := Variance(12, 10)
	if !ok {
		t.Fatal("variance should be defined for non-zero expected")
	}
	if math.Abs(v-0.2) > 1e-9 {
		t.Errorf("variance = %v, want 0.2", v)
	}

	v, ok = Variance(8, 10)
	if !ok || math.Abs(v+0.2) > 1e-9 {
		t.Errorf("variance = %v, want -0.2", v)
	}

	if _, ok := Variance(5, 0); ok {
		t.Error("variance undefined for zero expected")
	}
}
