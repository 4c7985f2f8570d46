package service

import (
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/google/uuid"
)

// SnapshotResult 工单物料快照构建结果（included/excluded分区）
type SnapshotResult struct {
	Included []entity.WorkOrderMaterial `json:"included"`
	Excluded []entity.WorkOrderMaterial `json:"excluded"`
}

// BuildSnapshot 按订单标记评估BOM行，生成工单物料快照
// 快照行是BOM行的值拷贝（含条件副本），源版本后续编辑不影响已生成的快照；
// 物料行 required_qty = quantity × plannedQty，
// 副产品行 expected_qty = plannedQty × yield_percent / 100（仅供报表，非权威值）
func BuildSnapshot(version *entity.BOMVersion, flags entity.StringList, plannedQty float64) (*SnapshotResult, error) {
	result := &SnapshotResult{}

	for i := range version.Lines {
		line := &version.Lines[i]

		// 无条件行恒为包含，条件行交给求值器
		included := true
		if line.Condition != nil {
			ok, err := EvaluateCondition(line.Condition, flags)
			if err != nil {
				return nil, fmt.Errorf("evaluate condition for line %d: %w", line.LineNumber, err)
			}
			included = ok
		}

		m := entity.WorkOrderMaterial{
			ID:           uuid.New().String()[:32],
			BOMLineID:    line.ID,
			LineType:     line.LineType,
			MaterialID:   line.MaterialID,
			MaterialCode: line.MaterialCode,
			MaterialName: line.MaterialName,
			Unit:         line.Unit,
			Included:     included,
			Condition:    cloneCondition(line.Condition),
			CreatedAt:    time.Now(),
		}

		if line.IsByProduct() {
			if line.YieldPercent != nil {
				yp := *line.YieldPercent
				expected := plannedQty * yp / 100
				m.YieldPercent = &yp
				m.ExpectedQty = &expected
			}
		} else {
			m.QuantityPerUnit = line.Quantity
			m.RequiredQty = line.Quantity * plannedQty
		}

		if included {
			result.Included = append(result.Included, m)
		} else {
			result.Excluded = append(result.Excluded, m)
		}
	}

	return result, nil
}

// cloneCondition 深拷贝条件表达式，快照不共享源BOM行的规则切片
func cloneCondition(expr *entity.RuleExpression) *entity.RuleExpression {
	if expr == nil {
		return nil
	}
	clone := &entity.RuleExpression{
		LogicType: expr.LogicType,
		Rules:     make([]entity.Rule, len(expr.Rules)),
	}
	copy(clone.Rules, expr.Rules)
	return clone
}

// Variance 副产品产出偏差 (actual-expected)/expected，正值=超产
// expected为0时无意义，返回 (0, false)
func Variance(actual, expected float64) (float64, bool) {
	if expected == 0 {
		return 0, false
	}
	return (actual - expected) / expected, true
}
