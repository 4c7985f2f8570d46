package service

import (
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
)

// EvaluateCondition 对订单标记求值条件表达式
// 纯函数：相同输入恒得相同结果，工单快照的可复现性依赖该性质。
// expr为nil表示无条件行，恒为true；结构非法（未知操作符/逻辑类型、空规则集）
// 属于本应在保存时被ValidateCondition拦截的数据错误，返回error
func EvaluateCondition(expr *entity.RuleExpression, flags entity.StringList) (bool, error) {
	if expr == nil {
		return true, nil
	}
	if len(expr.Rules) == 0 {
		return false, fmt.Errorf("rule expression has no rules")
	}

	switch expr.LogicType {
	case entity.LogicAnd:
		for _, rule := range expr.Rules {
			ok, err := evaluateRule(rule, flags)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case entity.LogicOr:
		for _, rule := range expr.Rules {
			ok, err := evaluateRule(rule, flags)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown logic type: %q", expr.LogicType)
	}
}

func evaluateRule(rule entity.Rule, flags entity.StringList) (bool, error) {
	if rule.Field != entity.FieldOrderFlags {
		return false, fmt.Errorf("unknown rule field: %q", rule.Field)
	}
	switch rule.Operator {
	case entity.OpContains:
		return flags.Contains(rule.Value), nil
	case entity.OpNotContains:
		return !flags.Contains(rule.Value), nil
	default:
		return false, fmt.Errorf("unknown rule operator: %q", rule.Operator)
	}
}

// ValidateCondition 保存前校验条件表达式（条件行必须携带≥1条合法规则）
func ValidateCondition(expr *entity.RuleExpression) error {
	if expr == nil {
		return validationErrorf("条件行必须携带条件表达式")
	}
	if expr.LogicType != entity.LogicAnd && expr.LogicType != entity.LogicOr {
		return validationErrorf("未知的逻辑类型: %s", expr.LogicType)
	}
	if len(expr.Rules) == 0 {
		return validationErrorf("条件表达式至少需要一条规则")
	}
	for i, rule := range expr.Rules {
		if rule.Field != entity.FieldOrderFlags {
			return validationErrorf("第%d条规则字段不支持: %s", i+1, rule.Field)
		}
		if rule.Operator != entity.OpContains && rule.Operator != entity.OpNotContains {
			return validationErrorf("第%d条规则操作符不支持: %s", i+1, rule.Operator)
		}
		if strings.TrimSpace(rule.Value) == "" {
			return validationErrorf("第%d条规则的标记值不能为空", i+1)
		}
	}
	return nil
}

// FormatCondition 条件表达式的展示文本（导出、日志用）
func FormatCondition(expr *entity.RuleExpression) string {
	if expr == nil {
		return ""
	}
	parts := make([]string, 0, len(expr.Rules))
	for _, rule := range expr.Rules {
		parts = append(parts, fmt.Sprintf("%s(%s)", rule.Operator, rule.Value))
	}
	return expr.LogicType + ": " + strings.Join(parts, ", ")
}
