package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// LogicType 条件组合方式
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// Operator 规则操作符
const (
	OpContains    = "contains"
	OpNotContains = "not_contains"
)

// Field 规则字段（目前仅支持订单标记）
const (
	FieldOrderFlags = "order_flags"
)

// Rule 单条规则：field operator value
type Rule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// RuleExpression BOM行条件表达式，AND/OR组合一组规则
// 以jsonb存储在BOM行上；为nil表示无条件（必选物料）
type RuleExpression struct {
	LogicType string `json:"logic_type"`
	Rules     []Rule `json:"rules"`
}

func (e *RuleExpression) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for RuleExpression")
	}
	return json.Unmarshal(data, e)
}

func (e *RuleExpression) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

// StringList 字符串数组，以jsonb存储（订单标记等）
type StringList []string

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
	return json.Unmarshal(data, s)
}

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}

// Contains 判断标记是否存在
func (s StringList) Contains(flag string) bool {
	for _, f := range s {
		if f == flag {
			return true
		}
	}
	return false
}
