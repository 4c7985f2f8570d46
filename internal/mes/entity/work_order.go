package entity

import (
	"time"
)

// WorkOrderStatus 工单状态
const (
	WOStatusCreated    = "CREATED"
	WOStatusPlanned    = "PLANNED"
	WOStatusReleased   = "RELEASED"
	WOStatusInProgress = "IN_PROGRESS"
	WOStatusCompleted  = "COMPLETED"
	WOStatusClosed     = "CLOSED"
)

// WorkOrder 生产工单
// 创建时解析BOM版本并冻结物料快照；快照创建后不再重算
type WorkOrder struct {
	ID              string     `json:"id" gorm:"primaryKey;size:32"`
	WOCode          string     `json:"wo_code" gorm:"size:50;not null;uniqueIndex"`
	ProductID       string     `json:"product_id" gorm:"size:32;not null;index"`
	ProductCode     string     `json:"product_code" gorm:"size:64"`
	ProductName     string     `json:"product_name" gorm:"size:128"`
	BOMVersionID    string     `json:"bom_version_id" gorm:"size:32;not null"`
	BOMVersionLabel string     `json:"bom_version_label" gorm:"size:32"`
	PlannedQty      float64    `json:"planned_qty" gorm:"type:numeric(12,4);not null"`
	CompletedQty    float64    `json:"completed_qty" gorm:"type:numeric(12,4);default:0"`
	Unit            string     `json:"unit" gorm:"size:16;not null;default:kg"`
	ScheduledDate   time.Time  `json:"scheduled_date" gorm:"type:date;not null"`
	OrderFlags      StringList `json:"order_flags" gorm:"type:jsonb"` // organic / gluten_free 等订单标记
	Status          string     `json:"status" gorm:"size:20;not null;default:CREATED"`
	Notes           string     `json:"notes,omitempty" gorm:"type:text"`
	CreatedBy       string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" gorm:"index"`

	Materials []WorkOrderMaterial `json:"materials,omitempty" gorm:"foreignKey:WorkOrderID"`
	Outputs   []ByProductOutput   `json:"outputs,omitempty" gorm:"foreignKey:WorkOrderID"`
}

func (WorkOrder) TableName() string {
	return "mes_work_orders"
}

// WorkOrderMaterial 工单物料快照行（含被排除行，便于追溯）
// 创建后不可变：BOM后续变更不影响已生成的快照
type WorkOrderMaterial struct {
	ID             string          `json:"id" gorm:"primaryKey;size:32"`
	WorkOrderID    string          `json:"work_order_id" gorm:"size:32;not null;index"`
	BOMLineID      string          `json:"bom_line_id" gorm:"size:32;not null"`
	LineType       string          `json:"line_type" gorm:"size:16;not null;default:material"`
	MaterialID     string          `json:"material_id" gorm:"size:32;not null"`
	MaterialCode   string          `json:"material_code" gorm:"size:64"`
	MaterialName   string          `json:"material_name" gorm:"size:128"`
	QuantityPerUnit float64        `json:"quantity_per_unit" gorm:"type:numeric(15,4);default:0"`
	RequiredQty    float64         `json:"required_qty" gorm:"type:numeric(15,4);default:0"` // 物料: quantity × planned_qty
	YieldPercent   *float64        `json:"yield_percent,omitempty" gorm:"type:numeric(7,4)"`
	ExpectedQty    *float64        `json:"expected_qty,omitempty" gorm:"type:numeric(15,4)"` // 副产品预期产出，仅供报表
	Unit           string          `json:"unit" gorm:"size:16;not null;default:kg"`
	Included       bool            `json:"included" gorm:"not null;default:true"`
	Condition      *RuleExpression `json:"condition,omitempty" gorm:"type:jsonb"` // 评估时的条件副本
	CreatedAt      time.Time       `json:"created_at"`
}

func (WorkOrderMaterial) TableName() string {
	return "mes_work_order_materials"
}

// ByProductOutput 副产品实际产出记录（与预期产出对比做偏差报表）
type ByProductOutput struct {
	ID           string    `json:"id" gorm:"primaryKey;size:32"`
	WorkOrderID  string    `json:"work_order_id" gorm:"size:32;not null;index"`
	MaterialID   string    `json:"material_id" gorm:"size:32;not null"`
	MaterialCode string    `json:"material_code" gorm:"size:64"`
	ActualQty    float64   `json:"actual_qty" gorm:"type:numeric(15,4);not null"`
	Unit         string    `json:"unit" gorm:"size:16;not null;default:kg"`
	Notes        string    `json:"notes,omitempty"`
	RecordedBy   string    `json:"recorded_by" gorm:"size:32;not null"`
	RecordedAt   time.Time `json:"recorded_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ByProductOutput) TableName() string {
	return "mes_by_product_outputs"
}
