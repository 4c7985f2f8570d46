package entity

import (
	"time"
)

// BOMVersionStatus BOM版本生命周期状态
const (
	BOMStatusDraft      = "draft"
	BOMStatusCurrent    = "current"
	BOMStatusFuture     = "future"
	BOMStatusExpired    = "expired"
	BOMStatusSuperseded = "superseded"
)

// BOMLineType BOM行类型
const (
	LineTypeMaterial  = "material"
	LineTypeByProduct = "by_product"
)

// BOMVersion BOM版本头表
// 非draft版本的 [effective_from, effective_to] 区间同产品内不得重叠；
// 应用层在激活事务内校验，数据库侧由 daterange EXCLUDE 约束（btree_gist）兜底
type BOMVersion struct {
	ID              string     `json:"id" gorm:"primaryKey;size:32"`
	ProductID       string     `json:"product_id" gorm:"size:32;not null;index"`
	Version         string     `json:"version" gorm:"size:32;not null"` // 版本号，如 1.0 / 1.5-XMAS
	Status          string     `json:"status" gorm:"size:16;not null;default:draft"`
	EffectiveFrom   *time.Time `json:"effective_from" gorm:"type:date"` // 含当日
	EffectiveTo     *time.Time `json:"effective_to" gorm:"type:date"`   // 含当日；为空=永久有效
	SourceVersionID *string    `json:"source_version_id,omitempty" gorm:"size:32"` // clone-on-edit 来源版本
	Notes           string     `json:"notes,omitempty" gorm:"type:text"`
	ActivatedBy     *string    `json:"activated_by,omitempty" gorm:"size:32"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	CreatedBy       string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Relations
	Lines []BOMLine `json:"lines,omitempty" gorm:"foreignKey:VersionID"`
}

func (BOMVersion) TableName() string {
	return "bom_versions"
}

// BOMLine BOM行项：消耗物料或申报副产品
type BOMLine struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	VersionID    string          `json:"version_id" gorm:"size:32;not null;index"`
	LineNumber   int             `json:"line_number" gorm:"not null;default:0"`
	LineType     string          `json:"line_type" gorm:"size:16;not null;default:material"` // material/by_product
	MaterialID   string          `json:"material_id" gorm:"size:32;not null"`
	MaterialCode string          `json:"material_code" gorm:"size:64"`
	MaterialName string          `json:"material_name" gorm:"size:128"`
	Quantity     float64         `json:"quantity" gorm:"type:numeric(15,4);not null;default:0"` // 物料: 单位产出用量
	YieldPercent *float64        `json:"yield_percent,omitempty" gorm:"type:numeric(7,4)"`      // 副产品: 产出百分比 (0.01, 100]
	Unit         string          `json:"unit" gorm:"size:16;not null;default:kg"`
	Condition    *RuleExpression `json:"condition,omitempty" gorm:"type:jsonb"` // 为空=必选
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (BOMLine) TableName() string {
	return "bom_lines"
}

// IsByProduct 是否副产品行
func (l *BOMLine) IsByProduct() bool {
	return l.LineType == LineTypeByProduct
}

// EffectiveContains 版本有效期是否覆盖指定日期（闭区间，to为空视为+∞）
func (v *BOMVersion) EffectiveContains(date time.Time) bool {
	if v.EffectiveFrom == nil {
		return false
	}
	d := date.Truncate(24 * time.Hour)
	from := v.EffectiveFrom.Truncate(24 * time.Hour)
	if d.Before(from) {
		return false
	}
	if v.EffectiveTo == nil {
		return true
	}
	to := v.EffectiveTo.Truncate(24 * time.Hour)
	return !d.After(to)
}
