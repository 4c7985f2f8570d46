package entity

import (
	"time"
)

// Gate NPD阶段门
const (
	GateG0       = "G0"
	GateG1       = "G1"
	GateG2       = "G2"
	GateG3       = "G3"
	GateG4       = "G4"
	GateLaunched = "Launched"
)

// NPDStatus 项目状态（由阶段门派生）
const (
	NPDStatusIdea        = "idea"
	NPDStatusConcept     = "concept"
	NPDStatusDevelopment = "development"
	NPDStatusTesting     = "testing"
	NPDStatusLaunched    = "launched"
)

// GateSequence 阶段门顺序，只允许逐级推进
var GateSequence = []string{GateG0, GateG1, GateG2, GateG3, GateG4, GateLaunched}

// GateStatusMap 阶段门→项目状态映射（全量固定）
var GateStatusMap = map[string]string{
	GateG0:       NPDStatusIdea,
	GateG1:       NPDStatusConcept,
	GateG2:       NPDStatusDevelopment,
	GateG3:       NPDStatusTesting,
	GateG4:       NPDStatusTesting,
	GateLaunched: NPDStatusLaunched,
}

// GateIndex 返回阶段门在序列中的位置，未知返回-1
func GateIndex(gate string) int {
	for i, g := range GateSequence {
		if g == gate {
			return i
		}
	}
	return -1
}

// NPDProject 新品开发项目
// current_gate 与 status 必须成对更新，不允许出现不一致组合
type NPDProject struct {
	ID          string     `json:"id" gorm:"primaryKey;size:32"`
	Code        string     `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name        string     `json:"name" gorm:"size:128;not null"`
	ProductID   *string    `json:"product_id,omitempty" gorm:"size:32"`
	CurrentGate string     `json:"current_gate" gorm:"size:16;not null;default:G0"`
	Status      string     `json:"status" gorm:"size:16;not null;default:idea"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	OwnerID     string     `json:"owner_id" gorm:"size:32;not null"`
	CreatedBy   string     `json:"created_by" gorm:"size:32;not null"`
	UpdatedBy   string     `json:"updated_by" gorm:"size:32"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" gorm:"index"` // 取消=软删除，Launched后不可取消
}

func (NPDProject) TableName() string {
	return "npd_projects"
}
