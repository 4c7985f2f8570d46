package repository

import (
	"gorm.io/gorm"
)

// Repositories 仓储集合
type Repositories struct {
	BOM       *BOMRepository
	WorkOrder *WorkOrderRepository
	Project   *ProjectRepository
}

// NewRepositories 创建仓储集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		BOM:       NewBOMRepository(db),
		WorkOrder: NewWorkOrderRepository(db),
		Project:   NewProjectRepository(db),
	}
}
