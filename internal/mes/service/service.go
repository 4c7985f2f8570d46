package service

import (
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	BOM       *BOMService
	WorkOrder *WorkOrderService
	Project   *ProjectService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, logger *zap.Logger) *Services {
	codeGen := NewRedisCodeGenerator(rdb)
	return &Services{
		BOM:       NewBOMService(db, repos.BOM, logger),
		WorkOrder: NewWorkOrderService(db, repos.WorkOrder, repos.BOM, codeGen, logger),
		Project:   NewProjectService(repos.Project, codeGen, logger),
	}
}
