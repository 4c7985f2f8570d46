package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// WorkOrderRepository 工单仓储
type WorkOrderRepository struct {
	db *gorm.DB
}

// NewWorkOrderRepository 创建工单仓储
func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

// WithTx 返回绑定事务的仓储副本
func (r *WorkOrderRepository) WithTx(tx *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: tx}
}

// Create 创建工单
func (r *WorkOrderRepository) Create(ctx context.Context, wo *entity.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

// CreateMaterials 批量写入工单物料快照
func (r *WorkOrderRepository) CreateMaterials(ctx context.Context, materials []entity.WorkOrderMaterial) error {
	if len(materials) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&materials).Error
}

// FindByID 按ID查找工单（带快照和产出记录，排除已取消）
func (r *WorkOrderRepository) FindByID(ctx context.Context, id string) (*entity.WorkOrder, error) {
	var wo entity.WorkOrder
	err := r.db.WithContext(ctx).
		Preload("Materials", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Outputs", func(db *gorm.DB) *gorm.DB {
			return db.Order("recorded_at ASC")
		}).
		Where("deleted_at IS NULL").
		First(&wo, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &wo, nil
}

// List 分页查询工单
func (r *WorkOrderRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.WorkOrder, int64, error) {
	var orders []entity.WorkOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.WorkOrder{}).Where("deleted_at IS NULL")
	if v, ok := filters["product_id"]; ok && v != "" {
		query = query.Where("product_id = ?", v)
	}
	if v, ok := filters["status"]; ok && v != "" {
		query = query.Where("status = ?", v)
	}
	if v, ok := filters["scheduled_date"]; ok {
		query = query.Where("scheduled_date = ?", v)
	}
	if v, ok := filters["keyword"]; ok && v != "" {
		kw := "%" + v.(string) + "%"
		query = query.Where("wo_code ILIKE ? OR product_name ILIKE ?", kw, kw)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&orders).Error
	return orders, total, err
}

// UpdateFields 更新工单指定字段
func (r *WorkOrderRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.WorkOrder{}).
		Where("id = ? AND deleted_at IS NULL", id).Updates(fields).Error
}

// SoftDelete 取消工单（软删除）
func (r *WorkOrderRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&entity.WorkOrder{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{"deleted_at": now, "updated_at": now}).Error
}

// CreateOutput 记录副产品实际产出
func (r *WorkOrderRepository) CreateOutput(ctx context.Context, output *entity.ByProductOutput) error {
	return r.db.WithContext(ctx).Create(output).Error
}

// ListOutputs 获取工单的副产品产出记录
func (r *WorkOrderRepository) ListOutputs(ctx context.Context, workOrderID string) ([]entity.ByProductOutput, error) {
	var outputs []entity.ByProductOutput
	err := r.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("recorded_at ASC").
		Find(&outputs).Error
	return outputs, err
}
