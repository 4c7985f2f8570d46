package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// ProjectRepository NPD项目仓储
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建NPD项目仓储
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create 创建项目
func (r *ProjectRepository) Create(ctx context.Context, p *entity.NPDProject) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByID 按ID查找项目（排除已取消）
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.NPDProject, error) {
	var p entity.NPDProject
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List 分页查询项目
func (r *ProjectRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.NPDProject, int64, error) {
	var projects []entity.NPDProject
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.NPDProject{}).Where("deleted_at IS NULL")
	if v, ok := filters["current_gate"]; ok && v != "" {
		query = query.Where("current_gate = ?", v)
	}
	if v, ok := filters["status"]; ok && v != "" {
		query = query.Where("status = ?", v)
	}
	if v, ok := filters["owner_id"]; ok && v != "" {
		query = query.Where("owner_id = ?", v)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&projects).Error
	return projects, total, err
}

// UpdateFields 更新项目指定字段
func (r *ProjectRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.NPDProject{}).
		Where("id = ? AND deleted_at IS NULL", id).Updates(fields).Error
}

// UpdateGate 阶段门与项目状态成对更新（单条UPDATE，不允许拆开写）
func (r *ProjectRepository) UpdateGate(ctx context.Context, id, gate, status, updatedBy string) error {
	return r.db.WithContext(ctx).Model(&entity.NPDProject{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"current_gate": gate,
			"status":       status,
			"updated_by":   updatedBy,
			"updated_at":   time.Now(),
		}).Error
}

// SoftDelete 取消项目（软删除）
func (r *ProjectRepository) SoftDelete(ctx context.Context, id, updatedBy string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&entity.NPDProject{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"deleted_at": now,
			"updated_by": updatedBy,
			"updated_at": now,
		}).Error
}
