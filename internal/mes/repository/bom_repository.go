package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// BOMRepository BOM版本仓储
type BOMRepository struct {
	db *gorm.DB
}

// NewBOMRepository 创建BOM版本仓储
func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

// WithTx 返回绑定事务的仓储副本
func (r *BOMRepository) WithTx(tx *gorm.DB) *BOMRepository {
	return &BOMRepository{db: tx}
}

// CreateVersion 创建BOM版本
func (r *BOMRepository) CreateVersion(ctx context.Context, v *entity.BOMVersion) error {
	return r.db.WithContext(ctx).Create(v).Error
}

// UpdateVersionFields 更新BOM版本指定字段
func (r *BOMRepository) UpdateVersionFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.BOMVersion{}).Where("id = ?", id).Updates(fields).Error
}

// FindVersionByID 按ID查找BOM版本（带行，按行号排序）
func (r *BOMRepository) FindVersionByID(ctx context.Context, id string) (*entity.BOMVersion, error) {
	var v entity.BOMVersion
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC, created_at ASC")
		}).
		First(&v, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersionsByProduct 获取产品下的BOM版本（可按状态过滤，带行）
func (r *BOMRepository) ListVersionsByProduct(ctx context.Context, productID, status string) ([]entity.BOMVersion, error) {
	var versions []entity.BOMVersion
	query := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC, created_at ASC")
		}).
		Where("product_id = ?", productID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Find(&versions).Error
	return versions, err
}

// ListNonDraftByProduct 获取产品下已激活过的版本（重叠检查、日期解析用）
func (r *BOMRepository) ListNonDraftByProduct(ctx context.Context, productID string) ([]entity.BOMVersion, error) {
	var versions []entity.BOMVersion
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC, created_at ASC")
		}).
		Where("product_id = ? AND status <> ?", productID, entity.BOMStatusDraft).
		Find(&versions).Error
	return versions, err
}

// CreateLine 创建BOM行
func (r *BOMRepository) CreateLine(ctx context.Context, line *entity.BOMLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// CreateLines 批量创建BOM行（克隆版本用）
func (r *BOMRepository) CreateLines(ctx context.Context, lines []entity.BOMLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

// UpdateLine 保存BOM行
func (r *BOMRepository) UpdateLine(ctx context.Context, line *entity.BOMLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// DeleteLine 删除BOM行
func (r *BOMRepository) DeleteLine(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.BOMLine{}, "id = ?", id).Error
}

// FindLineByID 按ID查找BOM行
func (r *BOMRepository) FindLineByID(ctx context.Context, id string) (*entity.BOMLine, error) {
	var line entity.BOMLine
	if err := r.db.WithContext(ctx).First(&line, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// MarkFutureCurrent future版本生效日到达后转current，返回影响行数
func (r *BOMRepository) MarkFutureCurrent(ctx context.Context, today time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.BOMVersion{}).
		Where("status = ? AND effective_from <= ?", entity.BOMStatusFuture, today).
		Updates(map[string]interface{}{"status": entity.BOMStatusCurrent, "updated_at": time.Now()})
	return result.RowsAffected, result.Error
}

// MarkCurrentExpired current版本失效日过后转expired，返回影响行数
func (r *BOMRepository) MarkCurrentExpired(ctx context.Context, today time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.BOMVersion{}).
		Where("status = ? AND effective_to IS NOT NULL AND effective_to < ?", entity.BOMStatusCurrent, today).
		Updates(map[string]interface{}{"status": entity.BOMStatusExpired, "updated_at": time.Now()})
	return result.RowsAffected, result.Error
}
