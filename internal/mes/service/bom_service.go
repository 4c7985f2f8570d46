package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BOMService BOM版本服务
type BOMService struct {
	db     *gorm.DB
	repo   *repository.BOMRepository
	logger *zap.Logger
}

// NewBOMService 创建BOM版本服务
func NewBOMService(db *gorm.DB, repo *repository.BOMRepository, logger *zap.Logger) *BOMService {
	return &BOMService{db: db, repo: repo, logger: logger}
}

// CreateVersionRequest 创建BOM版本请求
type CreateVersionRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Version   string `json:"version" binding:"required"`
	Notes     string `json:"notes"`
}

// UpdateVersionRequest 更新BOM版本请求（仅草稿）
type UpdateVersionRequest struct {
	Version *string `json:"version"`
	Notes   *string `json:"notes"`
}

// LineRequest BOM行请求
type LineRequest struct {
	LineNumber   int                    `json:"line_number"`
	LineType     string                 `json:"line_type"`
	MaterialID   string                 `json:"material_id" binding:"required"`
	MaterialCode string                 `json:"material_code"`
	MaterialName string                 `json:"material_name"`
	Quantity     float64                `json:"quantity"`
	YieldPercent *float64               `json:"yield_percent"`
	Unit         string                 `json:"unit"`
	Condition    *entity.RuleExpression `json:"condition"`
	Notes        string                 `json:"notes"`
}

// ActivateRequest 激活BOM版本请求，日期格式 2006-01-02
type ActivateRequest struct {
	EffectiveFrom string  `json:"effective_from" binding:"required"`
	EffectiveTo   *string `json:"effective_to"`
}

// CloneVersionRequest 克隆BOM版本请求
type CloneVersionRequest struct {
	NewVersion string `json:"new_version" binding:"required"`
	Notes      string `json:"notes"`
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, validationErrorf("日期格式不正确，应为 2006-01-02: %s", s)
	}
	return d, nil
}

// CreateVersion 创建草稿版本
func (s *BOMService) CreateVersion(ctx context.Context, userID string, req *CreateVersionRequest) (*entity.BOMVersion, error) {
	v := &entity.BOMVersion{
		ID:        uuid.New().String()[:32],
		ProductID: req.ProductID,
		Version:   req.Version,
		Status:    entity.BOMStatusDraft,
		Notes:     req.Notes,
		CreatedBy: userID,
	}
	if err := s.repo.CreateVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("create bom version: %w", err)
	}
	return v, nil
}

// GetVersion 获取BOM版本详情
func (s *BOMService) GetVersion(ctx context.Context, id string) (*entity.BOMVersion, error) {
	v, err := s.repo.FindVersionByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "bom_version", Message: "BOM版本不存在"}
		}
		return nil, err
	}
	return v, nil
}

// ListVersions 获取产品下的BOM版本列表
func (s *BOMService) ListVersions(ctx context.Context, productID, status string) ([]entity.BOMVersion, error) {
	if productID == "" {
		return nil, validationErrorf("product_id不能为空")
	}
	return s.repo.ListVersionsByProduct(ctx, productID, status)
}

// UpdateVersion 更新BOM版本基础信息，仅草稿可编辑
func (s *BOMService) UpdateVersion(ctx context.Context, id, userID string, req *UpdateVersionRequest) (*entity.BOMVersion, error) {
	v, err := s.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status != entity.BOMStatusDraft {
		return nil, validationErrorf("只有草稿状态的BOM版本才能编辑")
	}

	fields := map[string]interface{}{"updated_at": time.Now()}
	if req.Version != nil {
		fields["version"] = *req.Version
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if err := s.repo.UpdateVersionFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update bom version: %w", err)
	}
	return s.GetVersion(ctx, id)
}

// validateLine 行级校验：物料行要用量，副产品行要产出百分比，条件行要合法表达式
func validateLine(req *LineRequest) error {
	switch req.LineType {
	case "", entity.LineTypeMaterial:
		if req.Quantity <= 0 {
			return validationErrorf("物料行用量必须大于0")
		}
	case entity.LineTypeByProduct:
		if req.YieldPercent == nil {
			return validationErrorf("副产品行必须填写产出百分比")
		}
		if *req.YieldPercent <= 0.01 || *req.YieldPercent > 100 {
			return validationErrorf("产出百分比必须在(0.01, 100]区间内")
		}
	default:
		return validationErrorf("未知的行类型: %s", req.LineType)
	}
	if req.Condition != nil {
		return ValidateCondition(req.Condition)
	}
	return nil
}

// AddLine 向草稿版本添加行项
func (s *BOMService) AddLine(ctx context.Context, versionID, userID string, req *LineRequest) (*entity.BOMLine, error) {
	v, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if v.Status != entity.BOMStatusDraft {
		return nil, validationErrorf("只有草稿状态的BOM版本才能编辑行项")
	}
	if err := validateLine(req); err != nil {
		return nil, err
	}

	lineType := req.LineType
	if lineType == "" {
		lineType = entity.LineTypeMaterial
	}
	unit := req.Unit
	if unit == "" {
		unit = "kg"
	}
	lineNumber := req.LineNumber
	if lineNumber == 0 {
		lineNumber = len(v.Lines) + 1
	}

	line := &entity.BOMLine{
		ID:           uuid.New().String()[:32],
		VersionID:    versionID,
		LineNumber:   lineNumber,
		LineType:     lineType,
		MaterialID:   req.MaterialID,
		MaterialCode: req.MaterialCode,
		MaterialName: req.MaterialName,
		Quantity:     req.Quantity,
		YieldPercent: req.YieldPercent,
		Unit:         unit,
		Condition:    req.Condition,
		Notes:        req.Notes,
	}
	if err := s.repo.CreateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("create bom line: %w", err)
	}
	return line, nil
}

// UpdateLine 更新草稿版本的行项
func (s *BOMService) UpdateLine(ctx context.Context, lineID, userID string, req *LineRequest) (*entity.BOMLine, error) {
	line, err := s.repo.FindLineByID(ctx, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "bom_line", Message: "BOM行不存在"}
		}
		return nil, err
	}
	v, err := s.GetVersion(ctx, line.VersionID)
	if err != nil {
		return nil, err
	}
	if v.Status != entity.BOMStatusDraft {
		return nil, validationErrorf("只有草稿状态的BOM版本才能编辑行项")
	}
	if err := validateLine(req); err != nil {
		return nil, err
	}

	if req.LineNumber != 0 {
		line.LineNumber = req.LineNumber
	}
	if req.LineType != "" {
		line.LineType = req.LineType
	}
	line.MaterialID = req.MaterialID
	line.MaterialCode = req.MaterialCode
	line.MaterialName = req.MaterialName
	line.Quantity = req.Quantity
	line.YieldPercent = req.YieldPercent
	if req.Unit != "" {
		line.Unit = req.Unit
	}
	line.Condition = req.Condition
	line.Notes = req.Notes

	if err := s.repo.UpdateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("update bom line: %w", err)
	}
	return line, nil
}

// DeleteLine 删除草稿版本的行项
func (s *BOMService) DeleteLine(ctx context.Context, lineID string) error {
	line, err := s.repo.FindLineByID(ctx, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "bom_line", Message: "BOM行不存在"}
		}
		return err
	}
	v, err := s.GetVersion(ctx, line.VersionID)
	if err != nil {
		return err
	}
	if v.Status != entity.BOMStatusDraft {
		return validationErrorf("只有草稿状态的BOM版本才能编辑行项")
	}
	return s.repo.DeleteLine(ctx, lineID)
}

// ActivateVersion 激活草稿版本，返回版本与非阻断性警告
// 事务内重查并做重叠校验，来源版本在同一事务内截断为superseded；
// 数据库侧的 daterange EXCLUDE 约束兜底并发激活
func (s *BOMService) ActivateVersion(ctx context.Context, id, userID string, req *ActivateRequest) (*entity.BOMVersion, []string, error) {
	from, err := parseDate(req.EffectiveFrom)
	if err != nil {
		return nil, nil, err
	}
	var to *time.Time
	if req.EffectiveTo != nil && *req.EffectiveTo != "" {
		t, err := parseDate(*req.EffectiveTo)
		if err != nil {
			return nil, nil, err
		}
		to = &t
	}
	if err := ValidateDateRange(from, to); err != nil {
		return nil, nil, err
	}

	var warnings []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		v, err := txRepo.FindVersionByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "bom_version", Message: "BOM版本不存在"}
			}
			return err
		}
		if v.Status != entity.BOMStatusDraft {
			return validationErrorf("只有草稿状态的BOM版本才能激活")
		}
		if len(v.Lines) == 0 {
			return validationErrorf("BOM版本至少需要一条行项才能激活")
		}

		existing, err := txRepo.ListNonDraftByProduct(ctx, v.ProductID)
		if err != nil {
			return fmt.Errorf("list product versions: %w", err)
		}

		// 克隆版本接管：来源版本截断到新版本生效前一日，标记superseded。
		// 截断后的历史区间保留，旧排产日期仍能解析到来源版本；
		// 截断只收窄不放宽，来源区间已先于新版本截止时原样保留
		if v.SourceVersionID != nil {
			cutoff := from.AddDate(0, 0, -1)
			for i := range existing {
				src := &existing[i]
				if src.ID != *v.SourceVersionID {
					continue
				}
				if src.EffectiveTo != nil && !src.EffectiveTo.After(cutoff) {
					break
				}
				if src.EffectiveFrom != nil && src.EffectiveFrom.After(cutoff) {
					return validationErrorf("新版本生效日期不能早于来源版本 %s 的生效日期", src.Version)
				}
				if err := txRepo.UpdateVersionFields(ctx, src.ID, map[string]interface{}{
					"status":       entity.BOMStatusSuperseded,
					"effective_to": cutoff,
					"updated_at":   time.Now(),
				}); err != nil {
					return fmt.Errorf("supersede source version: %w", err)
				}
				src.EffectiveTo = &cutoff
				break
			}
		}

		if conflict := CheckOverlap(existing, from, to, id); conflict != nil {
			return &ConflictError{Version: conflict}
		}

		// 依据生效区间与当前日期确定初始状态
		today := time.Now().Truncate(24 * time.Hour)
		status := entity.BOMStatusCurrent
		if from.After(today) {
			status = entity.BOMStatusFuture
		} else if to != nil && to.Before(today) {
			status = entity.BOMStatusExpired
		}

		var yieldSum float64
		for i := range v.Lines {
			line := &v.Lines[i]
			if line.IsByProduct() && line.YieldPercent != nil {
				yieldSum += *line.YieldPercent
			}
		}
		// 合计超100%只提示不拦截，真实产线允许申报口径重叠
		if yieldSum > 100 {
			s.logger.Warn("by-product yield sum exceeds 100%",
				zap.String("version_id", id),
				zap.String("product_id", v.ProductID),
				zap.Float64("yield_sum", yieldSum))
			warnings = append(warnings, fmt.Sprintf("副产品产出百分比合计 %.2f%% 超过100%%", yieldSum))
		}

		now := time.Now()
		return txRepo.UpdateVersionFields(ctx, id, map[string]interface{}{
			"status":         status,
			"effective_from": from,
			"effective_to":   to,
			"activated_by":   userID,
			"activated_at":   now,
			"updated_at":     now,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	v, err := s.GetVersion(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return v, warnings, nil
}

// CloneVersion 克隆版本为新草稿（clone-on-edit：已激活版本不可改，改前先克隆）
func (s *BOMService) CloneVersion(ctx context.Context, sourceID, userID string, req *CloneVersionRequest) (*entity.BOMVersion, error) {
	source, err := s.GetVersion(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	clone := &entity.BOMVersion{
		ID:              uuid.New().String()[:32],
		ProductID:       source.ProductID,
		Version:         req.NewVersion,
		Status:          entity.BOMStatusDraft,
		SourceVersionID: &source.ID,
		Notes:           req.Notes,
		CreatedBy:       userID,
	}

	lines := make([]entity.BOMLine, 0, len(source.Lines))
	for i := range source.Lines {
		src := &source.Lines[i]
		lines = append(lines, entity.BOMLine{
			ID:           uuid.New().String()[:32],
			VersionID:    clone.ID,
			LineNumber:   src.LineNumber,
			LineType:     src.LineType,
			MaterialID:   src.MaterialID,
			MaterialCode: src.MaterialCode,
			MaterialName: src.MaterialName,
			Quantity:     src.Quantity,
			YieldPercent: copyFloat(src.YieldPercent),
			Unit:         src.Unit,
			Condition:    cloneCondition(src.Condition),
			Notes:        src.Notes,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.CreateVersion(ctx, clone); err != nil {
			return fmt.Errorf("create cloned version: %w", err)
		}
		if err := txRepo.CreateLines(ctx, lines); err != nil {
			return fmt.Errorf("create cloned lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetVersion(ctx, clone.ID)
}

// Resolve 解析指定日期生效的BOM版本
// 多版本同时命中说明冲突约束被绕过，记录数据完整性告警后按取胜规则返回
func (s *BOMService) Resolve(ctx context.Context, productID, dateStr string) (*entity.BOMVersion, error) {
	if productID == "" {
		return nil, validationErrorf("product_id不能为空")
	}
	asOf, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}

	versions, err := s.repo.ListNonDraftByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list product versions: %w", err)
	}

	v, count, err := ResolveVersion(versions, productID, asOf)
	if err != nil {
		return nil, err
	}
	if count > 1 {
		s.logger.Warn("multiple BOM versions effective on the same date",
			zap.String("product_id", productID),
			zap.String("date", dateStr),
			zap.Int("matches", count),
			zap.String("resolved_version_id", v.ID))
	}
	return v, nil
}

// RefreshLifecycle 日终生命周期维护：future到期转current，current过期转expired
func (s *BOMService) RefreshLifecycle(ctx context.Context) (map[string]int64, error) {
	today := time.Now().Truncate(24 * time.Hour)

	promoted, err := s.repo.MarkFutureCurrent(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("promote future versions: %w", err)
	}
	expired, err := s.repo.MarkCurrentExpired(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("expire current versions: %w", err)
	}

	if promoted > 0 || expired > 0 {
		s.logger.Info("BOM lifecycle refreshed",
			zap.Int64("promoted", promoted),
			zap.Int64("expired", expired))
	}
	return map[string]int64{"promoted": promoted, "expired": expired}, nil
}

// ExportVersion 导出BOM版本为xlsx
func (s *BOMService) ExportVersion(ctx context.Context, id string) (*excelize.File, string, error) {
	v, err := s.GetVersion(ctx, id)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "BOM"
	f.SetSheetName("Sheet1", sheet)

	f.SetCellValue(sheet, "A1", "产品ID")
	f.SetCellValue(sheet, "B1", v.ProductID)
	f.SetCellValue(sheet, "A2", "版本")
	f.SetCellValue(sheet, "B2", v.Version)
	f.SetCellValue(sheet, "A3", "状态")
	f.SetCellValue(sheet, "B3", v.Status)
	if v.EffectiveFrom != nil {
		f.SetCellValue(sheet, "A4", "生效日期")
		f.SetCellValue(sheet, "B4", v.EffectiveFrom.Format("2006-01-02"))
	}
	if v.EffectiveTo != nil {
		f.SetCellValue(sheet, "A5", "失效日期")
		f.SetCellValue(sheet, "B5", v.EffectiveTo.Format("2006-01-02"))
	}

	headers := []string{"行号", "类型", "物料编码", "物料名称", "用量", "产出%", "单位", "条件", "备注"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 7)
		f.SetCellValue(sheet, cell, h)
	}

	for i := range v.Lines {
		line := &v.Lines[i]
		row := i + 8
		setRow := func(col int, value interface{}) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			f.SetCellValue(sheet, cell, value)
		}
		setRow(1, line.LineNumber)
		setRow(2, line.LineType)
		setRow(3, line.MaterialCode)
		setRow(4, line.MaterialName)
		if line.IsByProduct() {
			if line.YieldPercent != nil {
				setRow(6, *line.YieldPercent)
			}
		} else {
			setRow(5, line.Quantity)
		}
		setRow(7, line.Unit)
		setRow(8, FormatCondition(line.Condition))
		setRow(9, line.Notes)
	}

	filename := fmt.Sprintf("bom_%s_%s.xlsx", v.ProductID, v.Version)
	return f, filename, nil
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
