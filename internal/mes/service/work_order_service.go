package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// woStatusSequence 工单状态推进顺序
var woStatusSequence = []string{
	entity.WOStatusCreated,
	entity.WOStatusPlanned,
	entity.WOStatusReleased,
	entity.WOStatusInProgress,
	entity.WOStatusCompleted,
	entity.WOStatusClosed,
}

func woStatusIndex(status string) int {
	for i, s := range woStatusSequence {
		if s == status {
			return i
		}
	}
	return -1
}

// WorkOrderService 工单服务
type WorkOrderService struct {
	db      *gorm.DB
	repo    *repository.WorkOrderRepository
	bomRepo *repository.BOMRepository
	codeGen CodeGenerator
	logger  *zap.Logger
}

// NewWorkOrderService 创建工单服务
func NewWorkOrderService(db *gorm.DB, repo *repository.WorkOrderRepository, bomRepo *repository.BOMRepository, codeGen CodeGenerator, logger *zap.Logger) *WorkOrderService {
	return &WorkOrderService{db: db, repo: repo, bomRepo: bomRepo, codeGen: codeGen, logger: logger}
}

// CreateWorkOrderRequest 创建工单请求，日期格式 2006-01-02
type CreateWorkOrderRequest struct {
	ProductID     string   `json:"product_id" binding:"required"`
	ProductCode   string   `json:"product_code"`
	ProductName   string   `json:"product_name"`
	PlannedQty    float64  `json:"planned_qty" binding:"required,gt=0"`
	Unit          string   `json:"unit"`
	ScheduledDate string   `json:"scheduled_date" binding:"required"`
	OrderFlags    []string `json:"order_flags"`
	Notes         string   `json:"notes"`
}

// UpdateStatusRequest 工单状态变更请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RecordOutputRequest 副产品产出记录请求
type RecordOutputRequest struct {
	MaterialID string  `json:"material_id" binding:"required"`
	ActualQty  float64 `json:"actual_qty" binding:"required,gt=0"`
	Notes      string  `json:"notes"`
}

// ByProductVariance 副产品产出偏差行
type ByProductVariance struct {
	MaterialID   string   `json:"material_id"`
	MaterialCode string   `json:"material_code"`
	MaterialName string   `json:"material_name"`
	ExpectedQty  float64  `json:"expected_qty"`
	ActualQty    float64  `json:"actual_qty"`
	Unit         string   `json:"unit"`
	Variance     *float64 `json:"variance,omitempty"` // (actual-expected)/expected
}

// Create 创建工单
// 按排产日期解析BOM版本、按订单标记冻结物料快照，工单与快照同一事务落库
func (s *WorkOrderService) Create(ctx context.Context, userID string, req *CreateWorkOrderRequest) (*entity.WorkOrder, error) {
	scheduledDate, err := parseDate(req.ScheduledDate)
	if err != nil {
		return nil, err
	}

	versions, err := s.bomRepo.ListNonDraftByProduct(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("list product versions: %w", err)
	}

	version, count, err := ResolveVersion(versions, req.ProductID, scheduledDate)
	if err != nil {
		return nil, err
	}
	if count > 1 {
		s.logger.Warn("multiple BOM versions effective on the same date",
			zap.String("product_id", req.ProductID),
			zap.String("date", req.ScheduledDate),
			zap.Int("matches", count),
			zap.String("resolved_version_id", version.ID))
	}

	flags := entity.StringList(req.OrderFlags)
	snapshot, err := BuildSnapshot(version, flags, req.PlannedQty)
	if err != nil {
		return nil, fmt.Errorf("build material snapshot: %w", err)
	}

	code, err := s.codeGen.NextWorkOrderCode(ctx, scheduledDate)
	if err != nil {
		return nil, fmt.Errorf("generate work order code: %w", err)
	}

	unit := req.Unit
	if unit == "" {
		unit = "kg"
	}

	wo := &entity.WorkOrder{
		ID:              uuid.New().String()[:32],
		WOCode:          code,
		ProductID:       req.ProductID,
		ProductCode:     req.ProductCode,
		ProductName:     req.ProductName,
		BOMVersionID:    version.ID,
		BOMVersionLabel: version.Version,
		PlannedQty:      req.PlannedQty,
		Unit:            unit,
		ScheduledDate:   scheduledDate,
		OrderFlags:      flags,
		Status:          entity.WOStatusCreated,
		Notes:           req.Notes,
		CreatedBy:       userID,
	}

	// 排除行也入快照，便于追溯"为什么这条物料没发料"
	materials := make([]entity.WorkOrderMaterial, 0, len(snapshot.Included)+len(snapshot.Excluded))
	materials = append(materials, snapshot.Included...)
	materials = append(materials, snapshot.Excluded...)
	for i := range materials {
		materials[i].WorkOrderID = wo.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, wo); err != nil {
			return fmt.Errorf("create work order: %w", err)
		}
		if err := txRepo.CreateMaterials(ctx, materials); err != nil {
			return fmt.Errorf("create work order materials: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("work order created",
		zap.String("wo_code", wo.WOCode),
		zap.String("product_id", wo.ProductID),
		zap.String("bom_version", wo.BOMVersionLabel),
		zap.Int("included_lines", len(snapshot.Included)),
		zap.Int("excluded_lines", len(snapshot.Excluded)))

	return s.Get(ctx, wo.ID)
}

// Get 获取工单详情（含物料快照与产出记录）
func (s *WorkOrderService) Get(ctx context.Context, id string) (*entity.WorkOrder, error) {
	wo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "work_order", Message: "工单不存在"}
		}
		return nil, err
	}
	return wo, nil
}

// List 分页查询工单
func (s *WorkOrderService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.WorkOrder, int64, error) {
	return s.repo.List(ctx, page, pageSize, filters)
}

// UpdateStatus 推进工单状态，只允许按顺序逐级推进
func (s *WorkOrderService) UpdateStatus(ctx context.Context, id, userID string, req *UpdateStatusRequest) (*entity.WorkOrder, error) {
	wo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ci := woStatusIndex(wo.Status)
	ti := woStatusIndex(req.Status)
	if ti < 0 {
		return nil, validationErrorf("未知的工单状态: %s", req.Status)
	}
	if ti != ci+1 {
		return nil, validationErrorf("工单状态 %s 不能变更为 %s", wo.Status, req.Status)
	}

	fields := map[string]interface{}{
		"status":     req.Status,
		"updated_at": time.Now(),
	}
	if req.Status == entity.WOStatusCompleted {
		fields["completed_qty"] = wo.PlannedQty
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update work order status: %w", err)
	}
	return s.Get(ctx, id)
}

// Cancel 取消工单（软删除），进入生产后不可取消
func (s *WorkOrderService) Cancel(ctx context.Context, id, userID string) error {
	wo, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if woStatusIndex(wo.Status) >= woStatusIndex(entity.WOStatusInProgress) {
		return validationErrorf("工单已进入生产，不可取消")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("cancel work order: %w", err)
	}
	return nil
}

// RecordOutput 记录副产品实际产出
// 只接受快照中包含的副产品物料，投产前不可记录
func (s *WorkOrderService) RecordOutput(ctx context.Context, workOrderID, userID string, req *RecordOutputRequest) (*entity.ByProductOutput, error) {
	wo, err := s.Get(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if woStatusIndex(wo.Status) < woStatusIndex(entity.WOStatusInProgress) {
		return nil, validationErrorf("工单尚未投产，不能记录产出")
	}

	var snapLine *entity.WorkOrderMaterial
	for i := range wo.Materials {
		m := &wo.Materials[i]
		if m.MaterialID == req.MaterialID && m.LineType == entity.LineTypeByProduct && m.Included {
			snapLine = m
			break
		}
	}
	if snapLine == nil {
		return nil, validationErrorf("该物料不是本工单的副产品")
	}

	output := &entity.ByProductOutput{
		ID:           uuid.New().String()[:32],
		WorkOrderID:  workOrderID,
		MaterialID:   req.MaterialID,
		MaterialCode: snapLine.MaterialCode,
		ActualQty:    req.ActualQty,
		Unit:         snapLine.Unit,
		Notes:        req.Notes,
		RecordedBy:   userID,
		RecordedAt:   time.Now(),
	}
	if err := s.repo.CreateOutput(ctx, output); err != nil {
		return nil, fmt.Errorf("create by-product output: %w", err)
	}
	return output, nil
}

// VarianceReport 副产品产出偏差报表：快照预期 vs 实际记录累计
func (s *WorkOrderService) VarianceReport(ctx context.Context, workOrderID string) ([]ByProductVariance, error) {
	wo, err := s.Get(ctx, workOrderID)
	if err != nil {
		return nil, err
	}

	actualByMaterial := make(map[string]float64)
	for i := range wo.Outputs {
		actualByMaterial[wo.Outputs[i].MaterialID] += wo.Outputs[i].ActualQty
	}

	var report []ByProductVariance
	for i := range wo.Materials {
		m := &wo.Materials[i]
		if m.LineType != entity.LineTypeByProduct || !m.Included {
			continue
		}
		row := ByProductVariance{
			MaterialID:   m.MaterialID,
			MaterialCode: m.MaterialCode,
			MaterialName: m.MaterialName,
			ActualQty:    actualByMaterial[m.MaterialID],
			Unit:         m.Unit,
		}
		if m.ExpectedQty != nil {
			row.ExpectedQty = *m.ExpectedQty
			if v, ok := Variance(row.ActualQty, row.ExpectedQty); ok {
				row.Variance = &v
			}
		}
		report = append(report, row)
	}
	return report, nil
}
