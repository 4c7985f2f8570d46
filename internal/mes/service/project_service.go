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

// ProjectService NPD项目服务
type ProjectService struct {
	repo    *repository.ProjectRepository
	codeGen CodeGenerator
	logger  *zap.Logger
}

// NewProjectService 创建NPD项目服务
func NewProjectService(repo *repository.ProjectRepository, codeGen CodeGenerator, logger *zap.Logger) *ProjectService {
	return &ProjectService{repo: repo, codeGen: codeGen, logger: logger}
}

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Name        string  `json:"name" binding:"required"`
	ProductID   *string `json:"product_id"`
	Description string  `json:"description"`
	OwnerID     string  `json:"owner_id" binding:"required"`
}

// UpdateProjectRequest 更新项目请求
type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	ProductID   *string `json:"product_id"`
	Description *string `json:"description"`
	OwnerID     *string `json:"owner_id"`
}

// AdvanceGateRequest 阶段门推进请求
type AdvanceGateRequest struct {
	TargetGate string `json:"target_gate" binding:"required"`
}

// ValidateGateTransition 校验阶段门推进是否合法
// 只允许推进到紧邻的下一门，回退与跳级分别报错
func ValidateGateTransition(current, target string) error {
	ci := entity.GateIndex(current)
	if ci < 0 {
		return validationErrorf("未知的当前阶段门: %s", current)
	}
	ti := entity.GateIndex(target)
	if ti < 0 {
		return validationErrorf("未知的目标阶段门: %s", target)
	}
	if current == entity.GateLaunched {
		return validationErrorf("项目已上市，阶段门不可再推进")
	}
	next := entity.GateSequence[ci+1]
	if ti <= ci {
		return validationErrorf("阶段门不允许回退，当前 %s 只能推进到 %s", current, next)
	}
	if ti > ci+1 {
		return validationErrorf("阶段门不允许跳级，当前 %s 只能推进到 %s", current, next)
	}
	return nil
}

// Create 创建项目，初始位于G0/idea
func (s *ProjectService) Create(ctx context.Context, userID string, req *CreateProjectRequest) (*entity.NPDProject, error) {
	code, err := s.codeGen.NextProjectCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate project code: %w", err)
	}

	project := &entity.NPDProject{
		ID:          uuid.New().String()[:32],
		Code:        code,
		Name:        req.Name,
		ProductID:   req.ProductID,
		CurrentGate: entity.GateG0,
		Status:      entity.NPDStatusIdea,
		Description: req.Description,
		OwnerID:     req.OwnerID,
		CreatedBy:   userID,
		UpdatedBy:   userID,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// Get 获取项目详情
func (s *ProjectService) Get(ctx context.Context, id string) (*entity.NPDProject, error) {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "npd_project", Message: "项目不存在"}
		}
		return nil, err
	}
	return project, nil
}

// List 分页查询项目
func (s *ProjectService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.NPDProject, int64, error) {
	return s.repo.List(ctx, page, pageSize, filters)
}

// Update 更新项目基础信息（不含阶段门）
func (s *ProjectService) Update(ctx context.Context, id, userID string, req *UpdateProjectRequest) (*entity.NPDProject, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"updated_by": userID,
		"updated_at": time.Now(),
	}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.ProductID != nil {
		fields["product_id"] = *req.ProductID
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.OwnerID != nil {
		fields["owner_id"] = *req.OwnerID
	}

	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return s.Get(ctx, project.ID)
}

// AdvanceGate 推进阶段门
// current_gate 与 status 由同一条UPDATE成对落库，新状态由GateStatusMap派生
func (s *ProjectService) AdvanceGate(ctx context.Context, id, userID string, req *AdvanceGateRequest) (*entity.NPDProject, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := ValidateGateTransition(project.CurrentGate, req.TargetGate); err != nil {
		return nil, err
	}

	newStatus := entity.GateStatusMap[req.TargetGate]
	if err := s.repo.UpdateGate(ctx, id, req.TargetGate, newStatus, userID); err != nil {
		return nil, fmt.Errorf("advance gate: %w", err)
	}

	s.logger.Info("NPD gate advanced",
		zap.String("project_id", id),
		zap.String("from", project.CurrentGate),
		zap.String("to", req.TargetGate),
		zap.String("status", newStatus),
		zap.String("operator", userID))

	return s.Get(ctx, id)
}

// Cancel 取消项目（软删除），已上市项目不可取消
func (s *ProjectService) Cancel(ctx context.Context, id, userID string) error {
	project, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if project.CurrentGate == entity.GateLaunched {
		return validationErrorf("已上市项目不可取消")
	}
	if err := s.repo.SoftDelete(ctx, id, userID); err != nil {
		return fmt.Errorf("cancel project: %w", err)
	}
	return nil
}
