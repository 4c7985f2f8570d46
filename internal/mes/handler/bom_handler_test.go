package handler

import (
	"fmt"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupBOMRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := service.NewBOMService(db, repos.BOM, zap.NewNop())
	h := NewBOMHandler(svc)

	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api/v1")
	bom := api.Group("/bom")
	versions := bom.Group("/versions")
	versions.GET("", h.ListVersions)
	versions.POST("", h.CreateVersion)
	versions.GET("/:id", h.GetVersion)
	versions.PUT("/:id", h.UpdateVersion)
	versions.POST("/:id/activate", h.ActivateVersion)
	versions.POST("/:id/clone", h.CloneVersion)
	versions.POST("/:id/lines", h.AddLine)
	bom.GET("/resolve", h.Resolve)

	return r, db
}

func createDraftWithLine(t *testing.T, r *gin.Engine, token, productID, label string) string {
	t.Helper()
	w := testutil.DoRequest(r, "POST", "/api/v1/bom/versions", map[string]interface{}{
		"product_id": productID,
		"version":    label,
	}, token)
	if w.Code != 201 {
		t.Fatalf("create version failed: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	id := resp["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/lines", id), map[string]interface{}{
		"material_id":   "mat-flour",
		"material_code": "FLOUR",
		"quantity":      0.5,
	}, token)
	if w.Code != 201 {
		t.Fatalf("add line failed: %d %s", w.Code, w.Body.String())
	}
	return id
}

func TestBOMVersionActivateAndResolve(t *testing.T) {
	r, _ := setupBOMRouter(t)
	token := testutil.DefaultTestToken()

	id := createDraftWithLine(t, r, token, "prod-1", "1.0")

	w := testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", id), map[string]interface{}{
		"effective_from": "2025-01-01",
		"effective_to":   "2025-12-31",
	}, token)
	if w.Code != 200 {
		t.Fatalf("activate failed: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/bom/resolve?product_id=prod-1&date=2025-06-15", nil, token)
	if w.Code != 200 {
		t.Fatalf("resolve failed: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["id"].(string) != id {
		t.Errorf("resolved wrong version: %v", data["id"])
	}

	// 区间外无版本
	w = testutil.DoRequest(r, "GET", "/api/v1/bom/resolve?product_id=prod-1&date=2026-06-15", nil, token)
	if w.Code != 404 {
		t.Errorf("expected 404 outside effective range, got %d", w.Code)
	}
}

func TestBOMVersionActivateOverlapConflict(t *testing.T) {
	r, _ := setupBOMRouter(t)
	token := testutil.DefaultTestToken()

	first := createDraftWithLine(t, r, token, "prod-1", "1.0")
	w := testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", first), map[string]interface{}{
		"effective_from": "2025-01-01",
		"effective_to":   "2025-12-31",
	}, token)
	if w.Code != 200 {
		t.Fatalf("first activate failed: %d %s", w.Code, w.Body.String())
	}

	second := createDraftWithLine(t, r, token, "prod-1", "2.0")
	w = testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", second), map[string]interface{}{
		"effective_from": "2025-12-31",
	}, token)
	if w.Code != 409 {
		t.Fatalf("expected 409 on overlap, got %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40900 {
		t.Errorf("expected business code 40900, got %v", resp["code"])
	}
	// 冲突对象随响应返回
	if resp["data"] == nil {
		t.Error("conflict response should carry the conflicting version")
	}

	// 不重叠的区间可以激活
	w = testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", second), map[string]interface{}{
		"effective_from": "2026-01-01",
	}, token)
	if w.Code != 200 {
		t.Fatalf("non-overlapping activate failed: %d %s", w.Code, w.Body.String())
	}
}

func TestBOMVersionDraftOnlyEditing(t *testing.T) {
	r, _ := setupBOMRouter(t)
	token := testutil.DefaultTestToken()

	id := createDraftWithLine(t, r, token, "prod-1", "1.0")
	w := testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", id), map[string]interface{}{
		"effective_from": "2025-01-01",
	}, token)
	if w.Code != 200 {
		t.Fatalf("activate failed: %d %s", w.Code, w.Body.String())
	}

	// 激活后不可再编辑
	w = testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/lines", id), map[string]interface{}{
		"material_id": "mat-extra",
		"quantity":    1.0,
	}, token)
	if w.Code != 400 {
		t.Errorf("expected 400 adding line to activated version, got %d", w.Code)
	}

	// 再次激活同样被拒
	w = testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", id), map[string]interface{}{
		"effective_from": "2027-01-01",
	}, token)
	if w.Code != 400 {
		t.Errorf("expected 400 re-activating version, got %d", w.Code)
	}
}

func TestBOMCloneSupersedesSource(t *testing.T) {
	r, db := setupBOMRouter(t)
	token := testutil.DefaultTestToken()

	source := createDraftWithLine(t, r, token, "prod-1", "1.0")
	w := testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", source), map[string]interface{}{
		"effective_from": "2025-01-01",
	}, token)
	if w.Code != 200 {
		t.Fatalf("activate source failed: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/clone", source), map[string]interface{}{
		"new_version": "2.0",
	}, token)
	if w.Code != 201 {
		t.Fatalf("clone failed: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	cloneData := resp["data"].(map[string]interface{})
	cloneID := cloneData["id"].(string)
	if cloneData["status"].(string) != entity.BOMStatusDraft {
		t.Errorf("clone should start as draft, got %v", cloneData["status"])
	}
	if len(cloneData["lines"].([]interface{})) != 1 {
		t.Error("clone should copy source lines")
	}

	w = testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", cloneID), map[string]interface{}{
		"effective_from": "2025-07-01",
	}, token)
	if w.Code != 200 {
		t.Fatalf("activate clone failed: %d %s", w.Code, w.Body.String())
	}

	// 来源版本被截断为superseded，历史日期仍解析到来源版本
	var src entity.BOMVersion
	if err := db.First(&src, "id = ?", source).Error; err != nil {
		t.Fatalf("load source: %v", err)
	}
	if src.Status != entity.BOMStatusSuperseded {
		t.Errorf("source status = %s, want superseded", src.Status)
	}
	if src.EffectiveTo == nil || src.EffectiveTo.Format("2006-01-02") != "2025-06-30" {
		t.Errorf("source effective_to = %v, want 2025-06-30", src.EffectiveTo)
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/bom/resolve?product_id=prod-1&date=2025-03-01", nil, token)
	if w.Code != 200 {
		t.Fatalf("resolve historical date failed: %d %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["id"].(string) != source {
		t.Error("historical date should resolve to superseded source version")
	}
}

func TestBOMCloneKeepsBoundedSourceRange(t *testing.T) {
	r, db := setupBOMRouter(t)
	token := testutil.DefaultTestToken()

	source := createDraftWithLine(t, r, token, "prod-1", "1.0")
	w := testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", source), map[string]interface{}{
		"effective_from": "2025-01-01",
		"effective_to":   "2025-06-30",
	}, token)
	if w.Code != 200 {
		t.Fatalf("activate source failed: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/clone", source), map[string]interface{}{
		"new_version": "2.0",
	}, token)
	if w.Code != 201 {
		t.Fatalf("clone failed: %d %s", w.Code, w.Body.String())
	}
	cloneID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 克隆版本生效日期晚于来源版本截止日期时，来源区间不可被放宽
	w = testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/bom/versions/%s/activate", cloneID), map[string]interface{}{
		"effective_from": "2025-12-01",
	}, token)
	if w.Code != 200 {
		t.Fatalf("activate clone failed: %d %s", w.Code, w.Body.String())
	}

	var src entity.BOMVersion
	if err := db.First(&src, "id = ?", source).Error; err != nil {
		t.Fatalf("load source: %v", err)
	}
	if src.EffectiveTo == nil || src.EffectiveTo.Format("2006-01-02") != "2025-06-30" {
		t.Errorf("source effective_to = %v, want unchanged 2025-06-30", src.EffectiveTo)
	}

	// 空档期内无生效版本
	w = testutil.DoRequest(r, "GET", "/api/v1/bom/resolve?product_id=prod-1&date=2025-09-01", nil, token)
	if w.Code != 404 {
		t.Errorf("expected 404 in gap between source and clone, got %d", w.Code)
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/bom/resolve?product_id=prod-1&date=2025-12-15", nil, token)
	if w.Code != 200 {
		t.Fatalf("resolve clone range failed: %d %s", w.Code, w.Body.String())
	}
	if testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string) != cloneID {
		t.Error("date in clone range should resolve to clone")
	}
}
