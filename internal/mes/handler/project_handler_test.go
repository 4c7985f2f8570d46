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

func setupProjectRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := service.NewProjectService(repos.Project, &stubCodeGen{}, zap.NewNop())
	h := NewProjectHandler(svc)

	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api/v1")
	projects := api.Group("/projects")
	projects.GET("", h.List)
	projects.POST("", h.Create)
	projects.GET("/:id", h.Get)
	projects.POST("/:id/advance", h.AdvanceGate)
	projects.DELETE("/:id", h.Cancel)

	return r, db
}

func createProject(t *testing.T, r *gin.Engine, token string) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(r, "POST", "/api/v1/projects", map[string]interface{}{
		"name":     "新品酸奶",
		"owner_id": "user-owner",
	}, token)
	if w.Code != 201 {
		t.Fatalf("create project failed: %d %s", w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)["data"].(map[string]interface{})
}

func advance(t *testing.T, r *gin.Engine, token, id, gate string) (int, map[string]interface{}) {
	t.Helper()
	w := testutil.DoRequest(r, "POST", fmt.Sprintf("/api/v1/projects/%s/advance", id), map[string]interface{}{
		"target_gate": gate,
	}, token)
	return w.Code, testutil.ParseResponse(w)
}

func TestProjectGateAdvance(t *testing.T) {
	r, _ := setupProjectRouter(t)
	token := testutil.DefaultTestToken()

	data := createProject(t, r, token)
	id := data["id"].(string)
	if data["current_gate"].(string) != entity.GateG0 {
		t.Errorf("new project gate = %v, want G0", data["current_gate"])
	}
	if data["status"].(string) != entity.NPDStatusIdea {
		t.Errorf("new project status = %v, want idea", data["status"])
	}
	if data["code"].(string) != "NPD-0001" {
		t.Errorf("project code = %v, want NPD-0001", data["code"])
	}

	// G0→G1→G2，状态随阶段门派生
	code, resp := advance(t, r, token, id, entity.GateG1)
	if code != 200 {
		t.Fatalf("advance to G1 failed: %d", code)
	}
	code, resp = advance(t, r, token, id, entity.GateG2)
	if code != 200 {
		t.Fatalf("advance to G2 failed: %d", code)
	}
	got := resp["data"].(map[string]interface{})
	if got["current_gate"].(string) != entity.GateG2 || got["status"].(string) != entity.NPDStatusDevelopment {
		t.Errorf("after G2: gate=%v status=%v, want G2/development", got["current_gate"], got["status"])
	}

	// 回退与跳级分别被拒
	code, resp = advance(t, r, token, id, entity.GateG1)
	if code != 400 {
		t.Errorf("backwards advance should be 400, got %d", code)
	}
	code, resp = advance(t, r, token, id, entity.GateG4)
	if code != 400 {
		t.Errorf("skip advance should be 400, got %d", code)
	}

	// 项目仍停留在G2
	w := testutil.DoRequest(r, "GET", "/api/v1/projects/"+id, nil, token)
	got = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if got["current_gate"].(string) != entity.GateG2 {
		t.Errorf("gate moved on rejected advance: %v", got["current_gate"])
	}
}

func TestProjectLaunchedTerminal(t *testing.T) {
	r, _ := setupProjectRouter(t)
	token := testutil.DefaultTestToken()

	id := createProject(t, r, token)["id"].(string)
	for _, gate := range entity.GateSequence[1:] {
		code, resp := advance(t, r, token, id, gate)
		if code != 200 {
			t.Fatalf("advance to %s failed: %d %v", gate, code, resp["message"])
		}
	}

	// 已上市项目不可再推进、不可取消
	if code, _ := advance(t, r, token, id, entity.GateG0); code != 400 {
		t.Errorf("launched project advance should be 400, got %d", code)
	}
	w := testutil.DoRequest(r, "DELETE", "/api/v1/projects/"+id, nil, token)
	if w.Code != 400 {
		t.Errorf("cancelling launched project should be 400, got %d", w.Code)
	}
}

func TestProjectCancel(t *testing.T) {
	r, _ := setupProjectRouter(t)
	token := testutil.DefaultTestToken()

	id := createProject(t, r, token)["id"].(string)
	w := testutil.DoRequest(r, "DELETE", "/api/v1/projects/"+id, nil, token)
	if w.Code != 200 {
		t.Fatalf("cancel failed: %d %s", w.Code, w.Body.String())
	}

	// 取消后不可见
	w = testutil.DoRequest(r, "GET", "/api/v1/projects/"+id, nil, token)
	if w.Code != 404 {
		t.Errorf("cancelled project should be 404, got %d", w.Code)
	}
}
