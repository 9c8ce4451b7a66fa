package workflow

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ghg-workflow-backend/internal/application/lifecycle"
	"ghg-workflow-backend/internal/application/reporting"
	wf "ghg-workflow-backend/internal/application/workflow"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/infrastructure/database"
	"ghg-workflow-backend/internal/middleware"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// actors maps the X-Role test header to a fixed actor per lane.
var actors = map[string]domain.Actor{
	constants.RoleDataEntry:   {ID: uuid.New(), Role: constants.RoleDataEntry},
	constants.RoleCalculation: {ID: uuid.New(), Role: constants.RoleCalculation},
	constants.RoleReviewer:    {ID: uuid.New(), Role: constants.RoleReviewer},
	constants.RoleApprover:    {ID: uuid.New(), Role: constants.RoleApprover},
}

func setupWorkflowApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	m, err := wf.New(wf.Config{DB: db})
	require.NoError(t, err)
	rep := &reporting.Service{DB: db, Graph: m.Graph()}
	o, err := lifecycle.New(lifecycle.Config{DB: db, Machine: m, Cache: rep})
	require.NoError(t, err)
	require.NoError(t, db.Create(&domain.ReasonCode{Code: "DQ001", Description: "Incomplete data", Category: "Data Quality", IsActive: true}).Error)
	require.NoError(t, db.Create(&domain.Criteria{ID: 1, Scope: 2, Category: "Purchased Electricity", Unit: "kWh", IsActive: true}).Error)

	h := &Handlers{Orchestrator: o, Reporting: rep}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if a, ok := actors[c.Get("X-Role")]; ok {
			c.Locals("actor", a)
		}
		return c.Next()
	})
	g := app.Group("/workflow")
	g.Post("/collection/:id/collect", h.Collect)
	g.Get("/collection/:id/records", h.Records)
	g.Get("/collection/:id/aggregate", h.Aggregate)
	g.Post("/collection/:id/submit", h.Submit)
	g.Post("/transformation/:id/map", h.Map)
	g.Post("/transformation/:id/transform", h.Transform)
	g.Post("/transformation/:id/update-totals", middleware.AuthorizePermission(constants.RecomputeTotals), h.UpdateTotals)
	g.Post("/transformation/:id/submit-review", h.SubmitReview)
	g.Post("/verification/:id/approve", h.Approve)
	g.Post("/verification/:id/reject", h.Reject)
	g.Post("/final-review/:id/approve", h.FinalApprove)
	g.Post("/final-review/:id/archive", h.Archive)
	return app, db
}

func do(t *testing.T, app *fiber.App, role, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func newProject(t *testing.T, db *gorm.DB) domain.Project {
	p := domain.Project{Name: "FY26 inventory", Organization: "Acme", ReportingYear: 2026, Status: domain.StatusDraft, CreatedBy: actors[constants.RoleDataEntry].ID}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestLifecycleOverHTTP(t *testing.T) {
	app, db := setupWorkflowApp(t)
	p := newProject(t, db)
	base := "/workflow/"
	id := p.ID.String()

	status, out := do(t, app, constants.RoleDataEntry, http.MethodPost, base+"collection/"+id+"/collect", `{"criteria_id":1,"quantity":"100","unit":"kWh"}`)
	require.Equal(t, fiber.StatusCreated, status, out)
	recordID := out["data"].(map[string]interface{})["record"].(map[string]interface{})["id"].(string)

	status, out = do(t, app, constants.RoleDataEntry, http.MethodGet, base+"collection/"+id+"/records", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, out["metadata"].(map[string]interface{})["count"])

	status, _ = do(t, app, constants.RoleDataEntry, http.MethodPost, base+"collection/"+id+"/submit", `{"comments":"ready"}`)
	require.Equal(t, fiber.StatusOK, status)

	status, out = do(t, app, constants.RoleCalculation, http.MethodPost, base+"transformation/"+id+"/map", "")
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, string(domain.StatusUnderCalculation), out["data"].(map[string]interface{})["status"])

	status, out = do(t, app, constants.RoleCalculation, http.MethodPost, base+"transformation/"+id+"/transform",
		`{"activity_record_id":"`+recordID+`","emission_factor":"0.5","factor_source":"Ecoinvent v3.9","scope":2,"category":"Purchased electricity"}`)
	require.Equal(t, fiber.StatusCreated, status, out)

	status, _ = do(t, app, constants.RoleCalculation, http.MethodPost, base+"transformation/"+id+"/update-totals", "")
	require.Equal(t, fiber.StatusOK, status)

	status, out = do(t, app, constants.RoleCalculation, http.MethodPost, base+"transformation/"+id+"/submit-review", "")
	require.Equal(t, fiber.StatusOK, status, out)
	project := out["data"].(map[string]interface{})["project"].(map[string]interface{})
	assert.Equal(t, string(domain.StatusPendingReview), project["status"])

	status, _ = do(t, app, constants.RoleReviewer, http.MethodPost, base+"verification/"+id+"/approve", `{"comments":"looks right"}`)
	require.Equal(t, fiber.StatusOK, status)

	status, out = do(t, app, constants.RoleApprover, http.MethodPost, base+"final-review/"+id+"/approve", `{"comments":"signed off"}`)
	require.Equal(t, fiber.StatusOK, status, out)
	project = out["data"].(map[string]interface{})["project"].(map[string]interface{})
	assert.Equal(t, string(domain.StatusLocked), project["status"])

	status, out = do(t, app, constants.RoleApprover, http.MethodPost, base+"final-review/"+id+"/archive", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ARCHIVED", out["data"].(map[string]interface{})["status"])

	status, _ = do(t, app, constants.RoleDataEntry, http.MethodPost, base+"collection/"+id+"/collect", `{"criteria_id":1,"quantity":"5"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestErrorsMapToStatus(t *testing.T) {
	app, db := setupWorkflowApp(t)
	p := newProject(t, db)
	id := p.ID.String()

	status, out := do(t, app, constants.RoleDataEntry, http.MethodPost, "/workflow/collection/"+id+"/submit", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	details := out["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.NotEmpty(t, details["issues"])

	status, _ = do(t, app, "", http.MethodPost, "/workflow/collection/"+id+"/submit", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, constants.RoleDataEntry, http.MethodPost, "/workflow/collection/not-a-uuid/submit", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, constants.RoleDataEntry, http.MethodPost, "/workflow/collection/"+uuid.NewString()+"/collect", `{"criteria_id":1,"quantity":"1"}`)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, constants.RoleDataEntry, http.MethodPost, "/workflow/transformation/"+id+"/map", "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, constants.RoleDataEntry, http.MethodPost, "/workflow/transformation/"+id+"/update-totals", "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, constants.RoleDataEntry, http.MethodPost, "/workflow/collection/"+id+"/collect", `{"criteria_id":`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, out = do(t, app, constants.RoleDataEntry, http.MethodPost, "/workflow/collection/"+id+"/collect", `{"criteria_id":9999,"quantity":"1"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "criteria_id", out["error"].(map[string]interface{})["details"].(map[string]interface{})["field"])
}

func TestReject_RequiresReasonCode(t *testing.T) {
	app, db := setupWorkflowApp(t)
	p := newProject(t, db)
	require.NoError(t, db.Model(&domain.Project{}).Where("id = ?", p.ID).Update("status", domain.StatusPendingReview).Error)
	id := p.ID.String()

	status, _ := do(t, app, constants.RoleReviewer, http.MethodPost, "/workflow/verification/"+id+"/reject", `{"comments":"factor outdated"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, out := do(t, app, constants.RoleReviewer, http.MethodPost, "/workflow/verification/"+id+"/reject", `{"comments":"factor outdated","reason_code":"DQ001"}`)
	require.Equal(t, fiber.StatusOK, status, out)
	project := out["data"].(map[string]interface{})["project"].(map[string]interface{})
	assert.Equal(t, string(domain.StatusRejected), project["status"])
}
