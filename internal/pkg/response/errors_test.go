package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"ghg-workflow-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&domain.NotFoundError{Entity: "project", ID: "x"}, 404},
		{&domain.ValidationError{Field: "quantity", Rule: "must be positive"}, 400},
		{&domain.CalculationError{Field: "factor", Message: "negative"}, 400},
		{&domain.InvalidStateError{Operation: "collect", Status: domain.StatusLocked}, 400},
		{&domain.InvalidTransitionError{From: domain.StatusDraft, To: domain.StatusLocked, Denial: domain.DenialNoSuchEdge}, 400},
		{&domain.InvalidTransitionError{From: domain.StatusDraft, To: domain.StatusSubmitted, Denial: domain.DenialRoleNotPermitted}, 403},
		{&domain.PermissionError{Permission: "collect_data", Role: "L3"}, 403},
		{&domain.ConflictError{Entity: "project", ID: "x"}, 409},
		{&domain.PersistenceError{Op: "load project", Err: errors.New("conn refused")}, 503},
		{errors.New("boom"), 500},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(tc.err), "%T", tc.err)
	}
}

func render(t *testing.T, err error) (int, map[string]interface{}) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return FromError(c, err) })
	resp, e := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, e)
	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out["error"].(map[string]interface{})
}

func TestFromError_TransitionDetails(t *testing.T) {
	code, body := render(t, &domain.InvalidTransitionError{
		From: domain.StatusPendingReview, To: domain.StatusApproved, Role: "L2",
		Denial: domain.DenialRoleNotPermitted, RequiredRoles: []string{"L3"},
	})
	assert.Equal(t, 403, code)
	details := body["details"].(map[string]interface{})
	assert.Equal(t, "role_not_permitted", details["denial"])
	assert.Equal(t, []interface{}{"L3"}, details["required_roles"])
	assert.Equal(t, "PENDING_REVIEW", details["from"])
}

func TestFromError_HidesCauses(t *testing.T) {
	code, body := render(t, &domain.PersistenceError{Op: "load project", Err: errors.New("password=hunter2")})
	assert.Equal(t, 503, code)
	assert.Equal(t, "storage failure during load project", body["message"])

	code, body = render(t, errors.New("nil pointer somewhere"))
	assert.Equal(t, 500, code)
	assert.Equal(t, "Internal Server Error", body["message"])
}

func TestFromError_ValidationIssues(t *testing.T) {
	_, body := render(t, &domain.ValidationError{Rule: "calculations not compliant", Issues: []domain.Issue{{Severity: domain.SeverityError, Code: "CALC_MISMATCH", Message: "off by 1 kg"}}})
	details := body["details"].(map[string]interface{})
	issues := details["issues"].([]interface{})
	require.Len(t, issues, 1)
	assert.Equal(t, "CALC_MISMATCH", issues[0].(map[string]interface{})["code"])
}
