package web_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/ticketflow/pkg/mocks"
	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/dukex/ticketflow/pkg/persistence/file"
	"github.com/dukex/ticketflow/pkg/services"
	"github.com/dukex/ticketflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type problemBody struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Reason string `json:"reason"`
	Errors []struct {
		Field string `json:"field"`
		Code  string `json:"code"`
	} `json:"errors"`
}

func setupTestApp(t *testing.T, p persistence.Persistence) *fiber.App {
	t.Helper()

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(p),
		services.NewTransition(p),
		validator.New(validator.WithRequiredStructEnabled()),
		slog.Default(),
	)

	app := fiber.New()
	handlers.Register(app)

	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func supportRequest() web.WorkflowRequest {
	return web.WorkflowRequest{
		Name: "Support",
		Steps: []web.StepRequest{
			{StepName: "Open", CategoryCode: 10},
			{StepName: "InProgress", CategoryCode: 20},
			{StepName: "Resolved", CategoryCode: 30},
			{StepName: "Cancelled", CategoryCode: 90},
		},
	}
}

func createSupport(t *testing.T, app *fiber.App) models.Workflow {
	t.Helper()

	resp, body := do(t, app, http.MethodPost, "/workflows", supportRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	return created
}

func openTicket(t *testing.T, app *fiber.App, workflowID string) models.Ticket {
	t.Helper()

	resp, body := do(t, app, http.MethodPost, "/tickets", web.OpenTicketRequest{Title: "VPN down", WorkflowID: workflowID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(body, &ticket))

	return ticket
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedCodes  []string
	}{
		{
			name:           "successful creation",
			requestBody:    supportRequest(),
			expectedStatus: http.StatusCreated,
		},
		{
			name: "every problem is reported",
			requestBody: web.WorkflowRequest{
				Name: "",
				Steps: []web.StepRequest{
					{StepName: "Open", CategoryCode: 15},
					{StepName: "Open", CategoryCode: 20, AllowedNextSteps: []string{"Open"}},
				},
			},
			expectedStatus: http.StatusBadRequest,
			expectedCodes:  []string{"required", "oneof", "duplicate_name", "self_reference"},
		},
		{
			name:           "negative version",
			requestBody:    web.WorkflowRequest{Name: "Support", Version: -1},
			expectedStatus: http.StatusBadRequest,
			expectedCodes:  []string{"gte"},
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t, file.NewPersistence(t.TempDir()))

			resp, body := do(t, app, http.MethodPost, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var workflow models.Workflow
				require.NoError(t, json.Unmarshal(body, &workflow))
				assert.NotEmpty(t, workflow.ID)
				assert.True(t, workflow.Active)
				assert.Equal(t, 1, workflow.Version)
				assert.Equal(t, models.CategoryCancelled, workflow.Steps[3].CategoryCode)

				return
			}

			var problem problemBody
			require.NoError(t, json.Unmarshal(body, &problem))
			assert.Equal(t, "validation_error", problem.Type)

			codes := make([]string, 0, len(problem.Errors))
			for _, e := range problem.Errors {
				codes = append(codes, e.Code)
			}

			for _, code := range tt.expectedCodes {
				assert.Contains(t, codes, code)
			}
		})
	}
}

func TestAPIHandlers_Workflows(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, file.NewPersistence(t.TempDir()))
	created := createSupport(t, app)

	resp, body := do(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Workflow
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	resp, body = do(t, app, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var all []models.Workflow
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 1)

	resp, _ = do(t, app, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	update := supportRequest()
	update.Version = created.Version
	update.Steps[0].StepCode = 1
	update.Steps[1].StepCode = 2
	update.Steps[2].StepCode = 3
	update.Steps[3].StepCode = 4
	update.Steps[2].StepName = "Done"

	resp, body = do(t, app, http.MethodPut, "/workflows/"+created.ID, update)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated models.Workflow
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Done", updated.StepByCode(3).StepName)

	// The same version again is stale now.
	resp, body = do(t, app, http.MethodPut, "/workflows/"+created.ID, update)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var problem problemBody
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "conflict", problem.Type)
}

func TestAPIHandlers_ImportWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, file.NewPersistence(t.TempDir()))

	document := `
name: Facilities
steps:
  - step_name: Reported
    category_code: 10
  - step_name: Fixed
    category_code: 30
`

	req := httptest.NewRequest(http.MethodPost, "/workflows/import?format=yaml", strings.NewReader(document))
	req.Header.Set("Content-Type", "application/yaml")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var imported models.Workflow
	require.NoError(t, json.Unmarshal(body, &imported))
	assert.Equal(t, "Facilities", imported.Name)
	assert.Len(t, imported.Steps, 2)

	resp, _ = do(t, app, http.MethodPost, "/workflows/import?format=toml", "name = 'x'")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, app, http.MethodPost, "/workflows/validate", `{"name": "Broken", "steps": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem problemBody
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.NotEmpty(t, problem.Errors)
}

func TestAPIHandlers_TransitionTicket(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, file.NewPersistence(t.TempDir()))
	workflow := createSupport(t, app)

	tests := []struct {
		name           string
		ticketID       string
		requestBody    any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "adjacent step",
			requestBody:    web.TransitionRequest{StepCode: 2, Actor: "alice"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "skipping a step is denied",
			requestBody:    web.TransitionRequest{StepCode: 3, Actor: "alice"},
			expectedStatus: http.StatusConflict,
			expectedType:   "transition_denied",
		},
		{
			name:           "unknown step",
			requestBody:    web.TransitionRequest{StepCode: 42, Actor: "alice"},
			expectedStatus: http.StatusNotFound,
			expectedType:   "not_found",
		},
		{
			name:           "unknown ticket",
			ticketID:       "missing",
			requestBody:    web.TransitionRequest{StepCode: 2, Actor: "alice"},
			expectedStatus: http.StatusNotFound,
			expectedType:   "not_found",
		},
		{
			name:           "missing actor",
			requestBody:    web.TransitionRequest{StepCode: 2},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "invalid JSON",
			requestBody:    "{",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ticketID := tt.ticketID
			if ticketID == "" {
				ticketID = openTicket(t, app, workflow.ID).ID
			}

			resp, body := do(t, app, http.MethodPost, "/tickets/"+ticketID+"/transitions", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedStatus == http.StatusOK {
				var result services.TransitionResult
				require.NoError(t, json.Unmarshal(body, &result))
				assert.Equal(t, "InProgress", result.AppliedStepName)
				assert.Equal(t, "Open", result.PreviousStepName)

				return
			}

			var problem problemBody
			require.NoError(t, json.Unmarshal(body, &problem))
			assert.Equal(t, tt.expectedType, problem.Type)

			if tt.expectedType == "transition_denied" {
				assert.Equal(t, "transition not permitted by workflow", problem.Reason)
			}
		})
	}
}

func TestAPIHandlers_TicketQueries(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, file.NewPersistence(t.TempDir()))
	workflow := createSupport(t, app)
	ticket := openTicket(t, app, workflow.ID)

	resp, body := do(t, app, http.MethodGet, "/tickets/"+ticket.ID+"/allowed-steps", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var steps []web.StepSummary
	require.NoError(t, json.Unmarshal(body, &steps))
	assert.Equal(t, []web.StepSummary{{StepCode: 2, StepName: "InProgress"}, {StepCode: 4, StepName: "Cancelled"}}, steps)

	resp, _ = do(t, app, http.MethodPost, "/tickets/"+ticket.ID+"/transitions", web.TransitionRequest{StepCode: 4, Actor: "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/tickets/"+ticket.ID+"/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []models.HistoryEntry
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "Cancelled", history[0].NewValue)
	assert.Equal(t, "bob", history[0].ChangedBy)

	resp, body = do(t, app, http.MethodGet, "/tickets/"+ticket.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Ticket
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, 4, fetched.CurrentStepCode)

	resp, _ = do(t, app, http.MethodGet, "/tickets/missing/history", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_OpenTicketOnMissingWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, file.NewPersistence(t.TempDir()))

	resp, _ := do(t, app, http.MethodPost, "/tickets", web.OpenTicketRequest{Title: "Lost", WorkflowID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/tickets", web.OpenTicketRequest{WorkflowID: "missing"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_OpenTicketRejectsPathLikeIDs(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, file.NewPersistence(t.TempDir()))
	workflow := createSupport(t, app)

	for _, id := range []string{"../workflows/evil", "nested/ticket", "..", ".hidden"} {
		resp, body := do(t, app, http.MethodPost, "/tickets", web.OpenTicketRequest{ID: id, Title: "VPN down", WorkflowID: workflow.ID})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, id)

		var problem problemBody
		require.NoError(t, json.Unmarshal(body, &problem))
		assert.Equal(t, "validation_error", problem.Type, id)
	}

	resp, body := do(t, app, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var all []models.Workflow
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 1)
	assert.Equal(t, workflow.ID, all[0].ID)
}

func TestAPIHandlers_UpdateWithoutStepCodes(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, file.NewPersistence(t.TempDir()))
	workflow := createSupport(t, app)
	ticket := openTicket(t, app, workflow.ID)

	resp, body := do(t, app, http.MethodPut, "/workflows/"+workflow.ID, supportRequest())
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated models.Workflow
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, workflow.LastStepCode, updated.LastStepCode)

	for _, step := range workflow.Steps {
		assert.Equal(t, step.StepCode, updated.StepByName(step.StepName).StepCode, step.StepName)
	}

	resp, body = do(t, app, http.MethodPost, "/tickets/"+ticket.ID+"/transitions", web.TransitionRequest{StepCode: 2, Actor: "alice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestAPIHandlers_InternalErrorHidesDetail(t *testing.T) {
	t.Parallel()

	p := mocks.NewMockPersistence()
	p.GetMockTicketRepository().On("GetByID", mock.Anything, "t-1").Return(nil, errors.New("connection reset by peer"))

	app := setupTestApp(t, p)

	resp, body := do(t, app, http.MethodGet, "/tickets/t-1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var problem problemBody
	require.NoError(t, json.Unmarshal(body, &problem))
	assert.Equal(t, "internal_error", problem.Type)
	assert.NotContains(t, string(body), "connection reset")
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		healthErr      error
		expectedStatus int
		expectedState  string
	}{
		{name: "healthy", expectedStatus: http.StatusOK, expectedState: "healthy"},
		{name: "unhealthy", healthErr: errors.New("down"), expectedStatus: http.StatusInternalServerError, expectedState: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := mocks.NewMockPersistence()
			p.On("HealthCheck", mock.Anything).Return(tt.healthErr)

			app := setupTestApp(t, p)

			resp, body := do(t, app, http.MethodGet, "/health", nil)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var health map[string]any
			require.NoError(t, json.Unmarshal(body, &health))
			assert.Equal(t, tt.expectedState, health["status"])
		})
	}

}
