// Package web provides HTTP handlers and REST API endpoints for workflows and ticket transitions.
package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/services"
	"github.com/dukex/ticketflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService   *services.Workflow
	transitionService *services.Transition
	validator         *validator.Validate
	logger            *slog.Logger
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	transitionService *services.Transition,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflowService:   workflowService,
		transitionService: transitionService,
		validator:         validator,
		logger:            logger,
	}
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Post("/import", h.ImportWorkflow)
	w.Post("/validate", h.ValidateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)

	t := router.Group("/tickets")
	t.Post("/", h.OpenTicket)
	t.Get("/:id", h.GetTicket)
	t.Get("/:id/allowed-steps", h.GetAllowedSteps)
	t.Get("/:id/history", h.GetHistory)
	t.Post("/:id/transitions", h.TransitionTicket)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	found, err := h.workflowService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req WorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidRequest(c, err)
	}

	created, err := h.workflowService.Create(c.Context(), req.ToModel())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateWorkflow replaces the whole definition. A version in the body must match the stored
// version.
func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req WorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidRequest(c, err)
	}

	updated, err := h.workflowService.Update(c.Context(), c.Params("id"), req.ToModel())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(updated)
}

// ImportWorkflow stores a raw YAML or JSON workflow document, creating the workflow or
// updating the one with the same name.
func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	format, err := h.documentFormat(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	imported, err := h.workflowService.Import(c.Context(), c.Body(), format)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(imported)
}

// ValidateWorkflow checks a raw document like ImportWorkflow without storing it.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	format, err := h.documentFormat(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	prepared, err := h.workflowService.Validate(c.Context(), c.Body(), format)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(prepared)
}

func (h *APIHandlers) documentFormat(c fiber.Ctx) (workflow.Format, error) {
	if name := c.Query("format"); name != "" {
		return workflow.ParseFormat(name)
	}

	if strings.Contains(c.Get(fiber.HeaderContentType), "json") {
		return workflow.FormatJSON, nil
	}

	return workflow.FormatYAML, nil
}

func (h *APIHandlers) OpenTicket(c fiber.Ctx) error {
	var req OpenTicketRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidRequest(c, err)
	}

	opened, err := h.transitionService.Open(c.Context(), &models.Ticket{
		ID:              req.ID,
		Title:           req.Title,
		WorkflowID:      req.WorkflowID,
		CurrentStepCode: req.StepCode,
	})
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(opened)
}

func (h *APIHandlers) GetTicket(c fiber.Ctx) error {
	ticket, err := h.transitionService.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(ticket)
}

func (h *APIHandlers) GetAllowedSteps(c fiber.Ctx) error {
	steps, err := h.transitionService.AllowedSteps(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(TransformAllowedSteps(steps))
}

func (h *APIHandlers) GetHistory(c fiber.Ctx) error {
	history, err := h.transitionService.History(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(history)
}

func (h *APIHandlers) TransitionTicket(c fiber.Ctx) error {
	var req TransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return invalidRequest(c, err)
	}

	result, err := h.transitionService.Transition(c.Context(), c.Params("id"), req.StepCode, req.Actor)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Ticketflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Ticketflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
