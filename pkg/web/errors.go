package web

import (
	"errors"
	"log/slog"

	"github.com/dukex/ticketflow/pkg/services"
	"github.com/dukex/ticketflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// validationProblem carries every defect found in a request.
type validationProblem struct {
	*problems.DefaultProblem

	Errors []workflow.Problem `json:"errors"`
}

// deniedProblem explains why the workflow refused a transition.
type deniedProblem struct {
	*problems.DefaultProblem

	Reason string `json:"reason"`
	Rule   string `json:"rule,omitempty"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func invalid(c fiber.Ctx, detail string, found []workflow.Problem) error {
	problem := validationProblem{
		DefaultProblem: problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("validation_error").
			WithDetail(detail),
		Errors: found,
	}

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// invalidRequest reports validator failures on a request body in the same shape as workflow
// validation errors.
func invalidRequest(c fiber.Ctx, err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return badRequest(c, err.Error())
	}

	found := make([]workflow.Problem, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		found = append(found, workflow.Problem{
			Field:   fieldErr.Field(),
			Code:    fieldErr.Tag(),
			Message: fieldErr.Error(),
		})
	}

	return invalid(c, "request body is invalid", found)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, logger *slog.Logger, err error) error {
	var deniedErr *services.DeniedError

	switch {
	case errors.As(err, &deniedErr):
		problem := deniedProblem{
			DefaultProblem: problems.NewStatusProblem(409).
				WithInstance(c.Path()).
				WithType("transition_denied").
				WithDetail(deniedErr.Error()),
			Reason: deniedErr.Reason,
			Rule:   string(deniedErr.Rule),
		}

		return c.Status(fiber.StatusConflict).JSON(problem)

	case workflow.IsValidationError(err):
		return invalid(c, "workflow definition is invalid", workflow.ProblemsOf(err))

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsNotFoundError(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("not_found").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		logger.ErrorContext(c.Context(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)

		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithDetail("internal error")

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
