// Package workflow prepares workflow definitions for storage: it normalizes legacy input,
// keeps allow-list references consistent across edits, validates the whole step graph and
// assigns step codes.
package workflow

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// Prepare turns an incoming definition into the definition to store.
//
// existing is the currently stored version, or nil when the workflow is new. The incoming
// workflow is not modified. On success the returned workflow carries the identity and the
// expected version of existing, renumbered orders and codes for every step.
func Prepare(existing, incoming *models.Workflow) (*models.Workflow, error) {
	prepared := incoming.Clone()

	var problems []Problem

	prepared.Steps, problems = dropNullSteps(prepared.Steps)

	normalize(prepared)

	if existing != nil {
		maintainReferences(existing, prepared)
	}

	problems = append(problems, checkFields(prepared)...)
	problems = append(problems, checkGraph(existing, prepared)...)

	if len(problems) > 0 {
		return nil, NewValidationError(problems...)
	}

	slices.SortStableFunc(prepared.Steps, func(a, b *models.WorkflowStep) int {
		return cmp.Compare(a.Order, b.Order)
	})

	for i, step := range prepared.Steps {
		step.Order = i + 1
	}

	assignStepCodes(existing, prepared)

	if existing != nil {
		prepared.ID = existing.ID
		prepared.Version = existing.Version
		prepared.CreatedAt = existing.CreatedAt
	} else {
		prepared.Version = 0
	}

	return prepared, nil
}

func dropNullSteps(steps []*models.WorkflowStep) ([]*models.WorkflowStep, []Problem) {
	var problems []Problem

	kept := make([]*models.WorkflowStep, 0, len(steps))

	for i, step := range steps {
		if step == nil {
			problems = append(problems, Problem{
				Field:   fmt.Sprintf("steps[%d]", i),
				Code:    CodeNullStep,
				Message: "step must not be null",
			})

			continue
		}

		kept = append(kept, step)
	}

	return kept, problems
}

func normalize(workflow *models.Workflow) {
	workflow.Name = strings.TrimSpace(workflow.Name)

	// Definitions without any order fall back to list position.
	unordered := !slices.ContainsFunc(workflow.Steps, func(step *models.WorkflowStep) bool {
		return step.Order != 0
	})

	for i, step := range workflow.Steps {
		if unordered {
			step.Order = i + 1
		}

		step.StepName = strings.TrimSpace(step.StepName)
		step.CategoryCode = step.CategoryCode.Normalize()
		step.AllowedNextSteps = normalizeNames(step.AllowedNextSteps)
		step.AllowedPreviousSteps = normalizeNames(step.AllowedPreviousSteps)

		if step.WorkgroupID != nil && strings.TrimSpace(*step.WorkgroupID) == "" {
			step.WorkgroupID = nil
		}
	}
}

func normalizeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}

	out := make([]string, 0, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}

	return out
}

// maintainReferences rewrites allow-list entries for steps renamed since the stored version
// and prunes entries naming steps that were removed.
func maintainReferences(existing, incoming *models.Workflow) {
	renamed := make(map[string]string)
	removed := make(map[string]bool)

	for _, stored := range existing.Steps {
		current := incoming.StepByCode(stored.StepCode)

		switch {
		case current == nil:
			removed[stored.StepName] = true
		case current.StepName != stored.StepName:
			renamed[stored.StepName] = current.StepName
		}
	}

	// A removed name taken over by a new step keeps its references.
	for name := range removed {
		if incoming.StepByName(name) != nil {
			delete(removed, name)
		}
	}

	if len(renamed) == 0 && len(removed) == 0 {
		return
	}

	rewrite := func(names []string) []string {
		out := make([]string, 0, len(names))

		for _, name := range names {
			if removed[name] {
				continue
			}

			if newName, ok := renamed[name]; ok {
				name = newName
			}

			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}

		if len(out) == 0 {
			return nil
		}

		return out
	}

	for _, step := range incoming.Steps {
		step.AllowedNextSteps = rewrite(step.AllowedNextSteps)
		step.AllowedPreviousSteps = rewrite(step.AllowedPreviousSteps)
	}
}

func checkFields(workflow *models.Workflow) []Problem {
	err := validate.Struct(workflow)
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []Problem{{Field: "workflow", Code: "invalid", Message: err.Error()}}
	}

	problems := make([]Problem, 0, len(fieldErrors))

	for _, fieldErr := range fieldErrors {
		problems = append(problems, Problem{
			Field:   fieldPath(fieldErr.Namespace()),
			Code:    fieldErr.Tag(),
			Message: fieldMessage(fieldErr),
		})
	}

	return problems
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}

	return path
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fieldErr.Param() + " characters"
	case "min":
		return "workflow must have at least one step"
	case "oneof":
		return fmt.Sprintf("unknown category %d, allowed: 10, 20, 30, 40", fieldErr.Value())
	default:
		return "failed on the '" + fieldErr.Tag() + "' rule"
	}
}

func checkGraph(existing, workflow *models.Workflow) []Problem {
	var problems []Problem

	names := make(map[string]int)
	orders := make(map[int]int)
	codes := make(map[int]int)

	for i, step := range workflow.Steps {
		field := fmt.Sprintf("steps[%d]", i)

		if step.StepName != "" {
			if first, seen := names[step.StepName]; seen {
				problems = append(problems, Problem{
					Field:   field + ".step_name",
					Code:    CodeDuplicateName,
					Message: fmt.Sprintf("step name %q is already used by steps[%d]", step.StepName, first),
				})
			} else {
				names[step.StepName] = i
			}
		}

		if first, seen := orders[step.Order]; seen {
			problems = append(problems, Problem{
				Field:   field + ".order",
				Code:    CodeDuplicateOrder,
				Message: fmt.Sprintf("order %d is already used by steps[%d]", step.Order, first),
			})
		} else {
			orders[step.Order] = i
		}

		problems = append(problems, checkStepCode(existing, step, field, codes, i)...)
	}

	for i, step := range workflow.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		problems = append(problems, checkReferences(step, field+".allowed_next_steps", step.AllowedNextSteps, names)...)
		problems = append(problems, checkReferences(step, field+".allowed_previous_steps", step.AllowedPreviousSteps, names)...)
	}

	return problems
}

func checkStepCode(existing *models.Workflow, step *models.WorkflowStep, field string, codes map[int]int, index int) []Problem {
	if step.StepCode == 0 {
		return nil
	}

	if existing == nil || existing.StepByCode(step.StepCode) == nil {
		return []Problem{{
			Field:   field + ".step_code",
			Code:    CodeUnknownStepCode,
			Message: fmt.Sprintf("step code %d does not belong to this workflow; omit it for new steps", step.StepCode),
		}}
	}

	if first, seen := codes[step.StepCode]; seen {
		return []Problem{{
			Field:   field + ".step_code",
			Code:    CodeDuplicateStepCode,
			Message: fmt.Sprintf("step code %d is already used by steps[%d]", step.StepCode, first),
		}}
	}

	codes[step.StepCode] = index

	return nil
}

func checkReferences(step *models.WorkflowStep, field string, references []string, names map[string]int) []Problem {
	var problems []Problem

	for j, reference := range references {
		if reference == "" {
			continue
		}

		entry := fmt.Sprintf("%s[%d]", field, j)

		if reference == step.StepName {
			problems = append(problems, Problem{
				Field:   entry,
				Code:    CodeSelfReference,
				Message: fmt.Sprintf("step %q cannot reference itself", step.StepName),
			})

			continue
		}

		if _, ok := names[reference]; !ok {
			problems = append(problems, Problem{
				Field:   entry,
				Code:    CodeUnknownReference,
				Message: fmt.Sprintf("step %q does not exist in this workflow", reference),
			})
		}
	}

	return problems
}

func assignStepCodes(existing, workflow *models.Workflow) {
	last := 0

	if existing != nil {
		last = existing.LastStepCode

		for _, step := range existing.Steps {
			last = max(last, step.StepCode)
		}
	}

	for _, step := range workflow.Steps {
		if step.StepCode == 0 {
			last++
			step.StepCode = last
		}
	}

	workflow.LastStepCode = last
}
