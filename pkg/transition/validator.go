// Package transition decides whether a ticket may move between two steps of a workflow.
//
// The decision is a pure function of the workflow definition: it never touches storage and
// never returns an error for an ordinary refusal. A refusal is a Decision with Allowed set to
// false and a human-readable Reason.
package transition

import "github.com/dukex/ticketflow/pkg/models"

// Rule identifies which rule produced a decision.
type Rule string

const (
	RuleNone             Rule = "none"
	RuleNoop             Rule = "noop"
	RuleUnknownTarget    Rule = "unknown_target"
	RuleUnknownSource    Rule = "unknown_source"
	RuleCancelOverride   Rule = "cancel_override"
	RuleAdjacent         Rule = "adjacent"
	RuleExplicitNext     Rule = "explicit_next"
	RuleExplicitPrevious Rule = "explicit_previous"
)

// Deny reasons.
const (
	ReasonNoop            = "no-op transition"
	ReasonUnknownTarget   = "target step not in workflow"
	ReasonUnknownSource   = "current step not in workflow"
	ReasonNotPermitted    = "transition not permitted by workflow"
	ReasonWorkflowMissing = "workflow missing"
)

// Decision is the outcome of IsAllowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Rule    Rule   `json:"rule"`
}

func allow(rule Rule) Decision {
	return Decision{Allowed: true, Rule: rule}
}

func deny(rule Rule, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Rule: rule}
}

// IsAllowed decides whether a ticket on fromStepCode may move to toStepCode.
func IsAllowed(workflow *models.Workflow, fromStepCode, toStepCode int) Decision {
	if fromStepCode == toStepCode {
		return deny(RuleNoop, ReasonNoop)
	}

	toStep := workflow.StepByCode(toStepCode)
	if toStep == nil {
		return deny(RuleUnknownTarget, ReasonUnknownTarget)
	}

	// Cancellation is reachable from any step, including one the workflow no longer knows.
	if toStep.IsCancellation() {
		return allow(RuleCancelOverride)
	}

	fromStep := workflow.StepByCode(fromStepCode)
	if fromStep == nil {
		return deny(RuleUnknownSource, ReasonUnknownSource)
	}

	if toStep.Order == fromStep.Order-1 || toStep.Order == fromStep.Order+1 {
		return allow(RuleAdjacent)
	}

	// Explicit lists are directional; neither side implies the reverse.
	if fromStep.AllowsNext(toStep.StepName) {
		return allow(RuleExplicitNext)
	}

	if toStep.AllowsPrevious(fromStep.StepName) {
		return allow(RuleExplicitPrevious)
	}

	return deny(RuleNone, ReasonNotPermitted)
}

// AllowedSteps returns every step reachable from fromStepCode, in workflow order.
func AllowedSteps(workflow *models.Workflow, fromStepCode int) []*models.WorkflowStep {
	allowed := make([]*models.WorkflowStep, 0, len(workflow.Steps))

	for _, step := range workflow.Steps {
		if IsAllowed(workflow, fromStepCode, step.StepCode).Allowed {
			allowed = append(allowed, step)
		}
	}

	return allowed
}
