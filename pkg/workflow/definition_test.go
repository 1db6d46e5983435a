package workflow_test

import (
	"testing"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/testutil"
	"github.com/dukex/ticketflow/pkg/transition"
	"github.com/dukex/ticketflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func problemCodes(t *testing.T, err error) map[string]string {
	t.Helper()

	require.Error(t, err)
	require.True(t, workflow.IsValidationError(err))

	codes := make(map[string]string)
	for _, problem := range workflow.ProblemsOf(err) {
		codes[problem.Field] = problem.Code
	}

	return codes
}

func TestPrepare_NewWorkflow(t *testing.T) {
	t.Parallel()

	incoming := testutil.NewDraftWorkflow(" Support ",
		testutil.CreateTestStep(0, "Open", 10, models.CategoryNew, testutil.WithNext("Resolved", "Resolved")),
		testutil.CreateTestStep(0, "Resolved", 30, models.CategoryClosed),
		testutil.CreateTestStep(0, "In Progress", 20, models.CategoryInProgress, testutil.WithWorkgroup("wg-1")),
		testutil.CreateTestStep(0, "Cancelled", 40, models.CategoryLegacyCancelled),
	)

	prepared, err := workflow.Prepare(nil, incoming)
	require.NoError(t, err)

	assert.Equal(t, "Support", prepared.Name)
	assert.Equal(t, 0, prepared.Version)
	assert.Equal(t, 4, prepared.LastStepCode)

	names := make([]string, 0, len(prepared.Steps))
	for i, step := range prepared.Steps {
		names = append(names, step.StepName)
		assert.Equal(t, i+1, step.Order)
		assert.NotZero(t, step.StepCode)
	}

	assert.Equal(t, []string{"Open", "In Progress", "Resolved", "Cancelled"}, names)
	assert.Equal(t, []string{"Resolved"}, prepared.StepByName("Open").AllowedNextSteps)
	assert.Equal(t, models.CategoryCancelled, prepared.StepByName("Cancelled").CategoryCode)

	// the input is left untouched
	assert.Equal(t, models.CategoryLegacyCancelled, incoming.Steps[3].CategoryCode)
	assert.Zero(t, incoming.Steps[0].StepCode)
}

func TestPrepare_OrderFallsBackToPosition(t *testing.T) {
	t.Parallel()

	prepared, err := workflow.Prepare(nil, testutil.NewDraftWorkflow("Linear",
		testutil.CreateTestStep(0, "A", 0, models.CategoryNew),
		testutil.CreateTestStep(0, "B", 0, models.CategoryInProgress),
		testutil.CreateTestStep(0, "C", 0, models.CategoryClosed),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, prepared.StepByName("A").Order)
	assert.Equal(t, 3, prepared.StepByName("C").Order)
}

func TestPrepare_CollectsEveryProblem(t *testing.T) {
	t.Parallel()

	incoming := testutil.NewDraftWorkflow("",
		testutil.CreateTestStep(0, "Open", 1, models.CategoryNew, testutil.WithNext("Open", "Nowhere")),
		testutil.CreateTestStep(0, "Open", 2, models.CategoryInProgress),
		testutil.CreateTestStep(0, "", 2, models.CategoryCode(55)),
		testutil.CreateTestStep(7, "Done", 3, models.CategoryClosed, testutil.WithPrevious("Ghost")),
		nil,
	)

	codes := problemCodes(t, func() error {
		_, err := workflow.Prepare(nil, incoming)

		return err
	}())

	assert.Equal(t, "required", codes["name"])
	assert.Equal(t, workflow.CodeNullStep, codes["steps[4]"])
	assert.Equal(t, workflow.CodeSelfReference, codes["steps[0].allowed_next_steps[0]"])
	assert.Equal(t, workflow.CodeUnknownReference, codes["steps[0].allowed_next_steps[1]"])
	assert.Equal(t, workflow.CodeDuplicateName, codes["steps[1].step_name"])
	assert.Equal(t, workflow.CodeDuplicateOrder, codes["steps[2].order"])
	assert.Equal(t, "required", codes["steps[2].step_name"])
	assert.Equal(t, "oneof", codes["steps[2].category_code"])
	assert.Equal(t, workflow.CodeUnknownStepCode, codes["steps[3].step_code"])
	assert.Equal(t, workflow.CodeUnknownReference, codes["steps[3].allowed_previous_steps[0]"])
}

func TestPrepare_ZeroSteps(t *testing.T) {
	t.Parallel()

	_, err := workflow.Prepare(nil, testutil.NewDraftWorkflow("Empty"))

	codes := problemCodes(t, err)
	assert.Equal(t, "min", codes["steps"])
}

func TestPrepare_ExistingWorkflow(t *testing.T) {
	t.Parallel()

	existing := testutil.SupportWorkflow()
	existing.Version = 3
	existing.StepByCode(testutil.OpenCode).AllowedNextSteps = []string{"Resolved"}
	existing.StepByCode(testutil.InProgressCode).AllowedPreviousSteps = []string{"Cancelled", "Resolved"}

	t.Run("removed steps are pruned from allow-lists", func(t *testing.T) {
		t.Parallel()

		incoming := existing.Clone()
		incoming.Steps = incoming.Steps[:3] // drop Cancelled

		prepared, err := workflow.Prepare(existing, incoming)
		require.NoError(t, err)

		assert.Equal(t, []string{"Resolved"}, prepared.StepByCode(testutil.InProgressCode).AllowedPreviousSteps)
		assert.Equal(t, existing.ID, prepared.ID)
		assert.Equal(t, 3, prepared.Version)
	})

	t.Run("renamed steps are rewritten in allow-lists", func(t *testing.T) {
		t.Parallel()

		incoming := existing.Clone()
		incoming.StepByCode(testutil.ResolvedCode).StepName = "Done"

		prepared, err := workflow.Prepare(existing, incoming)
		require.NoError(t, err)

		assert.Equal(t, []string{"Done"}, prepared.StepByCode(testutil.OpenCode).AllowedNextSteps)
		assert.Equal(t, []string{"Cancelled", "Done"}, prepared.StepByCode(testutil.InProgressCode).AllowedPreviousSteps)
	})

	t.Run("new steps get fresh codes and removed codes are never reused", func(t *testing.T) {
		t.Parallel()

		incoming := existing.Clone()
		incoming.Steps = incoming.Steps[:3]
		incoming.Steps = append(incoming.Steps, testutil.CreateTestStep(0, "Withdrawn", 4, models.CategoryCancelled))

		prepared, err := workflow.Prepare(existing, incoming)
		require.NoError(t, err)

		assert.Equal(t, testutil.CancelledCode+1, prepared.StepByName("Withdrawn").StepCode)
		assert.Equal(t, testutil.CancelledCode+1, prepared.LastStepCode)
	})

	t.Run("duplicate step codes are rejected", func(t *testing.T) {
		t.Parallel()

		incoming := existing.Clone()
		incoming.Steps[1].StepCode = testutil.OpenCode

		_, err := workflow.Prepare(existing, incoming)

		codes := problemCodes(t, err)
		assert.Equal(t, workflow.CodeDuplicateStepCode, codes["steps[1].step_code"])
	})
}

func TestPrepare_LegacyCategoryMatchesCancelled(t *testing.T) {
	t.Parallel()

	build := func(category models.CategoryCode) *models.Workflow {
		prepared, err := workflow.Prepare(nil, testutil.NewDraftWorkflow("W",
			testutil.CreateTestStep(0, "Open", 1, models.CategoryNew),
			testutil.CreateTestStep(0, "Doing", 2, models.CategoryInProgress),
			testutil.CreateTestStep(0, "Done", 3, models.CategoryClosed),
			testutil.CreateTestStep(0, "Dropped", 4, category),
		))
		require.NoError(t, err)

		return prepared
	}

	legacy := build(models.CategoryLegacyCancelled)
	current := build(models.CategoryCancelled)

	assert.Equal(t, models.CategoryCancelled, legacy.StepByName("Dropped").CategoryCode)

	for _, from := range current.Steps {
		for _, to := range current.Steps {
			assert.Equal(t,
				transition.IsAllowed(current, from.StepCode, to.StepCode),
				transition.IsAllowed(legacy, from.StepCode, to.StepCode),
			)
		}
	}
}
