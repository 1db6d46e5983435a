package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

const supportDocument = "../../pkg/workflow/testdata/support.yaml"

func run(t *testing.T, databaseURL string, args ...string) ([]byte, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	command := newCommand()
	command.Writer = &stdout
	command.ErrWriter = &stderr
	command.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	err := command.Run(context.Background(), append([]string{"ticketflow", "--database-url", databaseURL}, args...))

	return stdout.Bytes(), err
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))

	return v
}

func TestCLI_WorkflowImportAndTicketLifecycle(t *testing.T) {
	t.Parallel()

	db := "file://" + t.TempDir()

	_, err := run(t, db, "directory", "import", "testdata/directory.yaml")
	require.NoError(t, err)

	out, err := run(t, db, "workflow", "import", supportDocument)
	require.NoError(t, err)

	workflow := decode[models.Workflow](t, out)
	assert.Equal(t, "Support", workflow.Name)

	out, err = run(t, db, "ticket", "open", "--workflow", workflow.ID, "--title", "Mail bounces")
	require.NoError(t, err)

	ticket := decode[models.Ticket](t, out)
	require.NotNil(t, ticket.ResponsibleEmployeeID)
	assert.Equal(t, "emp-20", *ticket.ResponsibleEmployeeID)

	out, err = run(t, db, "ticket", "allowed-steps", ticket.ID)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, step := range decode[[]models.WorkflowStep](t, out) {
		names = append(names, step.StepName)
	}

	assert.Equal(t, []string{"InProgress", "Resolved", "Cancelled"}, names)

	inProgress := workflow.StepByName("InProgress")
	require.NotNil(t, inProgress)

	out, err = run(t, db, "ticket", "transition", "--actor", "alice", ticket.ID, strconv.Itoa(inProgress.StepCode))
	require.NoError(t, err)

	result := decode[services.TransitionResult](t, out)
	assert.Equal(t, "Second Line Support", result.WorkgroupName)
	assert.Equal(t, "emp-30", *result.Ticket.ResponsibleEmployeeID)

	out, err = run(t, db, "ticket", "history", ticket.ID)
	require.NoError(t, err)
	assert.Len(t, decode[[]models.HistoryEntry](t, out), 1)
}

func TestCLI_DeniedTransitionFails(t *testing.T) {
	t.Parallel()

	db := "file://" + t.TempDir()

	out, err := run(t, db, "workflow", "import", supportDocument)
	require.NoError(t, err)

	workflow := decode[models.Workflow](t, out)

	out, err = run(t, db, "ticket", "open", "--workflow", workflow.ID, "--title", "Noisy fan", "--id", "T-1")
	require.NoError(t, err)
	assert.Equal(t, "T-1", decode[models.Ticket](t, out).ID)

	// InProgress back to Open is adjacent, Cancelled back to Open is not.
	cancelled := workflow.StepByName("Cancelled")
	_, err = run(t, db, "ticket", "transition", "--actor", "alice", "T-1", strconv.Itoa(cancelled.StepCode))
	require.NoError(t, err)

	_, err = run(t, db, "ticket", "transition", "--actor", "alice", "T-1", strconv.Itoa(workflow.StepByName("Open").StepCode))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transition not permitted by workflow")

	_, err = run(t, db, "ticket", "transition", "--actor", "alice", "T-1", "not-a-number")
	assert.ErrorContains(t, err, "step-code must be a number")
}

func TestCLI_WorkflowValidate(t *testing.T) {
	t.Parallel()

	db := "file://" + t.TempDir()

	out, err := run(t, db, "workflow", "validate", supportDocument)
	require.NoError(t, err)
	assert.Len(t, decode[models.Workflow](t, out).Steps, 4)

	_, err = run(t, db, "workflow", "validate", "../../pkg/workflow/testdata/broken.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "problem(s)")

	out, err = run(t, db, "workflow", "list")
	require.NoError(t, err)
	assert.Empty(t, decode[[]models.Workflow](t, out))

	_, err = run(t, db, "workflow", "validate")
	assert.ErrorContains(t, err, "expects 1 argument")
}
