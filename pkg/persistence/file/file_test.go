package file_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/dukex/ticketflow/pkg/persistence/file"
	"github.com/dukex/ticketflow/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*file.Persistence, *models.Workflow) {
	t.Helper()

	store := file.NewPersistence("file://" + t.TempDir())

	workflow := testutil.SupportWorkflow()
	workflow.Version = 0
	require.NoError(t, store.WorkflowRepository().Save(context.Background(), workflow))

	return store, workflow
}

func transitionTo(ticket *models.Ticket, workflow *models.Workflow, toCode int) *models.TransitionChange {
	return &models.TransitionChange{
		TicketID:         ticket.ID,
		ExpectedStepCode: ticket.CurrentStepCode,
		WorkflowID:       workflow.ID,
		WorkflowVersion:  workflow.Version,
		ToStepCode:       toCode,
		History: &models.HistoryEntry{
			ID:        uuid.New().String(),
			TicketID:  ticket.ID,
			FieldName: models.HistoryFieldStatus,
			OldValue:  workflow.StepByCode(ticket.CurrentStepCode).StepName,
			NewValue:  workflow.StepByCode(toCode).StepName,
			ChangedBy: "alice",
			Timestamp: time.Now().UTC(),
		},
	}
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	assert.NoError(t, store.HealthCheck(context.Background()))

	missing := file.NewPersistence(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, missing.HealthCheck(context.Background()), os.ErrNotExist)
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, workflow := newStore(t)
	repo := store.WorkflowRepository()

	assert.Equal(t, 1, workflow.Version)
	assert.False(t, workflow.CreatedAt.IsZero())

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Len(t, loaded.Steps, 4)
	assert.Equal(t, 1, loaded.Version)

	byName, err := repo.GetByName(ctx, "Support")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, workflow.ID, byName.ID)

	missing, err := repo.GetByID(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWorkflowRepository_Save_GeneratesID(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	workflow := testutil.NewDraftWorkflow("Billing",
		testutil.CreateTestStep(1, "New", 1, models.CategoryNew))

	require.NoError(t, store.WorkflowRepository().Save(context.Background(), workflow))
	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, 1, workflow.Version)
}

func TestWorkflowRepository_Save_VersionConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, workflow := newStore(t)
	repo := store.WorkflowRepository()

	stale, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)

	fresh, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)

	fresh.Active = false
	require.NoError(t, repo.Save(ctx, fresh))
	assert.Equal(t, 2, fresh.Version)

	stale.Name = "Support v2"
	err = repo.Save(ctx, stale)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrWorkflowVersionConflict)
	assert.True(t, persistence.IsConflict(err))
	assert.Equal(t, 1, stale.Version)
}

func TestWorkflowRepository_Save_NameTaken(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	other := testutil.NewDraftWorkflow("Support",
		testutil.CreateTestStep(1, "New", 1, models.CategoryNew))

	err := store.WorkflowRepository().Save(context.Background(), other)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNameTaken)
}

func TestWorkflowRepository_GetAll_SortedByName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t)
	repo := store.WorkflowRepository()

	require.NoError(t, repo.Save(ctx, testutil.NewDraftWorkflow("Billing",
		testutil.CreateTestStep(1, "New", 1, models.CategoryNew))))

	workflows, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "Billing", workflows[0].Name)
	assert.Equal(t, "Support", workflows[1].Name)
}

func TestTicketRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, workflow := newStore(t)
	repo := store.TicketRepository()

	ticket := testutil.CreateTestTicket(workflow.ID, testutil.OpenCode)
	require.NoError(t, repo.Create(ctx, ticket))

	loaded, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, testutil.OpenCode, loaded.CurrentStepCode)

	err = repo.Create(ctx, ticket)
	assert.ErrorIs(t, err, persistence.ErrTicketAlreadyExists)

	history, err := repo.History(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.History(ctx, "nope")
	assert.True(t, persistence.IsTicketNotFound(err))
}

func TestTicketRepository_ApplyTransition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, workflow := newStore(t)
	repo := store.TicketRepository()

	ticket := testutil.CreateTestTicket(workflow.ID, testutil.OpenCode)
	require.NoError(t, repo.Create(ctx, ticket))

	change := transitionTo(ticket, workflow, testutil.InProgressCode)
	change.WorkgroupID = testutil.Ptr("wg-support")
	change.ResponsibleEmployeeID = testutil.Ptr("emp-1")

	updated, err := repo.ApplyTransition(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, testutil.InProgressCode, updated.CurrentStepCode)
	assert.Equal(t, "wg-support", *updated.WorkgroupID)
	assert.Equal(t, "emp-1", *updated.ResponsibleEmployeeID)

	history, err := repo.History(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Open", history[0].OldValue)
	assert.Equal(t, "InProgress", history[0].NewValue)
	assert.Equal(t, "alice", history[0].ChangedBy)
}

func TestTicketRepository_ApplyTransition_Conflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(change *models.TransitionChange)
		want   error
	}{
		{
			name:   "ticket moved since it was read",
			mutate: func(change *models.TransitionChange) { change.ExpectedStepCode = testutil.ResolvedCode },
			want:   persistence.ErrTransitionConflict,
		},
		{
			name:   "workflow saved since it was read",
			mutate: func(change *models.TransitionChange) { change.WorkflowVersion = 7 },
			want:   persistence.ErrTransitionConflict,
		},
		{
			name:   "ticket does not exist",
			mutate: func(change *models.TransitionChange) { change.TicketID = "ghost" },
			want:   persistence.ErrTicketNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store, workflow := newStore(t)
			repo := store.TicketRepository()

			ticket := testutil.CreateTestTicket(workflow.ID, testutil.OpenCode)
			require.NoError(t, repo.Create(ctx, ticket))

			change := transitionTo(ticket, workflow, testutil.InProgressCode)
			tt.mutate(change)

			_, err := repo.ApplyTransition(ctx, change)
			require.ErrorIs(t, err, tt.want)

			loaded, err := repo.GetByID(ctx, ticket.ID)
			require.NoError(t, err)
			assert.Equal(t, testutil.OpenCode, loaded.CurrentStepCode)

			history, err := repo.History(ctx, ticket.ID)
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestTicketRepository_ApplyTransition_SingleWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, workflow := newStore(t)
	repo := store.TicketRepository()

	ticket := testutil.CreateTestTicket(workflow.ID, testutil.OpenCode)
	require.NoError(t, repo.Create(ctx, ticket))

	const attempts = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := repo.ApplyTransition(ctx, transitionTo(ticket, workflow, testutil.InProgressCode))

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				wins++
			} else if persistence.IsConflict(err) {
				conflicts++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)

	history, err := repo.History(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDirectoryRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := file.NewPersistence(t.TempDir()).DirectoryRepository()

	require.NoError(t, repo.SaveWorkgroup(ctx, &models.Workgroup{ID: "wg-support", Name: "Support Desk"}))
	require.NoError(t, repo.SaveEmployee(ctx, &models.Employee{ID: "emp-2", Name: "Bob", Active: true, WorkgroupIDs: []string{"wg-support"}}))
	require.NoError(t, repo.SaveEmployee(ctx, &models.Employee{ID: "emp-1", Name: "Alice", Active: false, WorkgroupIDs: []string{"wg-support", "wg-billing"}}))
	require.NoError(t, repo.SaveEmployee(ctx, &models.Employee{ID: "emp-3", Name: "Carol", Active: true, WorkgroupIDs: []string{"wg-billing"}}))

	workgroup, err := repo.GetWorkgroup(ctx, "wg-support")
	require.NoError(t, err)
	require.NotNil(t, workgroup)
	assert.Equal(t, "Support Desk", workgroup.Name)

	missing, err := repo.GetWorkgroup(ctx, "wg-none")
	require.NoError(t, err)
	assert.Nil(t, missing)

	members, err := repo.ListByWorkgroup(ctx, "wg-support")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "emp-1", members[0].ID)
	assert.Equal(t, "emp-2", members[1].ID)

	empty, err := repo.ListByWorkgroup(ctx, "wg-none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPersistence_RejectsIDsOutsideStore(t *testing.T) {
	t.Parallel()

	tests := []string{"../workflows/evil", "../../escape", "nested/doc", `nested\doc`, "..", ".hidden", ""}

	for _, id := range tests {
		t.Run(id, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			root := t.TempDir()
			store := file.NewPersistence(root)

			workflow := testutil.SupportWorkflow()
			workflow.Version = 0
			require.NoError(t, store.WorkflowRepository().Save(ctx, workflow))

			ticket := testutil.CreateTestTicket(workflow.ID, testutil.OpenCode)
			ticket.ID = id
			err := store.TicketRepository().Create(ctx, ticket)
			require.ErrorIs(t, err, persistence.ErrInvalidID)

			loaded, err := store.TicketRepository().GetByID(ctx, id)
			require.NoError(t, err)
			assert.Nil(t, loaded)

			if id != "" {
				foreign := workflow.Clone()
				foreign.ID = id
				foreign.Name = "Foreign"
				foreign.Version = 0
				assert.ErrorIs(t, store.WorkflowRepository().Save(ctx, foreign), persistence.ErrInvalidID)
			}

			directory := store.DirectoryRepository()
			assert.ErrorIs(t, directory.SaveWorkgroup(ctx, &models.Workgroup{ID: id, Name: "Escaped"}), persistence.ErrInvalidID)
			assert.ErrorIs(t, directory.SaveEmployee(ctx, &models.Employee{ID: id, Active: true}), persistence.ErrInvalidID)

			workgroup, err := directory.GetWorkgroup(ctx, id)
			require.NoError(t, err)
			assert.Nil(t, workgroup)

			workflows, err := store.WorkflowRepository().GetAll(ctx)
			require.NoError(t, err)
			require.Len(t, workflows, 1)
			assert.Equal(t, workflow.ID, workflows[0].ID)

			entries, err := os.ReadDir(root)
			require.NoError(t, err)

			for _, entry := range entries {
				assert.True(t, entry.IsDir(), entry.Name())
			}
		})
	}
}
