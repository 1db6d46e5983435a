package mocks

import (
	"context"

	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetByName(ctx context.Context, name string) (*models.Workflow, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

// MockTicketRepository is a mock implementation of persistence.TicketRepository interface.
type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	args := m.Called(ctx, ticket)

	return args.Error(0)
}

func (m *MockTicketRepository) ApplyTransition(ctx context.Context, change *models.TransitionChange) (*models.Ticket, error) {
	args := m.Called(ctx, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketRepository) History(ctx context.Context, ticketID string) ([]*models.HistoryEntry, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.HistoryEntry), args.Error(1)
}

// MockDirectoryRepository is a mock implementation of persistence.DirectoryRepository interface.
type MockDirectoryRepository struct {
	mock.Mock
}

func (m *MockDirectoryRepository) ListByWorkgroup(ctx context.Context, workgroupID string) ([]*models.Employee, error) {
	args := m.Called(ctx, workgroupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Employee), args.Error(1)
}

func (m *MockDirectoryRepository) GetWorkgroup(ctx context.Context, workgroupID string) (*models.Workgroup, error) {
	args := m.Called(ctx, workgroupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workgroup), args.Error(1)
}

func (m *MockDirectoryRepository) SaveWorkgroup(ctx context.Context, workgroup *models.Workgroup) error {
	args := m.Called(ctx, workgroup)

	return args.Error(0)
}

func (m *MockDirectoryRepository) SaveEmployee(ctx context.Context, employee *models.Employee) error {
	args := m.Called(ctx, employee)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	workflowRepo  *MockWorkflowRepository
	ticketRepo    *MockTicketRepository
	directoryRepo *MockDirectoryRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		workflowRepo:  &MockWorkflowRepository{},
		ticketRepo:    &MockTicketRepository{},
		directoryRepo: &MockDirectoryRepository{},
	}
}

func (m *MockPersistence) GetMockWorkflowRepository() *MockWorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) GetMockTicketRepository() *MockTicketRepository {
	return m.ticketRepo
}

func (m *MockPersistence) GetMockDirectoryRepository() *MockDirectoryRepository {
	return m.directoryRepo
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) TicketRepository() persistence.TicketRepository {
	return m.ticketRepo
}

func (m *MockPersistence) DirectoryRepository() persistence.DirectoryRepository {
	return m.directoryRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
