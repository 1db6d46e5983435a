package cmd_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/ticketflow/pkg/cache"
	"github.com/dukex/ticketflow/pkg/cmd"
	"github.com/dukex/ticketflow/pkg/eventbus"
	"github.com/dukex/ticketflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence_File(t *testing.T) {
	t.Parallel()

	for _, url := range []string{"file://" + t.TempDir(), t.TempDir()} {
		p, err := cmd.NewPersistence(context.Background(), slog.Default(), url)
		require.NoError(t, err)
		assert.IsType(t, &file.Persistence{}, p)
		require.NoError(t, p.HealthCheck(context.Background()))
	}
}

func TestNewEventBus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		brokers  string
		wantErr  bool
		wantType any
	}{
		{name: "none", provider: "none", wantType: eventbus.NoopEventBus{}},
		{name: "default", provider: "", wantType: eventbus.NoopEventBus{}},
		{name: "gochannel", provider: "gochannel", wantType: &eventbus.WatermillEventBus{}},
		{name: "kafka without brokers", provider: "kafka", brokers: " , ", wantErr: true},
		{name: "unknown", provider: "rabbitmq", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bus, err := cmd.NewEventBus(tt.provider, tt.brokers, slog.Default())
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.IsType(t, tt.wantType, bus)
			require.NoError(t, bus.Close())
		})
	}
}

func TestNewWorkflowRepository(t *testing.T) {
	t.Parallel()

	p := file.NewPersistence(t.TempDir())

	repo, closeFn, err := cmd.NewWorkflowRepository(p, "", time.Minute, slog.Default(), nil)
	require.NoError(t, err)
	assert.Equal(t, p.WorkflowRepository(), repo)
	require.NoError(t, closeFn())

	repo, closeFn, err = cmd.NewWorkflowRepository(p, "redis://localhost:6379/2", time.Minute, slog.Default(), nil)
	require.NoError(t, err)
	assert.IsType(t, &cache.WorkflowCache{}, repo)
	require.NoError(t, closeFn())

	_, _, err = cmd.NewWorkflowRepository(p, "http://not-redis", time.Minute, slog.Default(), nil)
	assert.Error(t, err)
}
