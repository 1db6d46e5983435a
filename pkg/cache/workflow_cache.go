// Package cache keeps workflow definitions in Redis in front of a persistence.WorkflowRepository.
//
// Cached definitions may be stale; transitions stay correct because the store re-checks the
// workflow version on commit and the executor invalidates the entry before retrying.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/ticketflow/pkg/metrics"
	"github.com/dukex/ticketflow/pkg/models"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ticketflow:workflow:"

// WorkflowCache implements persistence.WorkflowRepository.
type WorkflowCache struct {
	next    persistence.WorkflowRepository
	client  redis.UniversalClient
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewWorkflowCache(
	next persistence.WorkflowRepository,
	client redis.UniversalClient,
	ttl time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *WorkflowCache {
	return &WorkflowCache{
		next:    next,
		client:  client,
		ttl:     ttl,
		logger:  logger.With("module", "workflow_cache"),
		metrics: m,
	}
}

func key(workflowID string) string {
	return keyPrefix + workflowID
}

func (c *WorkflowCache) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	return c.next.GetAll(ctx)
}

func (c *WorkflowCache) GetByName(ctx context.Context, name string) (*models.Workflow, error) {
	return c.next.GetByName(ctx, name)
}

// GetByID serves the definition from Redis, loading and caching it on a miss. Redis failures
// fall back to the repository.
func (c *WorkflowCache) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	payload, err := c.client.Get(ctx, key(id)).Bytes()

	switch {
	case err == nil:
		var workflow models.Workflow

		err = json.Unmarshal(payload, &workflow)
		if err == nil {
			c.metrics.RecordCacheLookup(true)

			return &workflow, nil
		}

		c.logger.WarnContext(ctx, "discarding undecodable cache entry", "workflow_id", id, "error", err)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WarnContext(ctx, "workflow cache unavailable", "workflow_id", id, "error", err)
	}

	c.metrics.RecordCacheLookup(false)

	workflow, err := c.next.GetByID(ctx, id)
	if err != nil || workflow == nil {
		return workflow, err
	}

	payload, err = json.Marshal(workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow %s for cache: %w", id, err)
	}

	err = c.client.Set(ctx, key(id), payload, c.ttl).Err()
	if err != nil {
		c.logger.WarnContext(ctx, "failed to cache workflow", "workflow_id", id, "error", err)
	}

	return workflow, nil
}

// Save writes through to the repository and drops the cached entry whatever the outcome, so
// a conflicting save also evicts the stale copy.
func (c *WorkflowCache) Save(ctx context.Context, workflow *models.Workflow) error {
	err := c.next.Save(ctx, workflow)

	if workflow.ID != "" {
		invalidateErr := c.Invalidate(ctx, workflow.ID)
		if invalidateErr != nil {
			c.logger.WarnContext(ctx, "failed to invalidate workflow", "workflow_id", workflow.ID, "error", invalidateErr)
		}
	}

	return err
}

// Invalidate removes the cached definition of the workflow.
func (c *WorkflowCache) Invalidate(ctx context.Context, workflowID string) error {
	err := c.client.Del(ctx, key(workflowID)).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate workflow %s: %w", workflowID, err)
	}

	return nil
}
