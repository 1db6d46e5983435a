package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/ticketflow/pkg/cache"
	"github.com/dukex/ticketflow/pkg/metrics"
	"github.com/dukex/ticketflow/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

// NewWorkflowRepository puts the Redis definition cache in front of the store's workflow
// repository when redisURL is set. The returned close function releases the Redis client.
//
// nolint:ireturn // Returning interface is intentional, the cache is optional
func NewWorkflowRepository(
	p persistence.Persistence,
	redisURL string,
	ttl time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) (persistence.WorkflowRepository, func() error, error) {
	if redisURL == "" {
		return p.WorkflowRepository(), func() error { return nil }, nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(options)

	return cache.NewWorkflowCache(p.WorkflowRepository(), client, ttl, logger, m), client.Close, nil
}
