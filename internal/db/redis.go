package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/floodwatch/internal/observability"
)

// ReportEventsChannel is the pub/sub channel report changes are announced on.
const ReportEventsChannel = "flood-report-updates"

// InitRedis connects to Redis with tracing enabled.
func InitRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return client, nil
}

// ReportEvent is the message published after a report mutation.
type ReportEvent struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id"`
}

// EventPublisher announces report changes over Redis pub/sub.
type EventPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// NewEventPublisher publishes on channel, or ReportEventsChannel when empty.
func NewEventPublisher(client redis.UniversalClient, channel string, logger *zap.Logger, metrics observability.MetricsRegistry) *EventPublisher {
	if channel == "" {
		channel = ReportEventsChannel
	}
	return &EventPublisher{client: client, channel: channel, logger: logger, metrics: metrics}
}

// Publish sends a report event. Failures are counted and returned for the
// caller to log.
func (p *EventPublisher) Publish(ctx context.Context, action, id string) error {
	payload, err := json.Marshal(ReportEvent{Entity: "report", Action: action, ID: id})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.metrics.IncrementEventPublishErrors()
		return fmt.Errorf("publish %s event on %s: %w", action, p.channel, err)
	}
	return nil
}

// Close shuts down the Redis client.
func (p *EventPublisher) Close() {
	if p != nil && p.client != nil {
		if err := p.client.Close(); err != nil {
			p.logger.Error("redis close", zap.Error(err))
		}
	}
}
