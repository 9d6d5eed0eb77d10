package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/charlesng35/solite/pkg/httpclient"
	"github.com/charlesng35/solite/pkg/logger"
)

// NotificationsPath is the notification service endpoint used for fan-out.
const NotificationsPath = "/api/notifications"

// createRequest is the body accepted by POST /api/notifications.
type createRequest struct {
	PostID  string `json:"post_id"`
	Message string `json:"message"`
}

// HTTPNotifier calls the notification service over HTTP, forwarding the
// caller's bearer token. A circuit breaker short-circuits calls while the
// upstream keeps failing.
type HTTPNotifier struct {
	client  *httpclient.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	tracer  trace.Tracer
}

// BreakerSettings tunes the circuit breaker around the notification service.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker once reached.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// NewHTTPNotifier constructs a notifier for the notification service at client.BaseURL().
func NewHTTPNotifier(client *httpclient.Client, settings BreakerSettings) (*HTTPNotifier, error) {
	if client == nil {
		return nil, errors.New("fanout: http client is required")
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	log := logger.WithModule("fanout")
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notification-service",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &HTTPNotifier{
		client:  client,
		breaker: breaker,
		tracer:  otel.Tracer("solite/fanout"),
	}, nil
}

// Notify posts the job to the notification service.
func (n *HTTPNotifier) Notify(ctx context.Context, job Job) error {
	ctx, span := n.tracer.Start(ctx, "fanout.Notify", trace.WithAttributes(
		attribute.String("post.id", job.PostID),
	))
	defer span.End()

	if job.BearerToken != "" {
		ctx = httpclient.WithBearerToken(ctx, job.BearerToken)
	}

	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.client.PostJSON(ctx, NotificationsPath, createRequest{
			PostID:  job.PostID,
			Message: job.Message,
		}, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("fanout: notify post %s: %w", job.PostID, err)
	}
	return nil
}

// State reports the breaker state.
func (n *HTTPNotifier) State() gobreaker.State {
	return n.breaker.State()
}
