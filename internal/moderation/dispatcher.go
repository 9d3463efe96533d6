package moderation

import (
	"context"
	"strconv"
	"time"

	"warden/internal/broker"
	"warden/internal/logger"
	"warden/pkg/circuitbreaker"
	pkgerrors "warden/pkg/errors"
	"warden/pkg/metrics"
	"warden/pkg/models"
	"warden/pkg/retry"
)

// ActionRecorder persists dispatched actions for later inspection.
type ActionRecorder interface {
	Record(ctx context.Context, action models.Action) error
}

// Dispatcher publishes action descriptors to the outbound topic. On
// delivery failure it rolls the local restriction back so the engine's
// state never claims a sanction the transport did not apply.
type Dispatcher struct {
	producer broker.Producer
	topic    string
	policy   retry.Policy
	rollback func(models.Action)
	breaker  *circuitbreaker.Wrapper
	recorder ActionRecorder
	logger   logger.Logger
}

type DispatcherOption func(*Dispatcher)

func WithBreaker(w *circuitbreaker.Wrapper) DispatcherOption {
	return func(d *Dispatcher) {
		d.breaker = w
	}
}

func WithRecorder(r ActionRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

func NewDispatcher(producer broker.Producer, topic string, policy retry.Policy, rollback func(models.Action), log logger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		producer: producer,
		topic:    topic,
		policy:   policy,
		rollback: rollback,
		logger:   log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch publishes each action in order. A failed action is rolled
// back and skipped; the remaining actions are still attempted. When
// any action failed, the returned error carries the
// ACTION_DELIVERY_FAILED code so callers can report the partial
// outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []models.Action) error {
	var failed int
	var lastErr error
	for _, action := range actions {
		if err := d.publish(ctx, action); err != nil {
			failed++
			lastErr = err
			metrics.ActionDeliveryFailuresTotal.WithLabelValues(string(action.Kind)).Inc()
			if d.rollback != nil {
				d.rollback(action)
			}
			d.logger.ErrorwCtx(ctx, "Action delivery failed, local restriction rolled back",
				"error", err,
				"action_id", action.ID,
				"kind", action.Kind,
				"group_id", action.GroupID,
				"user_id", action.UserID,
			)
			continue
		}

		metrics.IncActionEmitted(string(action.Kind), action.Rule)

		if d.recorder != nil {
			if err := d.recorder.Record(ctx, action); err != nil {
				d.logger.WarnwCtx(ctx, "Failed to record dispatched action",
					"error", err,
					"action_id", action.ID,
				)
			}
		}
	}

	if failed > 0 {
		return pkgerrors.ErrActionDeliveryFailed.WithCause(lastErr).WithDetail("failed_actions", failed)
	}
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, action models.Action) error {
	// Key by group so actions for one group stay ordered.
	key := strconv.FormatInt(action.GroupID, 10)

	return retry.RetryWithCallback(ctx, d.policy, func() error {
		if d.breaker != nil {
			_, err := d.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
				return nil, d.producer.Publish(ctx, d.topic, key, action)
			})
			return err
		}
		return d.producer.Publish(ctx, d.topic, key, action)
	}, func(attempt int, err error, nextDelay time.Duration) {
		d.logger.WarnwCtx(ctx, "Retrying action delivery",
			"attempt", attempt,
			"error", err,
			"next_delay", nextDelay,
			"action_id", action.ID,
		)
	})
}
