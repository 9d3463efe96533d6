package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/logger"
	pkgerrors "warden/pkg/errors"
	"warden/pkg/models"
	"warden/pkg/retry"
)

type stubProducer struct {
	mu        sync.Mutex
	published []publishedAction
	failFirst int
	calls     int
}

type publishedAction struct {
	topic   string
	key     string
	payload interface{}
}

func (p *stubProducer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failFirst {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, publishedAction{topic: topic, key: key, payload: payload})
	return nil
}

func (p *stubProducer) Close() error { return nil }

type stubRecorder struct {
	mu      sync.Mutex
	actions []models.Action
}

func (r *stubRecorder) Record(ctx context.Context, action models.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	return nil
}

func fastPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1.0,
	}
}

func TestDispatcherPublishesAndRecords(t *testing.T) {
	producer := &stubProducer{}
	recorder := &stubRecorder{}

	d := NewDispatcher(producer, "moderation_actions", fastPolicy(3), nil, logger.NopLogger(), WithRecorder(recorder))

	actions := []models.Action{
		{ID: "a1", Kind: models.ActionDelete, GroupID: 42, UserID: 7},
		{ID: "a2", Kind: models.ActionMute, GroupID: 42, UserID: 7, DurationSeconds: 600},
	}
	require.NoError(t, d.Dispatch(context.Background(), actions))

	require.Len(t, producer.published, 2)
	assert.Equal(t, "moderation_actions", producer.published[0].topic)
	assert.Equal(t, "42", producer.published[0].key)
	require.Len(t, recorder.actions, 2)
	assert.Equal(t, "a1", recorder.actions[0].ID)
}

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	producer := &stubProducer{failFirst: 2}

	d := NewDispatcher(producer, "moderation_actions", fastPolicy(3), nil, logger.NopLogger())

	require.NoError(t, d.Dispatch(context.Background(), []models.Action{
		{ID: "a1", Kind: models.ActionWarn, GroupID: 1, UserID: 2},
	}))

	assert.Equal(t, 3, producer.calls)
	require.Len(t, producer.published, 1)
}

func TestDispatcherRollbackOnExhaustedRetries(t *testing.T) {
	producer := &stubProducer{failFirst: 100}

	var rolledBack []models.Action
	rollback := func(action models.Action) {
		rolledBack = append(rolledBack, action)
	}

	d := NewDispatcher(producer, "moderation_actions", fastPolicy(2), rollback, logger.NopLogger())

	err := d.Dispatch(context.Background(), []models.Action{
		{ID: "a1", Kind: models.ActionMute, GroupID: 1, UserID: 2},
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsActionDeliveryFailed(err))
	assert.Empty(t, producer.published)
	require.Len(t, rolledBack, 1)
	assert.Equal(t, "a1", rolledBack[0].ID)
}

func TestDispatcherContinuesAfterFailedAction(t *testing.T) {
	// First action exhausts 2 attempts, second succeeds on call 3.
	producer := &stubProducer{failFirst: 2}

	var rolledBack []models.Action
	d := NewDispatcher(producer, "moderation_actions", fastPolicy(2), func(a models.Action) {
		rolledBack = append(rolledBack, a)
	}, logger.NopLogger())

	err := d.Dispatch(context.Background(), []models.Action{
		{ID: "a1", Kind: models.ActionDelete, GroupID: 1, UserID: 2},
		{ID: "a2", Kind: models.ActionWarn, GroupID: 1, UserID: 2},
	})

	assert.True(t, pkgerrors.IsActionDeliveryFailed(err))
	require.Len(t, rolledBack, 1)
	assert.Equal(t, "a1", rolledBack[0].ID)
	require.Len(t, producer.published, 1)
	action, ok := producer.published[0].payload.(models.Action)
	require.True(t, ok)
	assert.Equal(t, "a2", action.ID)
}
