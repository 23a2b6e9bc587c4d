package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aquasense-alert/internal/alert"
	"aquasense-alert/internal/cache"
	"aquasense-alert/internal/dispatcher"
	"aquasense-alert/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDirectory struct {
	recipients map[string][]models.Recipient
	err        error
}

func (f *fakeDirectory) QueryRecipients(_ context.Context, deviceID string) ([]models.Recipient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recipients[deviceID], nil
}

type fakeDurable struct {
	mu       sync.Mutex
	inserted []models.Reading
	err      error
}

func (f *fakeDurable) Insert(_ context.Context, reading *models.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, *reading)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.AlertEvent
}

func (f *fakePublisher) PublishAlert(_ context.Context, event *models.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	messages []string
	result   dispatcher.Outcome
}

func (f *fakeDispatcher) Dispatch(_ context.Context, _, message string) dispatcher.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return f.result
}

type pipelineFixture struct {
	pipeline   *Pipeline
	store      *cache.RollingStore
	durable    *fakeDurable
	publisher  *fakePublisher
	dispatcher *fakeDispatcher
}

func setupPipeline(t *testing.T, recipients map[string][]models.Recipient) *pipelineFixture {
	t.Helper()

	logger := zap.NewNop()
	store := cache.NewRollingStore(48*time.Hour, 30*time.Second, nil)
	settings := cache.NewSettingsCache(&fakeDirectory{recipients: recipients}, logger)
	states := alert.NewStateMachine(nil, logger)
	durable := &fakeDurable{}
	publisher := &fakePublisher{}
	disp := &fakeDispatcher{result: dispatcher.OutcomeDelivered}

	pipeline := NewPipeline(
		NewNormalizer(nil),
		store,
		settings,
		states,
		disp,
		durable,
		publisher,
		nil,
		nil,
		logger,
		nil,
	)

	return &pipelineFixture{
		pipeline:   pipeline,
		store:      store,
		durable:    durable,
		publisher:  publisher,
		dispatcher: disp,
	}
}

func dev1Recipients() map[string][]models.Recipient {
	token := "token-1"
	return map[string][]models.Recipient{
		"dev1": {
			{UserID: "u1", DeviceID: "dev1", FCMToken: &token, LowerBoundLine1: 3, UnitsPerLine1: 1, UnitsPerLine2: 1},
		},
	}
}

func TestPipeline_ValidationErrorNoCacheMutation(t *testing.T) {
	f := setupPipeline(t, dev1Recipients())

	_, err := f.pipeline.Ingest(context.Background(), "", map[string]interface{}{"line1": 1})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, f.store.GetHistory(""))
	assert.Empty(t, f.durable.inserted)
}

func TestPipeline_ReadingCachedAndPersisted(t *testing.T) {
	f := setupPipeline(t, dev1Recipients())

	reading, err := f.pipeline.Ingest(context.Background(), "dev1", map[string]interface{}{"line1": float64(5)})

	require.NoError(t, err)
	assert.Equal(t, 5.0, reading.Line1)

	live, ok := f.store.GetLive("dev1")
	require.True(t, ok)
	assert.Equal(t, 5.0, live.Line1)
	assert.Len(t, f.durable.inserted, 1)
}

func TestPipeline_DurableFailureStillCaches(t *testing.T) {
	f := setupPipeline(t, dev1Recipients())
	f.durable.err = errors.New("store down")

	// 可用性优先：持久化失败时读数仍进入缓存，调用方不收到错误
	_, err := f.pipeline.Ingest(context.Background(), "dev1", map[string]interface{}{"line1": float64(5)})
	require.NoError(t, err)

	_, ok := f.store.GetLive("dev1")
	assert.True(t, ok)
}

func TestPipeline_ViolationFiresAlertOnce(t *testing.T) {
	f := setupPipeline(t, dev1Recipients())
	ctx := context.Background()

	// 三条连续违规读数只触发一次 new-alert
	for i := 0; i < 3; i++ {
		_, err := f.pipeline.Ingest(ctx, "dev1", map[string]interface{}{"line1": float64(1)})
		require.NoError(t, err)
	}

	assert.Len(t, f.dispatcher.messages, 1)
	assert.Contains(t, f.dispatcher.messages[0], "Line1")

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, models.EventTypeThresholdViolation, f.publisher.events[0].EventType)
	assert.True(t, f.publisher.events[0].Line1Violated)
}

func TestPipeline_RecoveryThenRealert(t *testing.T) {
	f := setupPipeline(t, dev1Recipients())
	ctx := context.Background()

	_, err := f.pipeline.Ingest(ctx, "dev1", map[string]interface{}{"line1": float64(1)})
	require.NoError(t, err)

	// 恢复读数产生一次 recovered 事件，不触发通知
	_, err = f.pipeline.Ingest(ctx, "dev1", map[string]interface{}{"line1": float64(5)})
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, models.EventTypeRecovered, f.publisher.events[1].EventType)
	assert.Len(t, f.dispatcher.messages, 1)

	// 恢复后再次违规是新事件，重新通知
	_, err = f.pipeline.Ingest(ctx, "dev1", map[string]interface{}{"line1": float64(1)})
	require.NoError(t, err)
	assert.Len(t, f.dispatcher.messages, 2)
}

func TestPipeline_NoRecipientOutcomeStillPublishesEvent(t *testing.T) {
	f := setupPipeline(t, dev1Recipients())
	f.dispatcher.result = dispatcher.OutcomeNoRecipients

	// 无人可通知不影响事件发布，也不向调用方返回错误
	_, err := f.pipeline.Ingest(context.Background(), "dev1", map[string]interface{}{"line1": float64(1)})
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, models.EventTypeThresholdViolation, f.publisher.events[0].EventType)
}

func TestPipeline_NoSettingsSkipsEvaluation(t *testing.T) {
	f := setupPipeline(t, map[string][]models.Recipient{})

	_, err := f.pipeline.Ingest(context.Background(), "dev1", map[string]interface{}{"line1": float64(0)})

	require.NoError(t, err)
	assert.Empty(t, f.dispatcher.messages)
	assert.Empty(t, f.publisher.events)
}

func TestPipeline_SettingsLookupFailureSwallowed(t *testing.T) {
	logger := zap.NewNop()
	store := cache.NewRollingStore(48*time.Hour, 30*time.Second, nil)
	settings := cache.NewSettingsCache(&fakeDirectory{err: errors.New("directory down")}, logger)
	states := alert.NewStateMachine(nil, logger)

	pipeline := NewPipeline(NewNormalizer(nil), store, settings, states, nil, nil, nil, nil, nil, logger, nil)

	// 目录故障不影响缓存写入的确认
	reading, err := pipeline.Ingest(context.Background(), "dev1", map[string]interface{}{"line1": float64(1)})
	require.NoError(t, err)
	assert.NotNil(t, reading)

	_, ok := store.GetLive("dev1")
	assert.True(t, ok)
}

func TestPipeline_EndToEndScenario(t *testing.T) {
	// dev1 配置 {lowerBoundLine1:3, unitsPerLine1:1}，读数 {line1:1} → 违规消息包含 "Line1"
	f := setupPipeline(t, dev1Recipients())

	_, err := f.pipeline.Ingest(context.Background(), "dev1", map[string]interface{}{"line1": float64(1)})
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	assert.Contains(t, f.publisher.events[0].Message, "Line1")
	assert.Len(t, f.dispatcher.messages, 1)
}
