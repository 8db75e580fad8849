package notifier

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"
	"tradenotifier/internal/infrastructure/watermark"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	batch  []trades.Trade
	err    error
	limits []int
}

func (f *fakeFeed) Fetch(ctx context.Context, limit int) ([]trades.Trade, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]trades.Trade, len(f.batch))
	copy(out, f.batch)
	return out, nil
}

type fakeSink struct {
	messages []string
	failAt   int
	err      error
}

func (s *fakeSink) Deliver(ctx context.Context, text string) error {
	if s.err != nil && len(s.messages) == s.failAt {
		return s.err
	}
	s.messages = append(s.messages, text)
	return nil
}

type failingStore struct {
	loadErr error
	saveErr error
	saved   []trades.TradeID
}

func (s *failingStore) Load(ctx context.Context) (trades.TradeID, bool, error) {
	return "", false, s.loadErr
}

func (s *failingStore) Save(ctx context.Context, id trades.TradeID) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, id)
	return nil
}

type recordingMirror struct {
	ids []trades.TradeID
	err error
}

func (m *recordingMirror) PublishTrade(ctx context.Context, trade *trades.Trade) error {
	m.ids = append(m.ids, trade.ID)
	return m.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(t *testing.T, feed *fakeFeed, store interfaces.WatermarkStore, sink *fakeSink, mirror *recordingMirror) *Service {
	t.Helper()
	opts := Options{Limit: 5, Formatter: NewFormatter(&fixedRand{value: 0.5})}
	if mirror != nil {
		opts.Mirror = mirror
	}
	svc, err := NewService(feed, store, sink, quietLogger(), opts)
	require.NoError(t, err)
	return svc
}

func TestRunNotifiesOldestFirstAndSavesNewest(t *testing.T) {
	feed := &fakeFeed{batch: batchOf("t5", "t4", "t3", "t2", "t1")}
	store := watermark.NewMemoryStoreWith("t2")
	sink := &fakeSink{}
	mirror := &recordingMirror{}
	svc := newTestService(t, feed, store, sink, mirror)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeWatermarkSaved, report.Outcome)
	assert.Equal(t, 5, report.Fetched)
	assert.Equal(t, 3, report.Resolved)
	assert.Equal(t, 3, report.Delivered)
	assert.Equal(t, []int{5}, feed.limits)
	require.Len(t, sink.messages, 3)
	assert.Equal(t, []trades.TradeID{"t3", "t4", "t5"}, mirror.ids)

	id, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, trades.TradeID("t5"), id)

	feed.batch = batchOf("t6", "t5", "t4", "t3", "t2")
	report, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)
	assert.Len(t, sink.messages, 4)

	id, _, _ = store.Load(context.Background())
	assert.Equal(t, trades.TradeID("t6"), id)
}

func TestRunTwiceWithoutNewTradesIsIdempotent(t *testing.T) {
	feed := &fakeFeed{batch: batchOf("t3", "t2", "t1")}
	store := watermark.NewMemoryStore()
	sink := &fakeSink{}
	svc := newTestService(t, feed, store, sink, nil)

	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Delivered)

	second, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoNewTrades, second.Outcome)
	assert.Zero(t, second.Delivered)
	assert.Len(t, sink.messages, 3)
}

func TestRunEmptyBatchLeavesWatermark(t *testing.T) {
	store := watermark.NewMemoryStoreWith("t9")
	svc := newTestService(t, &fakeFeed{}, store, &fakeSink{}, nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoNewTrades, report.Outcome)

	id, ok, _ := store.Load(context.Background())
	assert.True(t, ok)
	assert.Equal(t, trades.TradeID("t9"), id)
}

func TestRunFetchFailureKeepsState(t *testing.T) {
	fetchErr := &trades.FetchError{Kind: trades.FailureHTTPStatus, StatusCode: 503, Err: errors.New("unavailable")}
	store := watermark.NewMemoryStoreWith("t1")
	sink := &fakeSink{}
	svc := newTestService(t, &fakeFeed{err: fetchErr}, store, sink, nil)

	report, err := svc.Run(context.Background())
	require.Error(t, err)

	var target *trades.FetchError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, 503, target.StatusCode)
	assert.Equal(t, OutcomeFetchFailed, report.Outcome)
	assert.Empty(t, sink.messages)

	id, _, _ := store.Load(context.Background())
	assert.Equal(t, trades.TradeID("t1"), id)
}

func TestRunOutOfOrderBatchKeepsState(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := batchOf("t4", "t3", "t2", "t1")
	batch[0].ExecutedAt = base
	batch[1].ExecutedAt = base.Add(time.Minute)
	batch[2].ExecutedAt = base.Add(-time.Minute)
	store := watermark.NewMemoryStoreWith("t1")
	sink := &fakeSink{}
	svc := newTestService(t, &fakeFeed{batch: batch}, store, sink, nil)

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, trades.ErrBatchOutOfOrder))
	assert.Equal(t, OutcomeBatchRejected, report.Outcome)
	assert.Zero(t, report.Delivered)
	assert.Empty(t, sink.messages)

	id, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, trades.TradeID("t1"), id)
}

func TestRunDeliversWhenOnlyNotifiedTradesAreOutOfOrder(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := batchOf("t3", "t2", "t1")
	batch[0].ExecutedAt = base
	batch[1].ExecutedAt = base.Add(-time.Hour)
	batch[2].ExecutedAt = base.Add(-30 * time.Minute)
	store := watermark.NewMemoryStoreWith("t2")
	sink := &fakeSink{}
	svc := newTestService(t, &fakeFeed{batch: batch}, store, sink, nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWatermarkSaved, report.Outcome)
	assert.Len(t, sink.messages, 1)

	id, _, _ := store.Load(context.Background())
	assert.Equal(t, trades.TradeID("t3"), id)
}

func TestRunDeliveryFailureDoesNotAdvanceWatermark(t *testing.T) {
	deliveryErr := &trades.DeliveryError{Kind: trades.FailureHTTPStatus, StatusCode: 429, Err: errors.New("too many requests")}
	feed := &fakeFeed{batch: batchOf("t5", "t4", "t3", "t2", "t1")}
	store := watermark.NewMemoryStoreWith("t2")
	sink := &fakeSink{failAt: 1, err: deliveryErr}
	mirror := &recordingMirror{}
	svc := newTestService(t, feed, store, sink, mirror)

	report, err := svc.Run(context.Background())
	require.ErrorIs(t, err, deliveryErr)
	assert.Equal(t, OutcomePartialFailure, report.Outcome)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, []trades.TradeID{"t3"}, mirror.ids)

	id, _, _ := store.Load(context.Background())
	assert.Equal(t, trades.TradeID("t2"), id)

	// the next run re-sends t3 (at-least-once) and then completes
	sink.err = nil
	report, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Delivered)
	assert.Len(t, sink.messages, 4)
	id, _, _ = store.Load(context.Background())
	assert.Equal(t, trades.TradeID("t5"), id)
}

func TestRunUnreadableWatermarkStartsFromEmpty(t *testing.T) {
	store := &failingStore{loadErr: errors.New("permission denied")}
	sink := &fakeSink{}
	svc := newTestService(t, &fakeFeed{batch: batchOf("b", "a")}, store, sink, nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, []trades.TradeID{"b"}, store.saved)
}

func TestRunSaveFailureIsReported(t *testing.T) {
	store := &failingStore{saveErr: errors.New("disk full")}
	svc := newTestService(t, &fakeFeed{batch: batchOf("a")}, store, &fakeSink{}, nil)

	report, err := svc.Run(context.Background())
	require.Error(t, err)

	var storeErr *trades.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "save", storeErr.Op)
	assert.Equal(t, OutcomeSaveFailed, report.Outcome)
	assert.Equal(t, 1, report.Delivered)
}

func TestRunMirrorFailureIsNotFatal(t *testing.T) {
	store := watermark.NewMemoryStore()
	mirror := &recordingMirror{err: errors.New("broker down")}
	svc := newTestService(t, &fakeFeed{batch: batchOf("b", "a")}, store, &fakeSink{}, mirror)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWatermarkSaved, report.Outcome)
	assert.Len(t, mirror.ids, 2)
}

func TestRunCancelledContextStopsBeforeDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := watermark.NewMemoryStore()
	sink := &fakeSink{}
	svc := newTestService(t, &fakeFeed{batch: batchOf("a")}, store, sink, nil)

	report, err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomePartialFailure, report.Outcome)
	assert.Empty(t, sink.messages)

	_, ok, _ := store.Load(context.Background())
	assert.False(t, ok)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	logger := quietLogger()
	store := watermark.NewMemoryStore()

	_, err := NewService(nil, store, &fakeSink{}, logger, Options{Limit: 1})
	assert.ErrorIs(t, err, ErrNilFeed)
	_, err = NewService(&fakeFeed{}, nil, &fakeSink{}, logger, Options{Limit: 1})
	assert.ErrorIs(t, err, ErrNilStore)
	_, err = NewService(&fakeFeed{}, store, nil, logger, Options{Limit: 1})
	assert.ErrorIs(t, err, ErrNilSink)
	_, err = NewService(&fakeFeed{}, store, &fakeSink{}, logger, Options{})
	assert.ErrorIs(t, err, ErrBadLimit)
}
