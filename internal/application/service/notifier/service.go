package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	trades "tradenotifier/internal/domain/entity/trades"
	interfaces "tradenotifier/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNilFeed   = errors.New("trade feed is nil")
	ErrNilStore  = errors.New("watermark store is nil")
	ErrNilSink   = errors.New("notification sink is nil")
	ErrBadLimit  = errors.New("limit must be positive")
	ErrNilLogger = errors.New("logger is nil")
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeFetchFailed    Outcome = "fetch_failed"
	OutcomeBatchRejected  Outcome = "batch_rejected"
	OutcomeNoNewTrades    Outcome = "no_new_trades"
	OutcomeWatermarkSaved Outcome = "watermark_saved"
	OutcomePartialFailure Outcome = "partial_failure"
	OutcomeSaveFailed     Outcome = "save_failed"
)

// Report summarizes one run.
type Report struct {
	RunID        uuid.UUID      `json:"run_id"`
	Outcome      Outcome        `json:"outcome"`
	Fetched      int            `json:"fetched"`
	Resolved     int            `json:"resolved"`
	Delivered    int            `json:"delivered"`
	Watermark    trades.TradeID `json:"watermark,omitempty"`
	HasWatermark bool           `json:"has_watermark"`
	Took         time.Duration  `json:"took"`
}

// Options tunes a Service.
type Options struct {
	Limit     int
	Formatter *Formatter
	// Mirror is optional; its failures are logged and never affect the watermark.
	Mirror interfaces.TradeMirror
}

// Service runs the load, fetch, resolve, notify, save cycle.
type Service struct {
	feed      interfaces.TradeFeed
	store     interfaces.WatermarkStore
	sink      interfaces.NotificationSink
	mirror    interfaces.TradeMirror
	formatter *Formatter
	limit     int
	logger    *logrus.Entry
}

func NewService(feed interfaces.TradeFeed, store interfaces.WatermarkStore, sink interfaces.NotificationSink, logger *logrus.Logger, opts Options) (*Service, error) {
	switch {
	case feed == nil:
		return nil, ErrNilFeed
	case store == nil:
		return nil, ErrNilStore
	case sink == nil:
		return nil, ErrNilSink
	case logger == nil:
		return nil, ErrNilLogger
	case opts.Limit <= 0:
		return nil, ErrBadLimit
	}
	formatter := opts.Formatter
	if formatter == nil {
		formatter = NewFormatter(nil)
	}
	return &Service{
		feed:      feed,
		store:     store,
		sink:      sink,
		mirror:    opts.Mirror,
		formatter: formatter,
		limit:     opts.Limit,
		logger:    logger.WithField("component", "notifier"),
	}, nil
}

// Run executes a single notification cycle. The watermark advances only when
// every resolved trade was delivered.
func (s *Service) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{RunID: uuid.New()}
	log := s.logger.WithField("run_id", report.RunID.String())

	watermark, ok, err := s.store.Load(ctx)
	if err != nil {
		log.WithError(&trades.StoreError{Op: "load", Err: err}).Warn("watermark unreadable, starting from empty state")
		watermark, ok = "", false
	}
	report.Watermark, report.HasWatermark = watermark, ok
	log.WithFields(logrus.Fields{
		"watermark":     watermark.String(),
		"has_watermark": ok,
	}).Debug("watermark loaded")

	batch, err := s.feed.Fetch(ctx, s.limit)
	if err != nil {
		report.Outcome = OutcomeFetchFailed
		log.WithError(err).Error("fetch trades failed")
		return s.finish(report, start), err
	}
	report.Fetched = len(batch)

	pending, err := ResolveNewTrades(batch, watermark, ok)
	if err != nil {
		report.Outcome = OutcomeBatchRejected
		log.WithError(err).Error("trade batch rejected")
		return s.finish(report, start), err
	}
	report.Resolved = len(pending)

	if len(pending) == 0 {
		report.Outcome = OutcomeNoNewTrades
		log.WithField("fetched", report.Fetched).Info("no new trades")
		return s.finish(report, start), nil
	}
	if ok && len(pending) == len(batch) {
		log.WithFields(logrus.Fields{
			"watermark": watermark.String(),
			"limit":     s.limit,
		}).Warn("watermark not found in fetched window, older trades may have been missed")
	}

	for i := range pending {
		trade := &pending[i]
		if err := ctx.Err(); err != nil {
			report.Outcome = OutcomePartialFailure
			log.WithError(err).Warn("run cancelled before all trades were delivered")
			return s.finish(report, start), err
		}
		if err := s.sink.Deliver(ctx, s.formatter.Render(*trade)); err != nil {
			report.Outcome = OutcomePartialFailure
			log.WithError(err).WithFields(logrus.Fields{
				"trade_id":  trade.ID.String(),
				"delivered": report.Delivered,
				"pending":   len(pending) - report.Delivered,
			}).Error("delivery failed, watermark not advanced")
			return s.finish(report, start), err
		}
		report.Delivered++
		s.mirrorTrade(ctx, log, trade)
	}

	newest := pending[len(pending)-1].ID
	if err := s.store.Save(ctx, newest); err != nil {
		report.Outcome = OutcomeSaveFailed
		storeErr := &trades.StoreError{Op: "save", Err: err}
		log.WithError(storeErr).WithField("trade_id", newest.String()).Error("watermark not saved, delivered trades will be notified again")
		return s.finish(report, start), storeErr
	}
	report.Watermark, report.HasWatermark = newest, true
	report.Outcome = OutcomeWatermarkSaved
	log.WithFields(logrus.Fields{
		"delivered": report.Delivered,
		"watermark": newest.String(),
	}).Info("trades notified")
	return s.finish(report, start), nil
}

func (s *Service) mirrorTrade(ctx context.Context, log *logrus.Entry, trade *trades.Trade) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.PublishTrade(ctx, trade); err != nil {
		log.WithError(err).WithField("trade_id", trade.ID.String()).Warn("mirror trade failed")
	}
}

func (s *Service) finish(report Report, start time.Time) Report {
	report.Took = time.Since(start)
	return report
}

// String renders the outcome for logs and exit messages.
func (r Report) String() string {
	return fmt.Sprintf("run %s: %s (fetched=%d resolved=%d delivered=%d)", r.RunID, r.Outcome, r.Fetched, r.Resolved, r.Delivered)
}
