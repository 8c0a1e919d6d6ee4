package series

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/aggregator"
	"github.com/pulsewatch/pulsewatch/internal/alerting"
	"github.com/pulsewatch/pulsewatch/internal/annotations"
	"github.com/pulsewatch/pulsewatch/internal/anomaly"
	"github.com/pulsewatch/pulsewatch/internal/emission"
	"github.com/pulsewatch/pulsewatch/internal/observability/metrics"
	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/errors"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

const (
	defaultRows      = 1440
	defaultSecPerRow = 60
)

// Config describes one series instance.
type Config struct {
	Title  string   `json:"title" mapstructure:"title"`
	Fields []string `json:"fields" mapstructure:"fields"`

	// Rows is the window length in buckets; SecPerRow the bucket width.
	Rows      int   `json:"rows" mapstructure:"rows"`
	SecPerRow int64 `json:"sec_per_row" mapstructure:"sec_per_row"`

	// Anomaly is the opaque strategy descriptor. Empty disables detection
	// and reduces the series to pure aggregation and emission.
	Anomaly string `json:"anomaly" mapstructure:"anomaly"`

	// Cooldown is the minimum time between two alerts for this series.
	Cooldown time.Duration `json:"cooldown" mapstructure:"cooldown"`
}

// Series owns one title's aggregation state and runs its detect/throttle/emit
// loop. Ingestion and timer ticks are funneled through a single mutex, so a
// host may deliver them from different goroutines.
type Series struct {
	mu sync.Mutex

	title     string
	agg       *aggregator.Aggregator
	detector  anomaly.Detector
	throttle  alerting.Throttle
	store     *annotations.Store
	sink      emission.Sink
	handlers  []alerting.Handler
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	retention time.Duration
}

// New creates a series instance. The anomaly descriptor is resolved here,
// once; ticks never re-parse it.
func New(cfg Config, throttle alerting.Throttle, sink emission.Sink, handlers []alerting.Handler, m *metrics.Metrics, logger *logrus.Logger) (*Series, error) {
	if cfg.Title == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "series title is required")
	}
	if len(cfg.Fields) == 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "series needs at least one monitored field")
	}
	if cfg.Rows <= 0 {
		cfg.Rows = defaultRows
	}
	if cfg.SecPerRow <= 0 {
		cfg.SecPerRow = defaultSecPerRow
	}
	if logger == nil {
		logger = logrus.New()
	}
	if m == nil {
		m = metrics.New("")
	}

	detector, err := anomaly.Resolve(cfg.Anomaly)
	if err != nil {
		return nil, err
	}

	return &Series{
		title:     cfg.Title,
		agg:       aggregator.New(cfg.Fields, cfg.Rows, cfg.SecPerRow, logger),
		detector:  detector,
		throttle:  throttle,
		store:     annotations.NewStore(),
		sink:      sink,
		handlers:  handlers,
		metrics:   m,
		logger:    logger,
		retention: time.Duration(int64(cfg.Rows)*cfg.SecPerRow) * time.Second,
	}, nil
}

// Title returns the series identity.
func (s *Series) Title() string {
	return s.title
}

// Ingest folds one record into the window. Malformed or too-old records are
// dropped and counted; nothing here is fatal.
func (s *Series) Ingest(rec models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.agg.Ingest(rec)
	switch {
	case err == nil:
		s.metrics.RecordsIngested.WithLabelValues(s.title).Inc()
	case stderrors.Is(err, errors.ErrOutOfWindow):
		s.metrics.RecordsDropped.WithLabelValues(s.title, "out_of_window").Inc()
	case stderrors.Is(err, errors.ErrMissingTimestamp):
		s.metrics.RecordsDropped.WithLabelValues(s.title, "missing_timestamp").Inc()
	default:
		s.metrics.RecordsDropped.WithLabelValues(s.title, "other").Inc()
	}
}

// Snapshot returns the published rows and column metadata.
func (s *Series) Snapshot() ([]models.ColumnMeta, []window.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Published().Columns(), s.agg.Published().Snapshot()
}

// TimerTick runs one detect/throttle/emit cycle at tick time now. With no
// detector configured the published buffer emits unconditionally, with nil
// annotations and without touching the annotation store. A throttled tick
// skips detection entirely but still prunes and emits. Every path ends in
// emission.
func (s *Series) TimerTick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	defer func() {
		s.metrics.TickDuration.WithLabelValues(s.title).Observe(time.Since(started).Seconds())
	}()
	s.metrics.TicksTotal.WithLabelValues(s.title).Inc()

	columns := s.agg.Published().Columns()
	rows := s.agg.Published().Snapshot()

	if s.detector == nil {
		s.emit(ctx, columns, rows, nil)
		return
	}

	if s.throttle.IsThrottled(ctx, s.title, now) {
		s.metrics.AlertsSuppressed.WithLabelValues(s.title).Inc()
		s.emit(ctx, columns, rows, s.store.Prune(s.title, now, s.retention))
		return
	}

	alert, fresh := s.detector.Detect(now.UnixNano(), s.title, rows, columns)
	if alert != nil {
		s.store.Concat(s.title, fresh)
		s.throttle.RecordAlert(ctx, s.title, now)
		s.sendAlert(ctx, alert)
	}

	s.emit(ctx, columns, rows, s.store.Prune(s.title, now, s.retention))
}

func (s *Series) sendAlert(ctx context.Context, alert *models.Alert) {
	s.metrics.AlertsSent.WithLabelValues(s.title).Inc()
	for _, h := range s.handlers {
		if err := h.HandleAlert(ctx, alert); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"series":  s.title,
				"handler": h.Name(),
			}).Error("alert delivery failed")
		}
	}
}

func (s *Series) emit(ctx context.Context, columns []models.ColumnMeta, rows []window.Row, anns []models.Annotation) {
	if err := s.sink.Emit(ctx, s.title, columns, rows, anns); err != nil {
		s.metrics.EmitFailures.WithLabelValues(s.title, s.sink.Name()).Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"series": s.title,
			"sink":   s.sink.Name(),
		}).Error("emission failed")
	}
}
