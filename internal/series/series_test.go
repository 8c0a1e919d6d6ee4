package series

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/alerting"
	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

type emitCall struct {
	rows        []window.Row
	annotations []models.Annotation
}

type captureSink struct {
	calls []emitCall
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Emit(_ context.Context, _ string, _ []models.ColumnMeta, rows []window.Row, anns []models.Annotation) error {
	s.calls = append(s.calls, emitCall{rows: rows, annotations: anns})
	return nil
}

type captureHandler struct {
	alerts []*models.Alert
}

func (h *captureHandler) Name() string { return "capture" }

func (h *captureHandler) HandleAlert(_ context.Context, a *models.Alert) error {
	h.alerts = append(h.alerts, a)
	return nil
}

// scriptedDetector alerts on every invocation and counts how often it runs.
type scriptedDetector struct {
	invocations int
}

func (d *scriptedDetector) Name() string { return "scripted" }

func (d *scriptedDetector) Detect(nowNs int64, title string, rows []window.Row, _ []models.ColumnMeta) (*models.Alert, []models.Annotation) {
	d.invocations++
	return &models.Alert{
			ID:          "scripted-alert",
			SeriesTitle: title,
			Strategy:    d.Name(),
			Message:     "anomalous",
			CreatedAt:   time.Unix(0, nowNs),
		}, []models.Annotation{
			{TimestampNs: nowNs, Text: "anomalous"},
		}
}

func record(tsSec int64, qt float64) models.Record {
	return models.Record{
		TimestampNs: tsSec * int64(time.Second),
		Fields:      map[string]float64{"query_time": qt},
	}
}

func newSeries(t *testing.T, cfg Config, sink *captureSink, handler *captureHandler) *Series {
	t.Helper()
	s, err := New(cfg, alerting.NewMemoryThrottle(cfg.Cooldown), sink, []alerting.Handler{handler}, nil, nil)
	require.NoError(t, err)
	return s
}

func TestNewValidatesConfig(t *testing.T) {
	sink := &captureSink{}
	_, err := New(Config{Fields: []string{"query_time"}}, alerting.NewMemoryThrottle(0), sink, nil, nil, nil)
	assert.Error(t, err, "missing title")

	_, err = New(Config{Title: "t"}, alerting.NewMemoryThrottle(0), sink, nil, nil, nil)
	assert.Error(t, err, "missing fields")

	_, err = New(Config{Title: "t", Fields: []string{"f"}, Anomaly: "bogus"}, alerting.NewMemoryThrottle(0), sink, nil, nil, nil)
	assert.Error(t, err, "bad descriptor")
}

func TestTickWithoutDetectorEmitsUnconditionally(t *testing.T) {
	sink := &captureSink{}
	handler := &captureHandler{}
	s := newSeries(t, Config{
		Title:     "slow-queries",
		Fields:    []string{"query_time"},
		Rows:      3,
		SecPerRow: 60,
	}, sink, handler)

	s.Ingest(record(0, 1))
	s.Ingest(record(30, 3))

	for i := 0; i < 3; i++ {
		s.TimerTick(context.Background(), time.Unix(int64(100+i), 0))
	}

	require.Len(t, sink.calls, 3)
	for _, call := range sink.calls {
		assert.Nil(t, call.annotations, "no-detector emission must carry nil annotations")
	}
	assert.Empty(t, handler.alerts)
}

func TestTickAlertsAndThrottles(t *testing.T) {
	sink := &captureSink{}
	handler := &captureHandler{}
	s := newSeries(t, Config{
		Title:     "slow-queries",
		Fields:    []string{"query_time"},
		Rows:      3,
		SecPerRow: 60,
		Anomaly:   "zscore:3",
		Cooldown:  60 * time.Second,
	}, sink, handler)
	detector := &scriptedDetector{}
	s.detector = detector

	s.Ingest(record(30, 1))

	// First tick fires the alert.
	s.TimerTick(context.Background(), time.Unix(1000, 0))
	require.Len(t, handler.alerts, 1)
	assert.Equal(t, 1, detector.invocations)

	// Second tick inside the cooldown: detection skipped, alert
	// suppressed, emission still happens with the pruned annotations.
	s.TimerTick(context.Background(), time.Unix(1030, 0))
	assert.Len(t, handler.alerts, 1)
	assert.Equal(t, 1, detector.invocations, "throttled tick must not invoke the detector")

	require.Len(t, sink.calls, 2)
	require.NotNil(t, sink.calls[1].annotations)
	assert.Len(t, sink.calls[1].annotations, 1)

	// Past the cooldown the detector runs again.
	s.TimerTick(context.Background(), time.Unix(1060, 0))
	assert.Len(t, handler.alerts, 2)
	assert.Equal(t, 2, detector.invocations)
}

func TestTickPrunesAnnotationsBeyondWindowSpan(t *testing.T) {
	sink := &captureSink{}
	handler := &captureHandler{}
	s := newSeries(t, Config{
		Title:     "slow-queries",
		Fields:    []string{"query_time"},
		Rows:      3,
		SecPerRow: 60, // retention span: 180s
		Cooldown:  time.Second,
	}, sink, handler)
	s.detector = &scriptedDetector{}

	s.Ingest(record(30, 1))
	s.TimerTick(context.Background(), time.Unix(1000, 0))
	require.Len(t, sink.calls, 1)
	require.Len(t, sink.calls[0].annotations, 1)

	// 200s later the annotation from t=1000 is outside rows*secPerRow.
	s.TimerTick(context.Background(), time.Unix(1200, 0))
	require.Len(t, sink.calls, 2)
	for _, a := range sink.calls[1].annotations {
		assert.GreaterOrEqual(t, a.TimestampNs, time.Unix(1200-180, 0).UnixNano())
	}
}

func TestIngestDroppedRecordDoesNotDisturbPublishedState(t *testing.T) {
	sink := &captureSink{}
	s := newSeries(t, Config{
		Title:     "slow-queries",
		Fields:    []string{"query_time"},
		Rows:      3,
		SecPerRow: 60,
	}, sink, &captureHandler{})

	s.Ingest(record(300, 2))
	_, before := s.Snapshot()

	s.Ingest(record(10, 99))       // out of window
	s.Ingest(models.Record{})      // no timestamp
	_, after := s.Snapshot()

	assert.Equal(t, before, after)
}

func TestDefaultsApplied(t *testing.T) {
	s, err := New(Config{Title: "t", Fields: []string{"f"}},
		alerting.NewMemoryThrottle(0), &captureSink{}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(1440*60)*time.Second, s.retention)
}
