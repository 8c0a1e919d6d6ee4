package emission

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

// Sink receives the published series for downstream transport. When anomaly
// detection is disabled the series emits with nil annotations; when enabled,
// the pruned annotation set rides along, even on ticks that found nothing.
type Sink interface {
	Name() string
	Emit(ctx context.Context, title string, columns []models.ColumnMeta, rows []window.Row, annotations []models.Annotation) error
}

// LogSink writes an emission summary through logrus. Useful as a default
// sink and in tests.
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink creates a logging emission sink.
func NewLogSink(logger *logrus.Logger) *LogSink {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string {
	return "log_sink"
}

func (s *LogSink) Emit(_ context.Context, title string, columns []models.ColumnMeta, rows []window.Row, annotations []models.Annotation) error {
	fields := logrus.Fields{
		"series":  title,
		"rows":    len(rows),
		"columns": len(columns),
	}
	if annotations != nil {
		fields["annotations"] = len(annotations)
	}
	if len(rows) > 0 {
		fields["oldest_bucket"] = rows[0].BucketStart
		fields["newest_bucket"] = rows[len(rows)-1].BucketStart
	}
	s.logger.WithFields(fields).Debug("series emitted")
	return nil
}
