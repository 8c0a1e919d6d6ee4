package emission

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/errors"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

// InfluxConfig contains configuration for the InfluxDB emission sink.
type InfluxConfig struct {
	URL          string `json:"url" mapstructure:"url"`
	Token        string `json:"token" mapstructure:"token"`
	Organization string `json:"organization" mapstructure:"organization"`
	Bucket       string `json:"bucket" mapstructure:"bucket"`
}

// InfluxSink writes each published bucket as a point in the series'
// measurement, and annotations as tagged marker points. Only cells that hold
// data are written, so sparse buckets stay sparse downstream.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *logrus.Logger
}

// NewInfluxSink creates an InfluxDB emission sink.
func NewInfluxSink(config *InfluxConfig, logger *logrus.Logger) (*InfluxSink, error) {
	if config == nil || config.URL == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "influx sink requires a URL")
	}
	if logger == nil {
		logger = logrus.New()
	}

	client := influxdb2.NewClient(config.URL, config.Token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(config.Organization, config.Bucket),
		logger:   logger,
	}, nil
}

func (s *InfluxSink) Name() string {
	return "influxdb_sink"
}

func (s *InfluxSink) Emit(ctx context.Context, title string, columns []models.ColumnMeta, rows []window.Row, annotations []models.Annotation) error {
	for _, row := range rows {
		fields := make(map[string]interface{}, len(columns))
		for c, meta := range columns {
			if !row.Cells[c].Valid {
				continue
			}
			fields[meta.Name] = row.Cells[c].Value
		}
		if len(fields) == 0 {
			continue
		}
		point := influxdb2.NewPoint(title, nil, fields, time.Unix(row.BucketStart, 0))
		if err := s.writeAPI.WritePoint(ctx, point); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "influx point write failed")
		}
	}

	for _, a := range annotations {
		point := influxdb2.NewPoint(
			title+"_annotations",
			map[string]string{"series": title},
			map[string]interface{}{"text": a.Text},
			time.Unix(0, a.TimestampNs),
		)
		if err := s.writeAPI.WritePoint(ctx, point); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "influx annotation write failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"series": title,
		"rows":   len(rows),
	}).Debug("series written to influxdb")
	return nil
}

// Close flushes and releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
