package anomaly

import (
	"strconv"
	"strings"

	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/errors"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

// Detector scores the published window for anomalous behavior. Detect runs on
// every unthrottled timer tick; it returns a nil alert when nothing anomalous
// is found, and any annotations that should be attached to the series either
// way.
type Detector interface {
	Name() string
	Detect(nowNs int64, title string, rows []window.Row, columns []models.ColumnMeta) (*models.Alert, []models.Annotation)
}

// Resolve parses an opaque strategy descriptor into a detector instance. The
// descriptor is resolved once at construction time, never per tick. An empty
// descriptor disables detection and yields a nil detector, which is a valid
// mode, not an error.
//
// Supported descriptors:
//
//	zscore[:threshold[:minSamples]]    e.g. "zscore:3" or "zscore:2.5:10"
//	threshold:<column>:<limit>         e.g. "threshold:query_time:0.75"
func Resolve(descriptor string) (Detector, error) {
	if descriptor == "" {
		return nil, nil
	}

	parts := strings.Split(descriptor, ":")
	switch parts[0] {
	case "zscore":
		threshold := defaultZScoreThreshold
		minSamples := defaultMinSamples
		if len(parts) > 1 {
			v, err := strconv.ParseFloat(parts[1], 64)
			if err != nil || v <= 0 {
				return nil, errors.WrapError(errors.ErrInvalidDescriptor, errors.ErrorTypeDetection,
					errors.CodeInvalidDescriptor, "zscore threshold must be a positive number").WithDetails(descriptor)
			}
			threshold = v
		}
		if len(parts) > 2 {
			n, err := strconv.Atoi(parts[2])
			if err != nil || n < 2 {
				return nil, errors.WrapError(errors.ErrInvalidDescriptor, errors.ErrorTypeDetection,
					errors.CodeInvalidDescriptor, "zscore min samples must be an integer >= 2").WithDetails(descriptor)
			}
			minSamples = n
		}
		return NewZScoreDetector(threshold, minSamples), nil

	case "threshold":
		if len(parts) != 3 {
			return nil, errors.WrapError(errors.ErrInvalidDescriptor, errors.ErrorTypeDetection,
				errors.CodeInvalidDescriptor, "threshold descriptor must be threshold:<column>:<limit>").WithDetails(descriptor)
		}
		limit, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, errors.WrapError(errors.ErrInvalidDescriptor, errors.ErrorTypeDetection,
				errors.CodeInvalidDescriptor, "threshold limit must be a number").WithDetails(descriptor)
		}
		return NewThresholdDetector(parts[1], limit), nil

	default:
		return nil, errors.WrapError(errors.ErrUnknownStrategy, errors.ErrorTypeDetection,
			errors.CodeUnknownStrategy, "unknown anomaly strategy").WithDetails(parts[0])
	}
}
