package anomaly

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

// ThresholdDetector flags a single named column whenever its newest bucket
// value crosses a static limit.
type ThresholdDetector struct {
	column string
	limit  float64
}

// NewThresholdDetector creates a static threshold detector for one column.
func NewThresholdDetector(column string, limit float64) *ThresholdDetector {
	return &ThresholdDetector{column: column, limit: limit}
}

func (d *ThresholdDetector) Name() string {
	return "threshold"
}

func (d *ThresholdDetector) Detect(nowNs int64, title string, rows []window.Row, columns []models.ColumnMeta) (*models.Alert, []models.Annotation) {
	if len(rows) == 0 {
		return nil, nil
	}

	col := -1
	for c, meta := range columns {
		if meta.Name == d.column {
			col = c
			break
		}
	}
	if col < 0 {
		return nil, nil
	}

	latest := rows[len(rows)-1]
	cell := latest.Cells[col]
	if !cell.Valid || cell.Value <= d.limit {
		return nil, nil
	}

	alert := &models.Alert{
		ID:          uuid.New().String(),
		SeriesTitle: title,
		Strategy:    d.Name(),
		Message:     fmt.Sprintf("%s %.4f exceeds limit %.4f", d.column, cell.Value, d.limit),
		Score:       cell.Value / d.limit,
		CreatedAt:   time.Unix(0, nowNs),
	}
	annotations := []models.Annotation{{
		TimestampNs: latest.BucketStart * int64(time.Second),
		Text:        fmt.Sprintf("%s crossed %.4f", d.column, d.limit),
	}}
	return alert, annotations
}
