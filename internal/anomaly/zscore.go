package anomaly

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

const (
	defaultZScoreThreshold = 3.0
	defaultMinSamples      = 4
)

// ZScoreDetector flags a column when its newest bucket deviates from the mean
// of the preceding buckets by more than threshold standard deviations. Count
// columns (sum-hinted) are excluded; only the published averages are scored.
type ZScoreDetector struct {
	threshold  float64
	minSamples int
}

// NewZScoreDetector creates a z-score detector.
func NewZScoreDetector(threshold float64, minSamples int) *ZScoreDetector {
	return &ZScoreDetector{
		threshold:  threshold,
		minSamples: minSamples,
	}
}

func (z *ZScoreDetector) Name() string {
	return "zscore"
}

func (z *ZScoreDetector) Detect(nowNs int64, title string, rows []window.Row, columns []models.ColumnMeta) (*models.Alert, []models.Annotation) {
	if len(rows) < 2 {
		return nil, nil
	}

	var (
		findings    []string
		annotations []models.Annotation
		maxScore    float64
	)

	latest := rows[len(rows)-1]
	history := rows[:len(rows)-1]

	for c, meta := range columns {
		if meta.Hint == models.AggregationSum {
			continue
		}
		if !latest.Cells[c].Valid {
			continue
		}

		mean, stddev, n := columnStats(history, c)
		if n < z.minSamples || stddev == 0 {
			continue
		}

		score := math.Abs(latest.Cells[c].Value-mean) / stddev
		if score <= z.threshold {
			continue
		}
		if score > maxScore {
			maxScore = score
		}

		findings = append(findings, fmt.Sprintf("%s z-score %.2f exceeds threshold %.2f", meta.Name, score, z.threshold))
		annotations = append(annotations, models.Annotation{
			TimestampNs: latest.BucketStart * int64(time.Second),
			Text:        fmt.Sprintf("%s anomaly: value %.4f, window mean %.4f", meta.Name, latest.Cells[c].Value, mean),
		})
	}

	if len(findings) == 0 {
		return nil, nil
	}

	alert := &models.Alert{
		ID:          uuid.New().String(),
		SeriesTitle: title,
		Strategy:    z.Name(),
		Message:     strings.Join(findings, "; "),
		Score:       maxScore,
		CreatedAt:   time.Unix(0, nowNs),
	}
	return alert, annotations
}

// columnStats returns the mean and population standard deviation of the valid
// cells of one column, plus how many cells contributed.
func columnStats(rows []window.Row, col int) (mean, stddev float64, n int) {
	for _, r := range rows {
		if !r.Cells[col].Valid {
			continue
		}
		mean += r.Cells[col].Value
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	mean /= float64(n)

	var variance float64
	for _, r := range rows {
		if !r.Cells[col].Valid {
			continue
		}
		d := r.Cells[col].Value - mean
		variance += d * d
	}
	variance /= float64(n)
	return mean, math.Sqrt(variance), n
}
