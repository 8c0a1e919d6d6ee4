package emission

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

func testRows() ([]models.ColumnMeta, []window.Row) {
	columns := []models.ColumnMeta{
		{Name: "count", Unit: "count", Hint: models.AggregationSum},
		{Name: "query_time", Unit: "avg", Hint: models.AggregationNone},
	}
	rows := []window.Row{
		{BucketStart: 0, Cells: []window.Cell{{Value: 2, Valid: true}, {Value: 1.5, Valid: true}}},
		{BucketStart: 60, Cells: []window.Cell{{}, {}}},
		{BucketStart: 120, Cells: []window.Cell{{Value: 1, Valid: true}, {Value: 9, Valid: true}}},
	}
	return columns, rows
}

func TestLogSinkEmit(t *testing.T) {
	columns, rows := testRows()
	s := NewLogSink(logrus.New())
	require.NoError(t, s.Emit(context.Background(), "slow-queries", columns, rows, nil))
	require.NoError(t, s.Emit(context.Background(), "slow-queries", columns, rows, []models.Annotation{
		{TimestampNs: int64(time.Second), Text: "marker"},
	}))
}

func TestInfluxSinkWritesValidCellsOnly(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink, err := NewInfluxSink(&InfluxConfig{
		URL:          srv.URL,
		Token:        "test-token",
		Organization: "test-org",
		Bucket:       "test-bucket",
	}, logrus.New())
	require.NoError(t, err)
	defer sink.Close()

	columns, rows := testRows()
	annotations := []models.Annotation{{TimestampNs: 120 * int64(time.Second), Text: "spike"}}
	require.NoError(t, sink.Emit(context.Background(), "slow-queries", columns, rows, annotations))

	// Two data rows (the empty bucket is skipped) plus one annotation.
	require.Len(t, bodies, 3)
	assert.Contains(t, bodies[0], "slow-queries")
	assert.Contains(t, bodies[0], "query_time=1.5")
	assert.Contains(t, bodies[2], "slow-queries_annotations")
	assert.Contains(t, bodies[2], "spike")
}

func TestInfluxSinkRequiresURL(t *testing.T) {
	_, err := NewInfluxSink(nil, nil)
	assert.Error(t, err)
	_, err = NewInfluxSink(&InfluxConfig{}, nil)
	assert.Error(t, err)
}
