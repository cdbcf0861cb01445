package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"manifest-relay/internal/model"
	"manifest-relay/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentRow struct {
	url string
	row model.Row
}

type fakeSink struct {
	sent   []sentRow
	failAt int // 1-based call number that fails, 0 never
	onSend func(n int)
}

func (f *fakeSink) Send(ctx context.Context, url string, row model.Row) error {
	f.sent = append(f.sent, sentRow{url: url, row: row})
	n := len(f.sent)
	if f.onSend != nil {
		f.onSend(n)
	}
	if n == f.failAt {
		return fmt.Errorf("status 500: boom")
	}
	return nil
}

type recorder struct {
	started   int
	progress  []Progress
	completed int
	failed    []error
}

func (r *recorder) Started(total int)   { r.started = total }
func (r *recorder) Progress(p Progress) { r.progress = append(r.progress, p) }
func (r *recorder) Completed(total int) { r.completed = total }
func (r *recorder) Failed(err error)    { r.failed = append(r.failed, err) }

func numbered(n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = model.Row{"#": model.Number(float64(i + 1))}
	}
	return rows
}

func TestUpload_SendsInOrderWithMarkers(t *testing.T) {
	sink := &fakeSink{}
	rec := &recorder{}
	batches := []model.Batch{
		{Category: model.CategoryPickup, Destination: "http://pick", Rows: numbered(2), Marker: model.SortMarker()},
		{Category: model.CategoryDropoff, Destination: "http://drop", Rows: numbered(1), Marker: model.SortMarker()},
	}

	err := NewUploader(sink, 0).Upload(context.Background(), batches, rec)
	require.NoError(t, err)

	require.Len(t, sink.sent, 5)
	assert.Equal(t, []string{"http://pick", "http://pick", "http://pick", "http://drop", "http://drop"},
		[]string{sink.sent[0].url, sink.sent[1].url, sink.sent[2].url, sink.sent[3].url, sink.sent[4].url})
	assert.Equal(t, "1", sink.sent[0].row["#"].String())
	assert.Equal(t, "2", sink.sent[1].row["#"].String())
	assert.Equal(t, "true", sink.sent[2].row["Sort"].String())
	assert.Equal(t, "true", sink.sent[4].row["Sort"].String())

	assert.Equal(t, 5, rec.started)
	assert.Equal(t, 5, rec.completed)
	assert.Empty(t, rec.failed)

	require.Len(t, rec.progress, 5)
	last := -1
	for _, p := range rec.progress {
		assert.GreaterOrEqual(t, p.Percent, last)
		last = p.Percent
	}
	assert.Equal(t, []int{20, 40, 60, 80, 100},
		[]int{rec.progress[0].Percent, rec.progress[1].Percent, rec.progress[2].Percent, rec.progress[3].Percent, rec.progress[4].Percent})
}

func TestUpload_StopsAtFirstFailure(t *testing.T) {
	sink := &fakeSink{failAt: 2}
	rec := &recorder{}
	batches := []model.Batch{
		{Category: model.CategoryPickup, Destination: "http://pick", Rows: numbered(3)},
		{Category: model.CategoryDropoff, Destination: "http://drop", Rows: numbered(2)},
	}

	err := NewUploader(sink, 0).Upload(context.Background(), batches, rec)
	require.Error(t, err)

	require.Len(t, sink.sent, 2)
	for _, s := range sink.sent {
		assert.Equal(t, "http://pick", s.url)
	}

	var relayErr errors.RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, 2, relayErr.Row)
	assert.Equal(t, 1, relayErr.Key)
	assert.Equal(t, "pickup", relayErr.Category)
	assert.ErrorIs(t, err, errors.ErrRelayFailed)
	assert.Contains(t, err.Error(), "boom")

	assert.Len(t, rec.progress, 1)
	assert.Zero(t, rec.completed)
	require.Len(t, rec.failed, 1)
	assert.Equal(t, err, rec.failed[0])
}

func TestUpload_FailureInSecondBatchReportsRunRow(t *testing.T) {
	sink := &fakeSink{failAt: 4}
	batches := []model.Batch{
		{Category: model.CategoryPickup, Destination: "p", Rows: numbered(2), Marker: model.SortMarker()},
		{Category: model.CategoryDropoff, Destination: "d", Rows: numbered(2), Marker: model.SortMarker()},
	}

	err := NewUploader(sink, 0).Upload(context.Background(), batches, nil)

	var relayErr errors.RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, 4, relayErr.Row)
	assert.Equal(t, 0, relayErr.Key)
	assert.Equal(t, "dropoff", relayErr.Category)
}

func TestUpload_CancelledBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &fakeSink{onSend: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	rec := &recorder{}
	batches := []model.Batch{{Category: model.CategoryPickup, Destination: "p", Rows: numbered(5)}}

	err := NewUploader(sink, 0).Upload(ctx, batches, rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRunCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sink.sent, 2)
	assert.Len(t, rec.failed, 1)
}

func TestUpload_DelayBetweenRows(t *testing.T) {
	sink := &fakeSink{}
	batches := []model.Batch{{Category: model.CategoryPickup, Destination: "p", Rows: numbered(3)}}

	start := time.Now()
	err := NewUploader(sink, 20*time.Millisecond).Upload(context.Background(), batches, nil)
	require.NoError(t, err)

	// two gaps, none before the first row
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Len(t, sink.sent, 3)
}

func TestUpload_NothingToSend(t *testing.T) {
	rec := &recorder{}
	err := NewUploader(&fakeSink{}, 0).Upload(context.Background(), nil, rec)
	require.NoError(t, err)
	assert.Zero(t, rec.started)
	assert.Empty(t, rec.progress)
	assert.Empty(t, rec.failed)
}
