package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/metabolink/hmdbscan/internal/progress"
)

func promEvent(stage progress.Stage) progress.Event {
	return progress.Event{
		RunID: progress.UUIDToBytes(uuid.New()),
		TS:    time.Now().UTC(),
		Stage: stage,
	}
}

func TestPrometheusSink_CountsOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	yes := promEvent(progress.StageFetchDone)
	yes.ID, yes.Flag, yes.Attempts, yes.Dur = "HMDB0000001", "Yes", 1, 120*time.Millisecond
	no := promEvent(progress.StageFetchDone)
	no.ID, no.Flag, no.Attempts, no.Dur = "HMDB0000002", "No", 2, 80*time.Millisecond
	failed := promEvent(progress.StageFetchError)
	failed.ID, failed.Attempts, failed.Dur = "HMDB0000003", 5, 3*time.Second
	skip := promEvent(progress.StageResumeSkip)
	skip.ID = "HMDB0000004"

	batch := []progress.Event{
		promEvent(progress.StageRunStart),
		yes, no, failed, skip,
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, float64(1), testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.fetchesTotal.WithLabelValues("yes")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.fetchesTotal.WithLabelValues("no")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.fetchesTotal.WithLabelValues("error")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.resumeSkips))
}

func TestPrometheusSink_CountsRunResults(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	done := promEvent(progress.StageRunDone)
	done.Dur = 90 * time.Second
	failed := promEvent(progress.StageRunError)
	failed.Dur = 5 * time.Second

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{done, failed}))

	require.Equal(t, float64(1), testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, float64(1), testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
}

func TestPrometheusSink_DoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
