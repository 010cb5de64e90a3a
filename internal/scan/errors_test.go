package scan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchErrorUnwrapAndMessage(t *testing.T) {
	t.Parallel()

	inner := errors.New("unexpected status 503")
	var err error = &FetchError{
		ID:       "HMDB0000001",
		Kind:     KindHTTPStatus,
		Status:   503,
		Attempts: 5,
		Err:      inner,
	}

	require.ErrorIs(t, err, inner)
	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, 5, ferr.Attempts)
	require.Contains(t, err.Error(), "HMDB0000001")
	require.Contains(t, err.Error(), "status 503")
}

func TestFatalErrorsUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	require.ErrorIs(t, &SourceError{Err: inner}, inner)
	require.ErrorIs(t, &SinkError{Err: inner}, inner)
	require.ErrorIs(t, &ResumeError{Path: "out.tsv", Err: inner}, inner)
}

func TestResumeSetContains(t *testing.T) {
	t.Parallel()

	set := ResumeSet{"HMDB0000001": {}}
	require.True(t, set.Contains("HMDB0000001"))
	require.False(t, set.Contains("HMDB0000002"))
	require.False(t, ResumeSet(nil).Contains("HMDB0000001"))
}

func TestCountersSnapshot(t *testing.T) {
	t.Parallel()

	var c Counters
	c.AddProduced()
	c.AddProduced()
	c.AddDispatched()
	c.AddSucceeded()
	c.AddFailed()
	c.AddSkipped()

	snap := c.Snapshot()
	require.Equal(t, int64(2), snap.Produced)
	require.Equal(t, int64(1), snap.Dispatched)
	require.Equal(t, int64(1), snap.Succeeded)
	require.Equal(t, int64(1), snap.Failed)
	require.Equal(t, int64(1), snap.Skipped)
}
