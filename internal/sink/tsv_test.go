package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/metabolink/hmdbscan/internal/scan"
)

func reportPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "report.tsv")
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

func TestTSVSink_WritesHeaderAndRows(t *testing.T) {
	t.Parallel()

	path := reportPath(t)
	s, err := NewTSV(path, false, 1, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000001", Flag: scan.FlagYes}))
	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000002", Flag: scan.FlagNo}))
	require.NoError(t, s.Close())

	lines := readLines(t, path)
	require.Equal(t, []string{
		"HMDB_ID\tEndogenous_Animal",
		"HMDB0000001\tYes",
		"HMDB0000002\tNo",
	}, lines)
}

func TestTSVSink_ResumeAppendsWithoutSecondHeader(t *testing.T) {
	t.Parallel()

	path := reportPath(t)
	s, err := NewTSV(path, false, 1, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000001", Flag: scan.FlagYes}))
	require.NoError(t, s.Close())

	s, err = NewTSV(path, true, 1, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000002", Flag: scan.FlagNo}))
	require.NoError(t, s.Close())

	lines := readLines(t, path)
	require.Equal(t, []string{
		"HMDB_ID\tEndogenous_Animal",
		"HMDB0000001\tYes",
		"HMDB0000002\tNo",
	}, lines)
}

func TestTSVSink_FreshRunTruncatesPriorReport(t *testing.T) {
	t.Parallel()

	path := reportPath(t)
	s, err := NewTSV(path, false, 1, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000001", Flag: scan.FlagYes}))
	require.NoError(t, s.Close())

	s, err = NewTSV(path, false, 1, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000009", Flag: scan.FlagNo}))
	require.NoError(t, s.Close())

	lines := readLines(t, path)
	require.Equal(t, []string{
		"HMDB_ID\tEndogenous_Animal",
		"HMDB0000009\tNo",
	}, lines)
}

func TestTSVSink_FlushEveryBatchesWrites(t *testing.T) {
	t.Parallel()

	path := reportPath(t)
	s, err := NewTSV(path, false, 3, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000001", Flag: scan.FlagYes}))
	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000002", Flag: scan.FlagNo}))
	// Two rows buffered, only the header reached disk so far.
	require.Len(t, readLines(t, path), 1)

	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000003", Flag: scan.FlagYes}))
	require.Len(t, readLines(t, path), 4)
	require.NoError(t, s.Close())
}

func TestLoadResumeSet_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	set, err := LoadResumeSet(filepath.Join(t.TempDir(), "absent.tsv"), zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, set)
}

func TestLoadResumeSet_ReadsCompletedIdentifiers(t *testing.T) {
	t.Parallel()

	path := reportPath(t)
	content := "HMDB_ID\tEndogenous_Animal\n" +
		"HMDB0000001\tYes\n" +
		"hmdb0000002\tNo\n" +
		"broken-row-with-one-column\n" +
		"HMDB0000003\tYes\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	set, err := LoadResumeSet(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, set, 3)
	require.True(t, set.Contains("HMDB0000001"))
	require.True(t, set.Contains("HMDB0000002"))
	require.True(t, set.Contains("HMDB0000003"))
	require.False(t, set.Contains("HMDB0000004"))
}

func TestLoadResumeSet_RoundTripsSinkOutput(t *testing.T) {
	t.Parallel()

	path := reportPath(t)
	s, err := NewTSV(path, false, 1, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000001", Flag: scan.FlagYes}))
	require.NoError(t, s.Append(scan.Row{ID: "HMDB0000002", Flag: scan.FlagNo}))
	require.NoError(t, s.Close())

	set, err := LoadResumeSet(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.True(t, set.Contains("HMDB0000001"))
	require.True(t, set.Contains("HMDB0000002"))
}

func TestLoadResumeSet_UnreadableFileIsResumeError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory where a file is expected fails on read, not open.
	path := filepath.Join(dir, "report.tsv")
	require.NoError(t, os.Mkdir(path, 0o700))

	_, err := LoadResumeSet(path, zap.NewNop())
	var rerr *scan.ResumeError
	require.ErrorAs(t, err, &rerr)
}
