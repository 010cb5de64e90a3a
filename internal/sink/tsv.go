// Package sink persists completed rows to the tab-separated report.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/metabolink/hmdbscan/internal/scan"
)

// Report column headers. The header row is written only when the file is
// new or empty, so resumed runs keep appending below the original one.
var header = []string{"HMDB_ID", "Endogenous_Animal"}

// TSVSink appends rows to an on-disk TSV file. Writes are flushed every
// FlushEvery rows (default every row) so a crash loses at most the last
// unflushed batch and never corrupts prior rows. Callers must honor the
// single-writer rule; the sink does no locking of its own.
type TSVSink struct {
	file       *os.File
	writer     *csv.Writer
	flushEvery int
	pending    int
	logger     *zap.Logger
}

// NewTSV opens (or creates) the report at path. With resume the file is
// opened for append so prior rows survive; without it the file is truncated,
// matching a fresh run.
func NewTSV(path string, resume bool, flushEvery int, logger *zap.Logger) (*TSVSink, error) {
	if flushEvery <= 0 {
		flushEvery = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'

	info, err := f.Stat()
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("close report after stat failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("stat report %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return nil, &scan.SinkError{Err: fmt.Errorf("write header: %w", err)}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, &scan.SinkError{Err: fmt.Errorf("flush header: %w", err)}
		}
	}

	return &TSVSink{
		file:       f,
		writer:     w,
		flushEvery: flushEvery,
		logger:     logger,
	}, nil
}

// Append writes one row and flushes per the configured batch size. Any
// write or flush failure is a *scan.SinkError and the run must abort.
func (s *TSVSink) Append(row scan.Row) error {
	if err := s.writer.Write([]string{string(row.ID), string(row.Flag)}); err != nil {
		return &scan.SinkError{Err: fmt.Errorf("append row %s: %w", row.ID, err)}
	}
	s.pending++
	if s.pending >= s.flushEvery {
		s.writer.Flush()
		if err := s.writer.Error(); err != nil {
			return &scan.SinkError{Err: fmt.Errorf("flush report: %w", err)}
		}
		s.pending = 0
	}
	return nil
}

// Close flushes outstanding rows and syncs the file to disk.
func (s *TSVSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return &scan.SinkError{Err: fmt.Errorf("final flush: %w", err)}
	}
	if err := s.file.Sync(); err != nil {
		s.logger.Warn("sync report", zap.Error(err))
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}

// LoadResumeSet reads the identifiers already present in the report at path.
// A missing file yields an empty set. Rows that do not match the expected
// two-column shape are skipped with a warning. An unreadable file surfaces a
// *scan.ResumeError; the caller decides whether that is fatal.
func LoadResumeSet(path string, logger *zap.Logger) (scan.ResumeSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return scan.ResumeSet{}, nil
	}
	if err != nil {
		return nil, &scan.ResumeError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("close report after resume load", zap.Error(cerr))
		}
	}()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	set := scan.ResumeSet{}
	line := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &scan.ResumeError{Path: path, Err: err}
		}
		line++
		if len(record) != len(header) {
			logger.Warn("malformed report row skipped",
				zap.Int("line", line),
				zap.Int("columns", len(record)),
			)
			continue
		}
		if record[0] == header[0] {
			continue
		}
		id := scan.Identifier(strings.ToUpper(strings.TrimSpace(record[0])))
		if id == "" {
			logger.Warn("report row with empty identifier skipped", zap.Int("line", line))
			continue
		}
		set[id] = struct{}{}
	}
	return set, nil
}
