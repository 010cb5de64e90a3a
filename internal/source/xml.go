// Package source streams identifiers out of an HMDB XML dump.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/metabolink/hmdbscan/internal/scan"
)

// Default element names for HMDB metabolite dumps.
const (
	DefaultRecordElement = "metabolite"
	DefaultIDElement     = "accession"
)

// XMLSource extracts one identifier per record element while streaming the
// document. Peak memory is bounded by a single record subtree regardless of
// dump size. Single-pass and not restartable.
type XMLSource struct {
	file    *os.File
	parser  *xmlquery.StreamParser
	idPath  string
	logger  *zap.Logger
	closed  bool
	records int64
}

// NewXML opens path and prepares a streaming parser anchored on recordElement.
// Empty element names fall back to the HMDB defaults.
func NewXML(path, recordElement, idElement string, logger *zap.Logger) (*XMLSource, error) {
	if recordElement == "" {
		recordElement = DefaultRecordElement
	}
	if idElement == "" {
		idElement = DefaultIDElement
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}

	parser, err := xmlquery.CreateStreamParser(f, "//"+recordElement)
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("close input after parser failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("create stream parser: %w", err)
	}

	return &XMLSource{
		file:   f,
		parser: parser,
		idPath: "//" + idElement,
		logger: logger,
	}, nil
}

// Next returns the next identifier in document order. Records missing the
// identifier element are skipped, not fatal. Returns io.EOF on exhaustion
// and a *scan.SourceError if the stream itself cannot be decoded; the input
// handle is released in both cases.
func (s *XMLSource) Next(ctx context.Context) (scan.Identifier, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		node, err := s.parser.Read()
		if errors.Is(err, io.EOF) {
			s.release()
			return "", io.EOF
		}
		if err != nil {
			s.release()
			return "", &scan.SourceError{Err: fmt.Errorf("decode record %d: %w", s.records+1, err)}
		}
		s.records++

		idNode := xmlquery.FindOne(node, s.idPath)
		if idNode == nil {
			s.logger.Debug("record without identifier skipped", zap.Int64("record", s.records))
			continue
		}
		id := scan.Identifier(strings.ToUpper(strings.TrimSpace(idNode.InnerText())))
		if id == "" {
			s.logger.Debug("record with empty identifier skipped", zap.Int64("record", s.records))
			continue
		}
		return id, nil
	}
}

// Close releases the input handle. Idempotent.
func (s *XMLSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close input: %w", err)
	}
	return nil
}

func (s *XMLSource) release() {
	if err := s.Close(); err != nil {
		s.logger.Warn("release input handle", zap.Error(err))
	}
}
