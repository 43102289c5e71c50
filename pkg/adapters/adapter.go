// Package adapters turns raw source exports into lexical candidates. Adapters
// never touch the store and never see each other's output.
package adapters

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/capnteebs/parlance/pkg/apperrors"
	"github.com/capnteebs/parlance/pkg/lexicon"
	"github.com/capnteebs/parlance/pkg/logging"
	"go.uber.org/zap"
)

// Adapter parses one source's raw records into a candidate batch. A
// malformed record is skipped and counted in the batch report; only failures
// of the input itself are returned as errors.
type Adapter interface {
	Source() string
	Ingest(ctx context.Context, r io.Reader) (*lexicon.Batch, error)
}

// maxLineSize bounds a single JSON line. Wiktextract entries for common words
// run to several megabytes.
const maxLineSize = 32 * 1024 * 1024

// OpenInput opens a local export, decompressing it when the name ends in .gz.
func OpenInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
	}
	return &gzipFile{Reader: gz, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}

// eachLine calls fn for every non-blank line of r. A non-nil error from fn is
// treated as a malformed record: it is counted, logged at debug and skipped.
func eachLine(ctx context.Context, r io.Reader, batch *lexicon.Batch, logger *zap.Logger, fn func(line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		batch.Report.Processed++
		if err := fn(line); err != nil {
			skip(batch, logger, lineNo, err, zap.String("record", logging.Truncate(string(line), 120)))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s input: %w", batch.Source, err)
	}
	return ctx.Err()
}

// skip records a malformed record on the batch.
func skip(batch *lexicon.Batch, logger *zap.Logger, line int, cause error, fields ...zap.Field) {
	batch.Report.Malformed++
	fields = append(fields,
		zap.String("source", batch.Source),
		zap.Error(apperrors.NewRecordError(batch.Source, line, cause)))
	logger.Debug("skipping malformed record", fields...)
}
