package ingest

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/capnteebs/parlance/pkg/adapters"
)

// Source pairs an adapter with the input it reads.
type Source struct {
	Adapter adapters.Adapter
	Open    func(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a local export; .gz files are decompressed.
func FileSource(a adapters.Adapter, path string) Source {
	return Source{Adapter: a, Open: func(context.Context) (io.ReadCloser, error) {
		return adapters.OpenInput(path)
	}}
}

// ReaderSource reads r.
func ReaderSource(a adapters.Adapter, r io.Reader) Source {
	return Source{Adapter: a, Open: func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}}
}

// SlangFeedSource fetches terms from a slang feed at run time.
func SlangFeedSource(a adapters.Adapter, feed *adapters.SlangFeed, terms []string) Source {
	return Source{Adapter: a, Open: func(ctx context.Context) (io.ReadCloser, error) {
		r, err := feed.Download(ctx, terms)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(r), nil
	}}
}

// ReadTerms reads one term per line, skipping blanks and # comments.
func ReadTerms(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var terms []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	return terms, nil
}
