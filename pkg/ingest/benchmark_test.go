package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/capnteebs/parlance/pkg/adapters"
	"github.com/capnteebs/parlance/pkg/db"
	"github.com/capnteebs/parlance/pkg/metrics"
	"github.com/capnteebs/parlance/pkg/resolver"
)

// dictionaryLines generates n entries, each listing its two neighbours as
// synonyms.
func dictionaryLines(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, `{"word":"word%d","pos":"noun","lang_code":"en","senses":[{"glosses":["meaning number %d"],"synonyms":[{"word":"word%d"},{"word":"word%d"}]}]}`+"\n",
			i, i, (i+1)%n, (i+2)%n)
	}
	return sb.String()
}

func benchmarkPipelineRun(b *testing.B, entries, batchSize int) {
	input := dictionaryLines(entries)
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		conn, err := db.Open(filepath.Join(b.TempDir(), "bench.db"), 0)
		if err != nil {
			b.Fatalf("failed to open db: %v", err)
		}
		p := &Pipeline{
			DB:        conn,
			Policy:    resolver.DefaultPolicy(),
			Workers:   2,
			BatchSize: batchSize,
			Metrics:   metrics.NewCollector("bench"),
		}
		src := ReaderSource(adapters.NewDictionary(0, nil), strings.NewReader(input))
		b.StartTimer()

		if _, err := p.Run(context.Background(), []Source{src}); err != nil {
			b.Fatalf("run failed: %v", err)
		}

		b.StopTimer()
		conn.Close()
		b.StartTimer()
	}
}

func BenchmarkPipelineRun_Batch50(b *testing.B)  { benchmarkPipelineRun(b, 1000, 50) }
func BenchmarkPipelineRun_Batch500(b *testing.B) { benchmarkPipelineRun(b, 1000, 500) }
