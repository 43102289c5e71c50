package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIsolated(t *testing.T) {
	a := NewCollector("parlance")
	b := NewCollector("parlance")

	a.RecordsProcessed.WithLabelValues("slang").Add(3)
	a.RecordsSkipped.WithLabelValues("slang", "malformed").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(a.RecordsProcessed.WithLabelValues("slang")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecordsProcessed.WithLabelValues("slang")))
}

func TestRegistryGathers(t *testing.T) {
	c := NewCollector("parlance")
	c.Relationships.WithLabelValues("direct").Set(2)
	c.UnresolvableSenses.Inc()

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["parlance_relationships"])
	assert.True(t, names["parlance_unresolvable_candidates_total"])
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector("parlance")
	c.AdapterFailures.WithLabelValues("slang").Inc()

	path := filepath.Join(t.TempDir(), "parlance.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `parlance_adapter_failures_total{source="slang"} 1`)

	assert.Error(t, c.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
