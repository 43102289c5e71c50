package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capnteebs/parlance/pkg/adapters"
	"github.com/capnteebs/parlance/pkg/ingest"
	"github.com/capnteebs/parlance/pkg/lexicon"
	"github.com/capnteebs/parlance/pkg/metrics"
	"github.com/capnteebs/parlance/pkg/query"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database initialized at %s\n", a.cfg.Database.Path)
			return nil
		},
	}
}

type ingestFlags struct {
	metricsFile string
	dictionary  string
	phrases     string
	embeddings  string
	slang       string
	slangTerms  string
}

func newIngestCmd(a *app) *cobra.Command {
	var f ingestFlags
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest sources and rebuild the relationship graph",
		Long: `Ingest reads every given source in parallel, stores its senses, phrases and
relationship candidates, then resolves and activates a new run. A source that
fails marks the run partial; its previously stored candidates stay in effect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := a.sources(f)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no sources given: use --dictionary, --phrases, --embeddings, --slang or --slang-terms")
			}
			conn, err := a.open()
			if err != nil {
				return err
			}
			m := metrics.NewCollector("parlance")
			p, err := ingest.NewPipeline(conn, a.cfg, a.logger, m)
			if err != nil {
				return err
			}
			report, err := p.Run(cmd.Context(), sources)
			if merr := a.exportMetrics(f.metricsFile, m); merr != nil && err == nil {
				err = merr
			}
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&f.dictionary, "dictionary", "", "Wiktextract JSON lines dump (.gz supported)")
	cmd.Flags().StringVar(&f.phrases, "phrases", "", "Wiktextract dump to read idioms and phrases from")
	cmd.Flags().StringVar(&f.embeddings, "embeddings", "", "Sense embeddings as JSON lines")
	cmd.Flags().StringVar(&f.slang, "slang", "", "Slang definitions export (JSON)")
	cmd.Flags().StringVar(&f.slangTerms, "slang-terms", "", "File of terms to fetch from the slang feed")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write run metrics to this file in Prometheus text format")
	return cmd
}

func (a *app) sources(f ingestFlags) ([]ingest.Source, error) {
	cfg := a.cfg
	var out []ingest.Source
	if f.dictionary != "" {
		out = append(out, ingest.FileSource(adapters.NewDictionary(cfg.Ingest.MaxExamples, a.logger), f.dictionary))
	}
	if f.phrases != "" {
		out = append(out, ingest.FileSource(adapters.NewPhrases(a.logger), f.phrases))
	}
	if f.embeddings != "" {
		sem := adapters.NewSemantic(adapters.SemanticConfig{
			MinSimilarity: cfg.Semantic.MinSimilarity,
			MaxPerSense:   cfg.Semantic.MaxPerSense,
			Concurrency:   cfg.Semantic.Concurrency,
		}, a.logger)
		out = append(out, ingest.FileSource(sem, f.embeddings))
	}
	if f.slang != "" && f.slangTerms != "" {
		return nil, fmt.Errorf("--slang and --slang-terms both feed the slang source; pass one")
	}
	slang := adapters.NewSlang(cfg.Slang.MaxDefinitions, a.logger)
	if f.slang != "" {
		out = append(out, ingest.FileSource(slang, f.slang))
	}
	if f.slangTerms != "" {
		terms, err := ingest.ReadTerms(f.slangTerms)
		if err != nil {
			return nil, fmt.Errorf("read slang terms: %w", err)
		}
		feed := adapters.NewSlangFeed(adapters.SlangFeedConfig{
			BaseURL:       cfg.Slang.BaseURL,
			Timeout:       cfg.Slang.Timeout,
			RatePerSecond: cfg.Slang.RatePerSecond,
			Retry:         cfg.RetryPolicy(),
		}, a.logger)
		a.logger.Info("fetching slang feed", zap.Int("terms", len(terms)))
		out = append(out, ingest.SlangFeedSource(slang, feed, terms))
	}
	return out, nil
}

// exportMetrics writes the run's metrics for the node exporter textfile
// collector. An empty path disables it.
func (a *app) exportMetrics(path string, m *metrics.Collector) error {
	if path == "" {
		return nil
	}
	if err := m.WriteTextfile(path); err != nil {
		return err
	}
	a.logger.Debug("metrics written", zap.String("path", path))
	return nil
}

func newResolveCmd(a *app) *cobra.Command {
	var metricsFile string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Rebuild the relationship graph from stored candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.open()
			if err != nil {
				return err
			}
			m := metrics.NewCollector("parlance")
			p, err := ingest.NewPipeline(conn, a.cfg, a.logger, m)
			if err != nil {
				return err
			}
			report, err := p.Resolve(cmd.Context())
			if merr := a.exportMetrics(metricsFile, m); merr != nil && err == nil {
				err = merr
			}
			if err != nil {
				return fmt.Errorf("resolution failed: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write run metrics to this file in Prometheus text format")
	return cmd
}

func newLookupCmd(a *app) *cobra.Command {
	var (
		filters   query.Filters
		minBucket string
	)
	cmd := &cobra.Command{
		Use:   "lookup <term>",
		Short: "Look up a word's senses, synonyms and phrases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := lexicon.ParseBucket(minBucket)
			if err != nil {
				return err
			}
			filters.MinBucket = b

			conn, err := a.open()
			if err != nil {
				return err
			}
			res, err := query.NewEngine(conn, a.logger).Lookup(cmd.Context(), args[0], filters)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringSliceVar(&filters.Register, "register", nil, "Allowed register tags (e.g. slang,formal)")
	cmd.Flags().StringSliceVar(&filters.Region, "region", nil, "Allowed region tags (e.g. british,us)")
	cmd.Flags().StringSliceVar(&filters.Era, "era", nil, "Allowed era tags (e.g. modern,archaic)")
	cmd.Flags().StringVar(&minBucket, "min-bucket", "", "Weakest bucket to report: direct, related or contextual")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print entity counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.open()
			if err != nil {
				return err
			}
			stats, err := query.NewEngine(conn, a.logger).Stats(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newTagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with usage counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.open()
			if err != nil {
				return err
			}
			tags, err := query.NewEngine(conn, a.logger).Tags(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tags)
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
