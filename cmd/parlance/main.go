// Command parlance builds and queries the thesaurus store.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capnteebs/parlance/pkg/config"
	"github.com/capnteebs/parlance/pkg/db"
	"github.com/capnteebs/parlance/pkg/logging"
)

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}

// execute runs one command line and releases the store and logger.
func execute(ctx context.Context, args []string, out io.Writer) error {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

// app carries what every command needs. It is filled in by the root command's
// pre-run hook.
type app struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
	conn   *sql.DB
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "parlance",
		Short:        "Aggregate thesaurus sources into a filterable synonym graph",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "parlance.yaml", "Path to YAML config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to SQLite database (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (overrides config)")

	root.AddCommand(
		newInitCmd(a),
		newIngestCmd(a),
		newResolveCmd(a),
		newLookupCmd(a),
		newStatsCmd(a),
		newTagsCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// open opens the store on first use.
func (a *app) open() (*sql.DB, error) {
	if a.conn != nil {
		return a.conn, nil
	}
	conn, err := db.Open(a.cfg.Database.Path, a.cfg.Database.BusyTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.conn = conn
	return conn, nil
}

func (a *app) close() {
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
