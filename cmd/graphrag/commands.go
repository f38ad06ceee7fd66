package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/graphrag-core/internal/app"
	"github.com/yungbote/graphrag-core/internal/config"
	"github.com/yungbote/graphrag-core/internal/data/candidates"
	"github.com/yungbote/graphrag-core/internal/data/db"
	"github.com/yungbote/graphrag-core/internal/platform/envutil"
	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/rag/pipeline"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "graphrag",
		Short:         "Graph-augmented retrieval and answer generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (JSON or YAML)")
	cmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newAnalyzeCmd(opts),
		newSeedCmd(opts),
	)
	return cmd
}

// load reads config and builds the logger. CLI commands default to production logging so
// JSON output on stdout stays clean.
func (o *rootOptions) load(defaultLogMode string) (*config.Config, *logger.Logger, error) {
	if o.configPath != "" {
		if err := os.Setenv("GRAPHRAG_CONFIG_PATH", o.configPath); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(envutil.String("LOG_MODE", defaultLogMode))
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load("development")
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				log.Sync()
				return err
			}
			serveErr := a.Serve(ctx)
			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return errors.Join(serveErr, a.Close(closeCtx))
		},
	}
}

type askOptions struct {
	mode    string
	topK    int
	maxHops int
	async   bool
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question and print the structured answer as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := pipeline.Mode(strings.ToLower(opts.mode))
			if mode != pipeline.ModeVector && mode != pipeline.ModeHybrid {
				return fmt.Errorf("unknown --mode %q (vector|hybrid)", opts.mode)
			}
			return withApp(cmd.Context(), root, func(ctx context.Context, a *app.App) error {
				question := strings.Join(args, " ")
				popts := pipeline.Options{Mode: mode, TopK: opts.topK, MaxHops: opts.maxHops}
				if !opts.async {
					ans, err := a.Pipeline.Retrieve(ctx, question, popts)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), ans)
				}
				res, err := submitAndWait(ctx, a.Pipeline, question, popts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", string(pipeline.ModeVector), "Retrieval mode: vector or hybrid")
	cmd.Flags().IntVar(&opts.topK, "top-k", 0, "Documents to retrieve (0 uses the pipeline default)")
	cmd.Flags().IntVar(&opts.maxHops, "max-hops", 0, "Graph traversal depth (0 uses the pipeline default)")
	cmd.Flags().BoolVar(&opts.async, "async", false, "Run through the task registry and poll until done")
	return cmd
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <question>",
		Short: "Print the query analysis as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), root, func(ctx context.Context, a *app.App) error {
				return printJSON(cmd.OutOrStdout(), a.Analyzer.Analyze(ctx, strings.Join(args, " ")))
			})
		},
	}
}

func newSeedCmd(root *rootOptions) *cobra.Command {
	var driver string
	cmd := &cobra.Command{
		Use:   "seed <snapshot.json|snapshot.yaml>",
		Short: "Load a candidate snapshot into the SQL candidate store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load("production")
			if err != nil {
				return err
			}
			defer log.Sync()
			if driver == "" {
				driver = cfg.Candidates.Source
			}
			if driver != db.DriverPostgres && driver != db.DriverSQLite {
				return fmt.Errorf("seed needs a postgres or sqlite store, got %q", driver)
			}
			snap, err := candidates.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			gdb, err := db.Open(db.ConfigFromEnv(driver, cfg.Candidates.Path), log)
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}
			store := candidates.NewSQL(gdb, log)
			if err := store.AutoMigrate(cmd.Context()); err != nil {
				return err
			}
			if err := store.Upsert(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d documents, %d entities\n", len(snap.Documents), len(snap.Entities))
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "postgres or sqlite (defaults to candidates.source)")
	return cmd
}

func withApp(ctx context.Context, root *rootOptions, fn func(context.Context, *app.App) error) error {
	cfg, log, err := root.load("production")
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return err
	}
	runErr := fn(ctx, a)
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(runErr, a.Close(closeCtx))
}

type taskRunner interface {
	Submit(ctx context.Context, question string, opts pipeline.Options) (string, error)
	Poll(taskID string) (pipeline.PollResult, error)
}

func submitAndWait(ctx context.Context, r taskRunner, question string, opts pipeline.Options) (pipeline.PollResult, error) {
	id, err := r.Submit(ctx, question, opts)
	if err != nil {
		return pipeline.PollResult{}, err
	}
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		res, err := r.Poll(id)
		if err != nil {
			return pipeline.PollResult{}, err
		}
		if res.Status != pipeline.StatusRunning {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return pipeline.PollResult{}, ctx.Err()
		case <-t.C:
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
