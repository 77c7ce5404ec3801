// Package planctl implements the plan catalog and client settings
// administration CLI.
package planctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/planmatch/internal/platform/cmd"
	"github.com/louisbranch/planmatch/internal/platform/config"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/source"
	comparesqlite "github.com/louisbranch/planmatch/internal/services/compare/storage/sqlite"
	"github.com/spf13/cobra"
)

// Config holds planctl defaults read from the environment.
type Config struct {
	DBPath string `env:"PLANMATCH_COMPARE_DB_PATH" envDefault:"data/compare.db"`
	Source source.Config
}

// options carries resolved root flags to subcommands.
type options struct {
	cfg        Config
	jsonOutput bool
}

// Run executes the CLI with args, writing command output to out.
func Run(ctx context.Context, args []string, out, errOut io.Writer) error {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}
	root := NewRootCommand(cfg)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePlanctl, root.ExecuteContext)
}

// NewRootCommand builds the planctl command tree.
func NewRootCommand(cfg Config) *cobra.Command {
	opts := &options{cfg: cfg}
	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Manage the plan catalog and client plan source settings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.cfg.DBPath, "db", cfg.DBPath, "compare SQLite database path")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print JSON output")

	root.AddCommand(
		newImportCommand(opts),
		newPlansCommand(opts),
		newSourceCommand(opts),
		newEventsCommand(opts),
		newMigrationsCommand(opts),
	)
	return root
}

// withStore opens the store for one command invocation.
func (o *options) withStore(ctx context.Context, fn func(*comparesqlite.Store) error) error {
	if strings.TrimSpace(o.cfg.DBPath) == "" {
		return fmt.Errorf("--db is required")
	}
	store, err := comparesqlite.Open(ctx, o.cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (o *options) print(cmd *cobra.Command, value any, text func(io.Writer) error) error {
	out := cmd.OutOrStdout()
	if o.jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	}
	return text(out)
}

func newMigrationsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrations",
		Short: "List applied schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd.Context(), func(store *comparesqlite.Store) error {
				applied, err := store.Migrations(cmd.Context())
				if err != nil {
					return err
				}
				return opts.print(cmd, applied, func(w io.Writer) error {
					for _, m := range applied {
						if _, err := fmt.Fprintf(w, "%s\t%s\n", m.Name, m.AppliedAt.Format(time.RFC3339)); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}
