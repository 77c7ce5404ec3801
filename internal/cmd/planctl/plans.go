package planctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/louisbranch/planmatch/internal/services/compare/catalog"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/source"
	"github.com/louisbranch/planmatch/internal/services/compare/storage"
	comparesqlite "github.com/louisbranch/planmatch/internal/services/compare/storage/sqlite"
	"github.com/spf13/cobra"
)

type importResult struct {
	Imported int `json:"imported"`
}

func newImportCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import real plans from a YAML document",
		Long:  "Import validates the whole document before writing, then upserts every plan into the real catalog. Use - to read stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reader io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer file.Close()
				reader = file
			}
			return opts.withStore(cmd.Context(), func(store *comparesqlite.Store) error {
				count, err := catalog.ImportPlans(cmd.Context(), store, reader)
				if err != nil {
					return err
				}
				return opts.print(cmd, importResult{Imported: count}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "imported %d plans\n", count)
					return err
				})
			})
		},
	}
}

type planListFlags struct {
	scope     string
	category  string
	filter    string
	pageSize  int
	pageToken string
}

func newPlansCommand(opts *options) *cobra.Command {
	plans := &cobra.Command{
		Use:   "plans",
		Short: "Browse the visible plan pool",
	}

	var flags planListFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List plans visible to a client scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd.Context(), func(store *comparesqlite.Store) error {
				resolver := opts.resolver(cmd.Context(), store, flags.scope)
				mock, err := catalog.DefaultMockCatalog()
				if err != nil {
					return err
				}
				result, err := catalog.NewProvider(store, mock, nil).FetchPlans(cmd.Context(), resolver, catalog.FetchRequest{
					Category:  plan.Category(flags.category),
					Filter:    flags.filter,
					PageSize:  flags.pageSize,
					PageToken: flags.pageToken,
				})
				if err != nil {
					return err
				}
				return opts.print(cmd, result, func(w io.Writer) error {
					return writePlanTable(w, result)
				})
			})
		},
	}
	list.Flags().StringVar(&flags.scope, "scope", "", "client scope (user:<id> or session:<id>); empty uses the configured defaults")
	list.Flags().StringVar(&flags.category, "category", "", "restrict to one category")
	list.Flags().StringVar(&flags.filter, "filter", "", `AIP-160 filter, e.g. provider = "Acme"`)
	list.Flags().IntVar(&flags.pageSize, "page-size", catalog.DefaultPageSize, "plans per page")
	list.Flags().StringVar(&flags.pageToken, "page-token", "", "token from a previous page")

	plans.AddCommand(list)
	return plans
}

// resolver returns the source resolver for scope. An empty scope reads no
// overrides.
func (o *options) resolver(ctx context.Context, store storage.KVStore, scope string) *source.Resolver {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return source.NewResolver(ctx, o.cfg.Source, nil, nil)
	}
	return source.NewResolver(ctx, o.cfg.Source, storage.NewScopedKV(store, scope), nil)
}

func writePlanTable(w io.Writer, result catalog.FetchResult) error {
	if len(result.Plans) == 0 {
		_, err := fmt.Fprintln(w, "no plans")
		return err
	}
	for _, p := range result.Plans {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			p.ID, p.Category, p.Source, p.Provider, p.Name, p.MonthlyPremiumCents); err != nil {
			return err
		}
	}
	if result.NextPageToken != "" {
		if _, err := fmt.Fprintf(w, "next page: %s\n", result.NextPageToken); err != nil {
			return err
		}
	}
	return nil
}
