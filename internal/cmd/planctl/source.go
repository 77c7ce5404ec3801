package planctl

import (
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/planmatch/internal/services/compare/domain/source"
	comparesqlite "github.com/louisbranch/planmatch/internal/services/compare/storage/sqlite"
	"github.com/spf13/cobra"
)

type sourceView struct {
	Scope           string      `json:"scope"`
	Mode            source.Mode `json:"mode"`
	UseMockPlans    bool        `json:"use_mock_plans"`
	EnableMixedMode bool        `json:"enable_mixed_mode"`
}

func newSourceCommand(opts *options) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Inspect or change a client's plan source overrides",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(scope) == "" {
				return fmt.Errorf("--scope is required")
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&scope, "scope", "", "client scope (user:<id> or session:<id>)")

	run := func(mutate func(cmd *cobra.Command, resolver *source.Resolver) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return opts.withStore(cmd.Context(), func(store *comparesqlite.Store) error {
				resolver := opts.resolver(cmd.Context(), store, scope)
				if mutate != nil {
					if err := mutate(cmd, resolver); err != nil {
						return err
					}
				}
				cfg := resolver.Config()
				view := sourceView{
					Scope:           strings.TrimSpace(scope),
					Mode:            cfg.EffectiveMode(),
					UseMockPlans:    cfg.UseMockPlans,
					EnableMixedMode: cfg.EnableMixedMode,
				}
				return opts.print(cmd, view, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s: mode=%s use_mock_plans=%t enable_mixed_mode=%t\n",
						view.Scope, view.Mode, view.UseMockPlans, view.EnableMixedMode)
					return err
				})
			})
		}
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective plan source",
		Args:  cobra.NoArgs,
		RunE:  run(nil),
	}
	toggle := &cobra.Command{
		Use:   "toggle-mock",
		Short: "Flip the mock plans override",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, resolver *source.Resolver) error {
			resolver.ToggleMockPlans(cmd.Context())
			return nil
		}),
	}
	mixed := &cobra.Command{
		Use:       "mixed on|off",
		Short:     "Enable or disable mixed mode",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
	}
	mixed.RunE = func(cmd *cobra.Command, args []string) error {
		enabled := args[0] == "on"
		return run(func(cmd *cobra.Command, resolver *source.Resolver) error {
			resolver.SetMixedMode(cmd.Context(), enabled)
			return nil
		})(cmd, args)
	}

	cmd.AddCommand(show, toggle, mixed)
	return cmd
}
