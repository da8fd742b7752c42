package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured listing sources",
	Long:  `List every source loaded from the sources directory with its kind, enabled state, priority, and trust level.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSources(cmd)
	},
}

func runSources(cmd *cobra.Command) error {
	app, err := buildApp(context.Background())
	if err != nil {
		return err
	}
	defer app.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tKIND\tENABLED\tPRIORITY\tTRUST\tRATE/S\tTIMEOUT")
	for _, id := range app.registry.All() {
		cfg, ok := app.registry.Config(id)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\t%.1f\t%s\n",
			cfg.Name, cfg.Kind, cfg.Enabled, cfg.Priority, cfg.TrustLevel,
			cfg.RateLimitPerSec, cfg.Timeout.Std())
	}
	return w.Flush()
}
