package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagedge/internal/backend"
	"github.com/TimurManjosov/flagedge/internal/background"
	"github.com/TimurManjosov/flagedge/internal/cli"
	"github.com/TimurManjosov/flagedge/internal/decider"
	"github.com/TimurManjosov/flagedge/internal/decision"
	"github.com/TimurManjosov/flagedge/internal/events"
	"github.com/TimurManjosov/flagedge/internal/optimizely"
)

var (
	decideFlag   string
	decideEvents bool
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Decide one flag for a fresh visitor",
	Long: `Decide one flag for a freshly generated visitor and print the result.

With the default text format the output is exactly what the server returns.

Examples:
  flagedge decide
  flagedge decide --flag checkout --format json
  flagedge decide --datafile ./datafile.json --send-events`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		out, err := cli.ParseFormat(orDefault(format, "text"))
		if err != nil {
			return err
		}

		rc := e.request
		if decideFlag != "" {
			rc.FlagKey = decideFlag
		}
		rc.EventDispatchEnabled = rc.EventDispatchEnabled || decideEvents

		tracker := background.NewTracker(e.log)
		dispatcher := events.NewDispatcher(backend.Default(e.cfg.EventTimeout), tracker)
		d := decider.New(e.source, optimizely.NewFactory(e.log, decision.LogLevelError), dispatcher)

		ctx := e.context(cmd)
		res, err := d.Decide(ctx, rc)
		if err != nil {
			return fmt.Errorf("decide %q: %w", rc.FlagKey, err)
		}
		if err := tracker.Drain(ctx); err != nil {
			return fmt.Errorf("waiting for events: %w", err)
		}
		return cli.PrintResult(cmd.OutOrStdout(), res, out)
	},
}

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().StringVar(&decideFlag, "flag", "", "Flag key to decide (default: FLAG_KEY or discount)")
	decideCmd.Flags().BoolVar(&decideEvents, "send-events", false, "Dispatch the impression event")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
